package rules

import (
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/solatis/amcheck/internal/mailbox"
	"github.com/solatis/amcheck/internal/types"
)

// AlertDetail is the rendering of one alerted item.
type AlertDetail struct {
	UID     types.UID
	Sender  string
	Date    string
	Subject string
}

// alertDetails renders at most limit items and reports how many were left out.
func alertDetails(items []mailbox.Item, limit int) ([]AlertDetail, int) {
	n := len(items)
	if n > limit {
		n = limit
	}
	details := make([]AlertDetail, 0, n)
	for _, item := range items[:n] {
		details = append(details, AlertDetail{
			UID:     item.UID,
			Sender:  item.Sender,
			Date:    item.Date.Format(time.RFC1123Z),
			Subject: truncateSubject(item.Subject),
		})
	}
	return details, len(items) - n
}

// truncateSubject shortens s to AlertSubjectWidth terminal cells. Width is
// measured in cells so wide CJK subjects line up with ASCII ones.
func truncateSubject(s string) string {
	return runewidth.Truncate(s, types.AlertSubjectWidth, "…")
}

// Package mailbox defines the normalized message model and the store
// interfaces the rule engine and the triage runner depend on.
package mailbox

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/solatis/amcheck/internal/types"
)

// Address is one raw address from a message's From list.
// A nil field means the part was absent from the envelope.
type Address struct {
	Name    []byte
	Mailbox []byte
	Host    []byte
}

// Envelope is the raw metadata a store returns for one message.
// Subject and Date are nil when the header is absent.
type Envelope struct {
	UID     types.UID
	From    []Address
	Subject []byte
	Date    []byte
}

// Item is one message reduced to the fields every metadata predicate needs.
// Items are only built through NewItem, so all four fields are populated.
type Item struct {
	UID     types.UID
	Sender  string
	Subject string
	Date    time.Time
}

// NewItem normalizes an envelope. The returned error joins every field
// failure; such an envelope must be dropped, not evaluated.
func NewItem(env Envelope) (Item, error) {
	f := parseFields(env)
	if err := errors.Join(f.senderErr, f.subjectErr, f.dateErr); err != nil {
		return Item{}, err
	}
	return Item{UID: env.UID, Sender: f.sender, Subject: f.subject, Date: f.date}, nil
}

// BuildItems normalizes envelopes in order, warning once for every envelope
// that cannot be used and leaving it out of the result.
func BuildItems(logger *slog.Logger, envs []Envelope) []Item {
	items := make([]Item, 0, len(envs))
	for _, env := range envs {
		f := parseFields(env)
		if f.senderErr != nil || f.subjectErr != nil || f.dateErr != nil {
			logger.Warn("bad email, skipping",
				"uid", env.UID,
				"from", orError(f.sender, f.senderErr),
				"subject", orError(f.subject, f.subjectErr),
				"date", orError(formatDate(f.date), f.dateErr),
			)
			continue
		}
		logger.Debug("mail", "uid", env.UID, "from", f.sender, "subject", f.subject)
		items = append(items, Item{UID: env.UID, Sender: f.sender, Subject: f.subject, Date: f.date})
	}
	return items
}

// FormatAddresses renders an address list as `"Name" <local@host>` entries
// joined by ", ".
func FormatAddresses(addrs []Address) (string, error) {
	if len(addrs) == 0 {
		return "", types.ErrNoAddresses
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		s, err := formatAddress(a)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

func formatAddress(a Address) (string, error) {
	name := ""
	if a.Name != nil {
		if !utf8.Valid(a.Name) {
			return "", fmt.Errorf("address name: %w", types.ErrInvalidUTF8)
		}
		name = string(a.Name)
	}
	if a.Mailbox == nil {
		return "", fmt.Errorf("local part: %w", types.ErrAddressPartMissing)
	}
	if !utf8.Valid(a.Mailbox) {
		return "", fmt.Errorf("local part: %w", types.ErrInvalidUTF8)
	}
	if a.Host == nil {
		return "", fmt.Errorf("host: %w", types.ErrAddressPartMissing)
	}
	if !utf8.Valid(a.Host) {
		return "", fmt.Errorf("host: %w", types.ErrInvalidUTF8)
	}
	return fmt.Sprintf("\"%s\" <%s@%s>", name, a.Mailbox, a.Host), nil
}

// fields carries whatever could be salvaged from an envelope, so a warning
// about one bad field can still show the good ones.
type fields struct {
	sender     string
	senderErr  error
	subject    string
	subjectErr error
	date       time.Time
	dateErr    error
}

func parseFields(env Envelope) fields {
	var f fields
	f.sender, f.senderErr = FormatAddresses(env.From)

	switch {
	case env.Subject == nil:
		f.subjectErr = types.ErrNoSubject
	case !utf8.Valid(env.Subject):
		f.subjectErr = fmt.Errorf("subject: %w", types.ErrInvalidUTF8)
	default:
		f.subject = string(env.Subject)
	}

	switch {
	case env.Date == nil:
		f.dateErr = types.ErrNoDate
	case !utf8.Valid(env.Date):
		f.dateErr = fmt.Errorf("date: %w", types.ErrInvalidUTF8)
	default:
		d, err := mail.ParseDate(strings.TrimSpace(string(env.Date)))
		if err != nil {
			f.dateErr = fmt.Errorf("%w: %v", types.ErrDateFormat, err)
		} else {
			f.date = d
		}
	}
	return f
}

func orError(s string, err error) string {
	if err != nil {
		return err.Error()
	}
	return s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC1123Z)
}

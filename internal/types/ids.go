package types

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// UID identifies a message within the selected mailbox.
// IMAP UIDs stay stable across expunges, unlike sequence numbers, so every
// mutation and every oracle result is correlated by UID.
type UID uint32

// String renders the UID in its decimal protocol form.
func (u UID) String() string {
	return strconv.FormatUint(uint64(u), 10)
}

// JoinUIDs renders a UID list as a comma separated set, e.g. "3,7,12".
func JoinUIDs(uids []UID) string {
	parts := make([]string, len(uids))
	for i, u := range uids {
		parts[i] = u.String()
	}
	return strings.Join(parts, ",")
}

// SortUIDsDescending orders UIDs newest first. UIDs are assigned in arrival
// order, so the highest UID is the most recently stored message.
func SortUIDsDescending(uids []UID) {
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
}

// RunID identifies one amcheck invocation in logs.
type RunID string

// NewRunID generates a UUIDv7 run identifier.
// Time-ordered IDs keep log lines from successive runs sortable.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRunID() RunID {
	return RunID(uuid.Must(uuid.NewV7()).String())
}

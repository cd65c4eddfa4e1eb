// Package types provides domain models shared across amcheck components.
//
// Zero-dependency design: types.go and errors.go use only the standard
// library so the store backends and the rule engine can share them without
// pulling in each other's drivers. ID utilities in ids.go import uuid but are
// isolated from the rest.
//
// Separation from the wire: IMAP and SQL representations of a message live in
// their store packages. This package holds the identifiers, limits and rule
// definitions that every layer agrees on.
package types

import (
	"math"
	"time"
)

// Resource limits enforced by the rule compiler and the triage runner.
const (
	// MaxTreeDepth bounds decision tree nesting so a malformed rule file cannot
	// drive the evaluator into unbounded recursion.
	MaxTreeDepth = 32

	// MaxBodyTerms limits substring terms per body node. Each term becomes one
	// clause of a store-side query; servers reject very long SEARCH commands.
	MaxBodyTerms = 64

	// DefaultMaxAlertDetails caps per-item lines in one alert report.
	DefaultMaxAlertDetails = 9

	// DefaultMaxCheckMessages caps how many stored messages a check run looks
	// at. The newest messages are kept.
	DefaultMaxCheckMessages = 2000

	// DefaultMoveDaysBack is how far back the move selection searches the inbox.
	DefaultMoveDaysBack = 60

	// AlertSubjectWidth is the display width (terminal cells) subjects are
	// truncated to in alert details.
	AlertSubjectWidth = 80
)

// MaxThresholdDays is the largest day count that can be subtracted from a
// timestamp without overflowing time.Duration.
const MaxThresholdDays = int64(math.MaxInt64 / int64(24*time.Hour))

// TestEnvironmentSince is the static lower bound used for the move selection
// in the test environment, far enough back to cover every fixture message.
var TestEnvironmentSince = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

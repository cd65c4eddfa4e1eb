package types

import "errors"

// Sentinel errors for amcheck operations.
var (
	// ErrNoAddresses indicates a message has no From addresses.
	ErrNoAddresses = errors.New("no addresses found")

	// ErrAddressPartMissing indicates an address lacks its local part or host.
	ErrAddressPartMissing = errors.New("address part missing")

	// ErrInvalidUTF8 indicates a header field is not valid UTF-8 text.
	ErrInvalidUTF8 = errors.New("not valid utf-8")

	// ErrNoSubject indicates a message has no Subject header.
	ErrNoSubject = errors.New("no subject found")

	// ErrNoDate indicates a message has no Date header.
	ErrNoDate = errors.New("no date found")

	// ErrDateFormat indicates a Date header could not be parsed.
	ErrDateFormat = errors.New("date formatting error")

	// ErrDateSubtraction indicates a day threshold cannot be subtracted from now.
	ErrDateSubtraction = errors.New("could not subtract days from now")

	// ErrBodyCountMismatch indicates a bulk body fetch returned fewer bodies
	// than were requested.
	ErrBodyCountMismatch = errors.New("body fetch returned fewer messages than requested")

	// ErrBodyNotText indicates a fetched message body is not valid UTF-8.
	ErrBodyNotText = errors.New("message body was not valid utf-8")

	// ErrNoContentOracle indicates a body predicate was evaluated without a
	// store able to answer body queries.
	ErrNoContentOracle = errors.New("body predicate requires a content oracle")

	// ErrEmptyBodyTerms indicates a body node has no terms.
	ErrEmptyBodyTerms = errors.New("body node has no terms")

	// ErrTooManyBodyTerms indicates a body node exceeds MaxBodyTerms.
	ErrTooManyBodyTerms = errors.New("body node has too many terms")

	// ErrTreeTooDeep indicates a decision tree exceeds MaxTreeDepth.
	ErrTreeTooDeep = errors.New("decision tree exceeds maximum depth")

	// ErrNodeKind indicates a tree node declares zero or several node kinds.
	ErrNodeKind = errors.New("tree node must declare exactly one kind")

	// ErrUnknownAction indicates an action name outside alert/delete/success/nothing.
	ErrUnknownAction = errors.New("unknown action")

	// ErrUnknownEmptyPolicy indicates a descend_empty value that names no side of the node.
	ErrUnknownEmptyPolicy = errors.New("unknown descend_empty side")

	// ErrConditionField indicates a condition does not name exactly one field.
	ErrConditionField = errors.New("condition must name exactly one of from, subject, body")

	// ErrConditionPolarity indicates a condition is neither match nor unmatch, or both.
	ErrConditionPolarity = errors.New("condition must be exactly one of match, unmatch")

	// ErrNegativeThreshold indicates a negative day or count threshold.
	ErrNegativeThreshold = errors.New("threshold must not be negative")

	// ErrDuplicateRuleSet indicates two check rule-sets share a name.
	ErrDuplicateRuleSet = errors.New("duplicate rule-set name")

	// ErrUnnamedRuleSet indicates a check rule-set without a name.
	ErrUnnamedRuleSet = errors.New("rule-set name is required")

	// ErrAlertsRaised indicates a check run completed but fired alerts.
	ErrAlertsRaised = errors.New("check run raised alerts")
)

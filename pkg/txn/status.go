package txn

// Status tracks where a transaction is in its lifecycle. Transitions only
// move forward: Open -> Validating -> Aggregating -> Committed, with an
// abort possible from any non-terminal state.
type Status int

const (
	StatusOpen Status = iota
	StatusValidating
	StatusAggregating
	StatusCommitted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusValidating:
		return "VALIDATING"
	case StatusAggregating:
		return "AGGREGATING"
	case StatusCommitted:
		return "COMMITTED"
	case StatusAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the transaction can accept no further work.
func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusAborted
}

package lock

// LockMode is the mode a transaction holds on a page. The set of modes is
// closed; switch statements over LockMode are expected to be exhaustive.
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

func (m LockMode) String() string {
	switch m {
	case Shared:
		return "SHARED"
	case Exclusive:
		return "EXCLUSIVE"
	default:
		return "UNKNOWN"
	}
}

// Covers reports whether holding m satisfies a request for want.
func (m LockMode) Covers(want LockMode) bool {
	switch m {
	case Exclusive:
		return true
	case Shared:
		return want == Shared
	default:
		return false
	}
}

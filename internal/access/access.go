package access

// #region levels

// Level is an ordered clearance tier gating retrieval visibility.
type Level string

const (
	Public       Level = "public"
	Internal     Level = "internal"
	Confidential Level = "confidential"
	Restricted   Level = "restricted"
)

// #endregion levels

// #region rank

// Rank maps a level onto the total order
// public < internal < confidential < restricted.
// Unknown levels rank as internal, matching the default visibility
// given to unrecognized roles.
func Rank(l Level) int {
	switch l {
	case Public:
		return 0
	case Internal:
		return 1
	case Confidential:
		return 2
	case Restricted:
		return 3
	default:
		return 1
	}
}

// Allowed reports whether content at level content is visible to an
// asker at level asker. This is the single access check used by the
// index filter; no call site re-implements it.
func Allowed(content, asker Level) bool {
	return Rank(content) <= Rank(asker)
}

// Valid reports whether l is one of the four known levels.
func Valid(l Level) bool {
	switch l {
	case Public, Internal, Confidential, Restricted:
		return true
	}
	return false
}

// VisibleTo returns every level an asker at level asker may read,
// lowest first.
func VisibleTo(asker Level) []Level {
	all := []Level{Public, Internal, Confidential, Restricted}
	return all[:Rank(asker)+1]
}

// #endregion rank

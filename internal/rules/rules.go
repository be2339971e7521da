// Package rules is the legality-checking collaborator boundary. The relay
// consults an Engine before appending a ply; the protocol itself never
// interprets notation.
package rules

// Engine answers whether a candidate ply is legal given the moves played so
// far, in order.
type Engine interface {
	IsLegal(played []string, candidate string) bool
}

// Decider is implemented by engines that can tell when a match is over.
// Outcome returns "white", "black", or "draw" once decided, "" while the
// game is still open. The first mover is white.
type Decider interface {
	Outcome(played []string) string
}

// AllowAll accepts any non-empty notation. Used for free-form match types
// and as the test double.
type AllowAll struct{}

func (AllowAll) IsLegal(_ []string, candidate string) bool {
	return candidate != ""
}

// ForMatchType selects the engine for a match type. Unknown types get the
// permissive engine; legality is then the clients' concern.
func ForMatchType(matchType string) Engine {
	switch matchType {
	case "chess":
		return Chess{}
	default:
		return AllowAll{}
	}
}

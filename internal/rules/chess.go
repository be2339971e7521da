package rules

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Chess validates plies with a full chess implementation. Moves are accepted
// in UCI, with SAN as a fallback.
type Chess struct{}

func (Chess) IsLegal(played []string, candidate string) bool {
	game := replay(played)
	if game == nil {
		return false
	}
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	// push, don't just decode: a UCI string can parse fine yet be illegal
	// in the position
	if game.PushNotationMove(strings.ToLower(candidate), nchess.UCINotation{}, nil) == nil {
		return true
	}
	return game.PushNotationMove(candidate, nchess.AlgebraicNotation{}, nil) == nil
}

// Outcome implements Decider. It returns "" while the game is open.
func (Chess) Outcome(played []string) string {
	game := replay(played)
	if game == nil {
		return ""
	}
	switch game.Outcome() {
	case nchess.WhiteWon:
		return "white"
	case nchess.BlackWon:
		return "black"
	case nchess.Draw:
		return "draw"
	}
	return ""
}

// replay reconstructs a position from the start by applying the stored
// notations, UCI first then SAN. Returns nil when the history itself is
// inconsistent.
func replay(played []string) *nchess.Game {
	game := nchess.NewGame()
	for _, mv := range played {
		mv = strings.TrimSpace(mv)
		if err := game.PushNotationMove(strings.ToLower(mv), nchess.UCINotation{}, nil); err == nil {
			continue
		}
		if err := game.PushNotationMove(mv, nchess.AlgebraicNotation{}, nil); err != nil {
			return nil
		}
	}
	return game
}

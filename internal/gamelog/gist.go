package gamelog

import (
	"slices"
	"strings"
)

// GistOf fingerprints a match by who played it and what they ended as, so
// that two transcripts of the same match share a gist.
func GistOf(g *GameResult) string {
	parts := make([]string, len(g.Players))
	for i, p := range g.Players {
		parts[i] = p.GameName + "/" + p.AccountName + "/" + p.EndingIdent.Role.Name
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

// Package render formats analysed games and gamelog transcripts as plain text.
package render

import (
	"fmt"
	"html"
	"iter"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"

	"tosgamelogs/internal/gamelog"
)

// chatPolicy strips all markup from chat; players can put tags in messages.
var chatPolicy = bluemonday.StrictPolicy()

// Result prints one line per player followed by the winner and, for Town
// Traitor games, whether the hunt was reached.
func Result(g *gamelog.GameResult) string {
	var b strings.Builder
	for _, p := range g.Players {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}
	switch g.Victor {
	case nil:
		b.WriteString("Draw")
	default:
		fmt.Fprintf(&b, "%s won", g.Victor)
	}
	if g.Outcome != gamelog.OutcomeNormal {
		fmt.Fprintf(&b, " (%s)", g.Outcome)
	}
	b.WriteByte('\n')
	if g.HasModifier(gamelog.ModifierTownTraitor) {
		if g.HuntReached != nil {
			fmt.Fprintf(&b, "Game reached hunt on %s\n", g.HuntReached)
		} else {
			b.WriteString("Hunt not reached\n")
		}
	}
	return b.String()
}

// Transcript writes one line per message. Roster entries and start junk are
// left out.
func Transcript(messages iter.Seq[gamelog.Message]) string {
	var b strings.Builder
	for m := range messages {
		if line, ok := Line(m); ok {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Line renders a single message. ok is false for messages with no
// transcript form.
func Line(m gamelog.Message) (string, bool) {
	switch m := m.(type) {
	case gamelog.Chat:
		return fmt.Sprintf("[%d] %s: %s", m.WhoNumber, m.WhoName, ChatText(m.Content)), true
	case gamelog.DeadChat:
		return fmt.Sprintf("(dead) [%d] %s: %s", m.WhoNumber, m.WhoName, ChatText(m.Content)), true
	case gamelog.Whispering:
		return fmt.Sprintf("%s is whispering to %s.", m.Who, m.To), true
	case gamelog.LeftAWill:
		return fmt.Sprintf("%s left a last will.", m.Who), true
	case gamelog.Upped:
		return fmt.Sprintf("%s was voted up to trial.", m.Who), true
	case gamelog.DayStart:
		return fmt.Sprintf("== Day %d ==", m.Day), true
	case gamelog.NightStart:
		return fmt.Sprintf("== Night %d ==", m.Night), true
	case gamelog.DayDeath:
		return fmt.Sprintf("%s died today.", m.Who), true
	case gamelog.NightDeath:
		return fmt.Sprintf("%s died last night.", m.Who), true
	case gamelog.Tribunal:
		return fmt.Sprintf("%s the Marshal, has declared a Tribunal.", m.Who), true
	case gamelog.FoundGuilty:
		return fmt.Sprintf("%s was found guilty!", m.Who), true
	case gamelog.TrialsRemaining:
		return fmt.Sprintf("There are %d possible trials remaining today.", m.Count), true
	case gamelog.Disconnect:
		return fmt.Sprintf("%s has disconnected from life.", m.Who), true
	case gamelog.Reconnect:
		return fmt.Sprintf("%s has reconnected to life.", m.Who), true
	case gamelog.LeftTown:
		return fmt.Sprintf("%s has accomplished their goal as %s and left town.", m.Who, m.Role), true
	case gamelog.DeathPop:
		return "Now Soul Collector has become Death, Destroyer of Worlds and Horseman of the Apocalypse!", true
	case gamelog.HuntWarning:
		return fmt.Sprintf("There are %d days left to find the Town Traitor.", m.DaysLeft), true
	case gamelog.DrawWarning:
		return "If no one dies by tomorrow the game will end in a draw.", true
	}
	return "", false
}

// LastWill returns the text of a roster entry's will, or "" when none was left.
func LastWill(info gamelog.PlayerInfo) string {
	return ChatText(info.LastWill)
}

// ChatText returns the visible text of a chat element.
func ChatText(n *xhtml.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	if err := xhtml.Render(&b, n); err != nil {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(chatPolicy.Sanitize(b.String())))
}

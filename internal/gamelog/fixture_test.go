package gamelog

import (
	"fmt"
	"strings"
)

const (
	townColour  = "06E00C"
	covenColour = "BF5FFF"
	neutColour  = "F5A6D4"
)

// logBuilder writes gamelog markup in the shape the client exports.
type logBuilder struct {
	b strings.Builder
}

func newLog() *logBuilder {
	l := &logBuilder{}
	l.b.WriteString("<html><head><title>log</title></head><body>\n")
	l.system("PLAYER INFO")
	return l
}

func (l *logBuilder) line(first string, rest ...string) *logBuilder {
	l.b.WriteString("<span><br>" + first + "</span>")
	for _, cell := range rest {
		l.b.WriteString(cell)
	}
	l.b.WriteString("\n")
	return l
}

func (l *logBuilder) system(text string) *logBuilder {
	return l.line(text)
}

type playerOpt func(*playerCells)

type playerCells struct {
	colour string
	prev   string
	vip    bool
	will   string
}

func colour(c string) playerOpt { return func(p *playerCells) { p.colour = c } }
func vip() playerOpt { return func(p *playerCells) { p.vip = true } }
func will(text string) playerOpt { return func(p *playerCells) { p.will = text } }
func prevRole(role, c string) playerOpt {
	return func(p *playerCells) {
		p.prev = fmt.Sprintf(`<div class="tooltipprev"><span class="tooltiptext"><span style="color:#%s">%s</span></span></div>`, c, role)
	}
}

func (l *logBuilder) player(number int, name, account, role string, opts ...playerOpt) *logBuilder {
	cells := playerCells{colour: townColour, will: "nothing to say"}
	for _, opt := range opts {
		opt(&cells)
	}
	marker := " "
	if cells.vip {
		marker = " ★ "
	}
	return l.line(
		fmt.Sprintf("[%d] %s - ", number, name),
		fmt.Sprintf(`<span style="color:#%s">%s</span>`, cells.colour, role),
		"<span>"+marker+cells.prev+"</span>",
		`<span class="tooltipwill"><span class="tooltiptext">`+cells.will+`</span></span>`,
		fmt.Sprintf("<span>(Username: %s)</span>", account),
		"<span>.</span>",
	)
}

func (l *logBuilder) chat(number int, name, text string) *logBuilder {
	return l.line(fmt.Sprintf("[%d]", number), "<span>"+name+"</span>", "<span>"+text+"</span>")
}

func (l *logBuilder) deadChat(number int, name, text string) *logBuilder {
	return l.line(
		fmt.Sprintf("[%d]", number),
		"<span>"+strings.ReplaceAll(name, " ", "-")+"</span>",
		`<span style="color:#689194">`+text+"</span>",
	)
}

func (l *logBuilder) day(n int) *logBuilder { return l.system(fmt.Sprintf("Day %d", n)) }
func (l *logBuilder) night(n int) *logBuilder { return l.system(fmt.Sprintf("Night %d", n)) }

func (l *logBuilder) String() string {
	return l.b.String() + "</body></html>\n"
}

// basicRoster seats two Town players against three Coven players.
func basicRoster() *logBuilder {
	return newLog().
		player(1, "Alice", "alice1", "Sheriff").
		player(2, "Bob", "bobby", "Jailor").
		player(3, "Carol", "carol", "Coven Leader", colour(covenColour)).
		player(4, "Dave", "dave99", "Poisoner", colour(covenColour)).
		player(5, "Eve", "evee", "Witch", colour(covenColour)).
		day(1)
}

func playerNamed(g *GameResult, name string) *Player {
	for _, p := range g.Players {
		if p.GameName == name {
			return p
		}
	}
	return nil
}

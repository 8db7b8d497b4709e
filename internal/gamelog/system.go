package gamelog

import (
	"regexp"
	"regexp/syntax"
	"strconv"
)

// System announcements.
type (
	Whispering      struct{ Who, To string }
	LeftAWill       struct{ Who string }
	Upped           struct{ Who string }
	DayStart        struct{ Day int }
	NightStart      struct{ Night int }
	DayDeath        struct{ Who string }
	NightDeath      struct{ Who string }
	Tribunal        struct{ Who string }
	FoundGuilty     struct{ Who string }
	TrialsRemaining struct{ Count int }
	Disconnect      struct{ Who string }
	Reconnect       struct{ Who string }
	LeftTown        struct{ Who, Role string }
	DeathPop        struct{}
	HuntWarning     struct{ DaysLeft int }
	DrawWarning     struct{}
	StartJunk       struct{}
)

func (Whispering) isMessage()      {}
func (LeftAWill) isMessage()       {}
func (Upped) isMessage()           {}
func (DayStart) isMessage()        {}
func (NightStart) isMessage()      {}
func (DayDeath) isMessage()        {}
func (NightDeath) isMessage()      {}
func (Tribunal) isMessage()        {}
func (FoundGuilty) isMessage()     {}
func (TrialsRemaining) isMessage() {}
func (Disconnect) isMessage()      {}
func (Reconnect) isMessage()       {}
func (LeftTown) isMessage()        {}
func (DeathPop) isMessage()        {}
func (HuntWarning) isMessage()     {}
func (DrawWarning) isMessage()     {}
func (StartJunk) isMessage()       {}

// suffixLen is how many trailing characters of a line select its candidate shapes.
const suffixLen = 7

type systemShape struct {
	name    string
	pattern string
	re      *regexp.Regexp
	build   func(groups []string) (Message, bool)
}

type systemTable struct {
	shapes   []*systemShape
	bySuffix map[string][]*systemShape
	wildcard []*systemShape
}

func shape(name, pattern string, build func(g []string) (Message, bool)) *systemShape {
	return &systemShape{
		name:    name,
		pattern: pattern,
		re:      regexp.MustCompile(`^(?:` + pattern + `)$`),
		build:   build,
	}
}

func who(f func(string) Message) func([]string) (Message, bool) {
	return func(g []string) (Message, bool) { return f(g[0]), true }
}

func number(f func(int) Message) func([]string) (Message, bool) {
	return func(g []string) (Message, bool) {
		n, err := strconv.Atoi(g[0])
		if err != nil {
			return nil, false
		}
		return f(n), true
	}
}

func bare(m Message) func([]string) (Message, bool) {
	return func([]string) (Message, bool) { return m, true }
}

var systemMessages = newSystemTable(
	shape("Whispering", `(.+) is whispering to (.+)\.`, func(g []string) (Message, bool) {
		return Whispering{Who: g[0], To: g[1]}, true
	}),
	shape("LeftAWill", `(.+) left a last will.`, who(func(s string) Message { return LeftAWill{s} })),
	shape("Upped", `(.+) was voted up to trial\.`, who(func(s string) Message { return Upped{s} })),
	shape("DayStart", `Day (\d+)`, number(func(n int) Message { return DayStart{n} })),
	shape("NightStart", `Night (\d+)`, number(func(n int) Message { return NightStart{n} })),
	shape("DayDeath", `(.+) died today\.`, who(func(s string) Message { return DayDeath{s} })),
	shape("NightDeath", `(.+) died last night\.`, who(func(s string) Message { return NightDeath{s} })),
	shape("Tribunal", `(.+) the Marshal, has declared a Tribunal\.`, who(func(s string) Message { return Tribunal{s} })),
	shape("FoundGuilty", `(.+) was found guilty!`, who(func(s string) Message { return FoundGuilty{s} })),
	shape("TrialsRemaining", `There are (\d) possible trials remaining today\.`, number(func(n int) Message { return TrialsRemaining{n} })),
	shape("Disconnect", `(.+) has disconnected from life\.`, who(func(s string) Message { return Disconnect{s} })),
	shape("Reconnect", `(.+) has reconnected to life\.`, who(func(s string) Message { return Reconnect{s} })),
	shape("LeftTown", `(.+) has accomplished their goal as (.+) and left town\.`, func(g []string) (Message, bool) {
		return LeftTown{Who: g[0], Role: g[1]}, true
	}),
	shape("DeathPop", `Now Soul Collector has become Death, Destroyer of Worlds and Horseman of the Apocalypse!`, bare(DeathPop{})),
	shape("HuntWarning", `There are (\d) days left to find the Town Traitor\.`, number(func(n int) Message { return HuntWarning{n} })),
	shape("DrawWarning", `If no one dies by tomorrow the game will end in a draw.`, bare(DrawWarning{})),
	shape("StartJunk", `PLAYER INFO`, bare(StartJunk{})),
)

func newSystemTable(shapes ...*systemShape) *systemTable {
	t := &systemTable{shapes: shapes, bySuffix: map[string][]*systemShape{}}
	for _, s := range shapes {
		if key, ok := literalSuffix(s.pattern, suffixLen); ok {
			t.bySuffix[key] = append(t.bySuffix[key], s)
		} else {
			t.wildcard = append(t.wildcard, s)
		}
	}
	return t
}

// literalSuffix returns the last n characters of pattern when they are all
// plain literals. Patterns shorter than n that are entirely literal yield
// the whole pattern.
func literalSuffix(pattern string, n int) (string, bool) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", false
	}
	subs := []*syntax.Regexp{re}
	if re.Op == syntax.OpConcat {
		subs = re.Sub
	}
	var tail []rune
	for i := len(subs) - 1; i >= 0 && len(tail) < n; i-- {
		sub := subs[i]
		if sub.Op != syntax.OpLiteral || sub.Flags&syntax.FoldCase != 0 {
			return "", false
		}
		tail = append(append([]rune{}, sub.Rune...), tail...)
	}
	if len(tail) > n {
		tail = tail[len(tail)-n:]
	}
	return string(tail), true
}

// candidates returns the shapes worth trying for a line, in declared order.
func (t *systemTable) candidates(text string) []*systemShape {
	r := []rune(text)
	if len(r) > suffixLen {
		r = r[len(r)-suffixLen:]
	}
	if c := t.bySuffix[string(r)]; len(c) > 0 {
		return c
	}
	return t.wildcard
}

func (t *systemTable) match(text string) (Message, bool) {
	for _, s := range t.candidates(text) {
		m := s.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if msg, ok := s.build(m[1:]); ok {
			return msg, true
		}
	}
	return nil, false
}

func recognizeSystem(line Line) (Message, bool) {
	first, ok := line.At(0)
	if !ok {
		return nil, false
	}
	return systemMessages.match(flatText(first))
}

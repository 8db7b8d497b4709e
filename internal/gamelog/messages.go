package gamelog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Message is one classified line of a gamelog. The concrete types are the
// structs in this file and in system.go.
type Message interface {
	isMessage()
}

// Chat is a living player speaking.
type Chat struct {
	WhoNumber int
	WhoName   string
	Content   *html.Node
}

// DeadChat is a dead player speaking in the graveyard channel.
type DeadChat struct {
	WhoNumber int
	WhoName   string
	Content   *html.Node
}

// ColoredRole is a role name as shown, with the hex colour it was shown in.
type ColoredRole struct {
	Name   string
	Colour string
}

// PlayerInfo is one entry of the end-of-game roster.
type PlayerInfo struct {
	Number      int
	GameName    string
	AccountName string
	Role        ColoredRole
	PrevRole    *ColoredRole
	LastWill    *html.Node
	IsVIP       bool
}

func (Chat) isMessage()       {}
func (DeadChat) isMessage()   {}
func (PlayerInfo) isMessage() {}

const (
	deadChatStyle     = "color:#689194"
	defaultColour     = "000000"
	usernamePrefixLen = len("(Username: ")
)

// vipMarkers is the star the exporter prints next to the VIP, both in the
// mis-decoded form the client writes and as a proper character.
var vipMarkers = map[string]bool{
	" \u00e2\u02dc\u2026 ": true,
	" \u2605 ":             true,
}

var (
	roleColourRe    = regexp.MustCompile(`^color:#([0-9A-F]{6})$`)
	prevRoleSelect  = cascadia.MustCompile(".tooltipprev .tooltiptext span")
	lastWillSelect  = cascadia.MustCompile(".tooltipwill .tooltiptext")
	lineRecognizers = []func(Line) (Message, bool){
		recognizeChat,
		recognizeSystem,
		recognizeDeadChat,
		recognizePlayerInfo,
	}
)

// Classify returns the first message shape the line matches. A line that
// matches nothing is not an error; ok is false.
func Classify(line Line) (Message, bool) {
	for _, recognize := range lineRecognizers {
		if m, ok := recognize(line); ok {
			return m, true
		}
	}
	return nil, false
}

func recognizeChat(line Line) (Message, bool) {
	if len(line) < 3 {
		return nil, false
	}
	if style, _ := attr(line[2], "style"); style != "" {
		return nil, false
	}
	number, ok := leadingText(line[0])
	if !ok || !strings.HasSuffix(number, "]") {
		return nil, false
	}
	n, err := strconv.Atoi(trimRunes(number, 1, 1))
	if err != nil {
		return nil, false
	}
	name, _ := leadingText(line[1])
	return Chat{WhoNumber: n, WhoName: name, Content: line[2]}, true
}

func recognizeDeadChat(line Line) (Message, bool) {
	if len(line) < 3 {
		return nil, false
	}
	if style, _ := attr(line[2], "style"); style != deadChatStyle {
		return nil, false
	}
	n, err := strconv.Atoi(trimRunes(flatText(line[0]), 1, 1))
	if err != nil {
		return nil, false
	}
	name, ok := leadingText(line[1])
	if !ok {
		return nil, false
	}
	return DeadChat{WhoNumber: n, WhoName: strings.ReplaceAll(name, "-", " "), Content: line[2]}, true
}

func parseRole(n *html.Node) (ColoredRole, bool) {
	text, ok := leadingText(n)
	if !ok {
		return ColoredRole{}, false
	}
	colour := defaultColour
	if style, _ := attr(n, "style"); style != "" {
		if m := roleColourRe.FindStringSubmatch(style); m != nil {
			colour = m[1]
		}
	}
	return ColoredRole{Name: strings.TrimSpace(text), Colour: colour}, true
}

func recognizePlayerInfo(line Line) (Message, bool) {
	if len(line) < 3 {
		return nil, false
	}
	headerText, ok := leadingText(line[0])
	if !ok || headerText == "" {
		return nil, false
	}
	header := strings.Split(headerText, "] ")
	if len(header) < 2 {
		return nil, false
	}
	number, err := strconv.Atoi(trimRunes(header[0], 1, 0))
	if err != nil {
		return nil, false
	}

	userElem, _ := line.At(-2)
	username := flatText(userElem)
	role, ok := parseRole(line[1])
	if !ok {
		return nil, false
	}

	info := PlayerInfo{
		Number:      number,
		GameName:    trimRunes(header[1], 0, 3),
		AccountName: trimRunes(username, usernamePrefixLen, 1),
		Role:        role,
	}
	if prev := prevRoleSelect.MatchFirst(line[2]); prev != nil {
		prevRole, ok := parseRole(prev)
		if !ok {
			return nil, false
		}
		info.PrevRole = &prevRole
	}
	if willElem, ok := line.At(-3); ok {
		info.LastWill = lastWillSelect.MatchFirst(willElem)
	}
	vipText, _ := leadingText(line[2])
	info.IsVIP = vipMarkers[vipText]
	return info, true
}

// trimRunes drops head runes from the front and tail runes from the back,
// yielding "" when nothing is left.
func trimRunes(s string, head, tail int) string {
	r := []rune(s)
	if head+tail >= len(r) {
		return ""
	}
	return string(r[head : len(r)-tail])
}

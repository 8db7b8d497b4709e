package gamelog

import (
	"fmt"
	"strings"
)

// Version is the analysis format version. Stored analyses older than this
// are re-run by the ingest pipeline.
const Version = 1

// Faction is a winning alignment. Factions are singletons and are compared
// by pointer.
type Faction struct {
	name string
}

func (f *Faction) String() string {
	if f == nil {
		return "None"
	}
	return f.name
}

// Key returns the serialization key of the faction ("serial_killer").
func (f *Faction) Key() string {
	return strings.ReplaceAll(strings.ToLower(f.name), " ", "_")
}

var (
	Unknown      = &Faction{"Unknown"}
	Town         = &Faction{"Town"}
	Coven        = &Faction{"Coven"}
	Apocalypse   = &Faction{"Apocalypse"}
	Arsonist     = &Faction{"Arsonist"}
	SerialKiller = &Faction{"Serial Killer"}
	Shroud       = &Faction{"Shroud"}
	Werewolf     = &Faction{"Werewolf"}
	Vampire      = &Faction{"Vampire"}
)

// Factions lists every faction except the Unknown sentinel.
var Factions = []*Faction{Town, Coven, Apocalypse, Arsonist, SerialKiller, Shroud, Werewolf, Vampire}

var factionByKey = func() map[string]*Faction {
	m := make(map[string]*Faction, len(Factions)+1)
	for _, f := range append([]*Faction{Unknown}, Factions...) {
		m[f.Key()] = f
	}
	return m
}()

// FactionByKey looks a faction up by its serialization key.
func FactionByKey(key string) (*Faction, bool) {
	f, ok := factionByKey[key]
	return f, ok
}

// Role is a character class. DefaultFaction is nil for neutral roles that
// win on their own terms.
type Role struct {
	Name           string
	DefaultFaction *Faction
}

func (r *Role) String() string {
	return r.Name
}

// Roles with special handling in the analyzer.
const (
	RoleJester         = "Jester"
	RoleCursedSoul     = "Cursed Soul"
	RoleVampire        = "Vampire"
	RoleCultist        = "Cultist"
	RoleHexMaster      = "Hex Master"
	RoleNecromancer    = "Necromancer"
	RoleRetributionist = "Retributionist"
)

// Bucket is a named group of roles used for reporting.
type Bucket struct {
	Name  string
	Roles []*Role
}

// Neutral reports whether the bucket holds neutral roles.
func (b Bucket) Neutral() bool {
	return strings.HasPrefix(b.Name, "Neutral")
}

func bucket(name string, faction *Faction, roles ...string) Bucket {
	b := Bucket{Name: name}
	for _, r := range roles {
		b.Roles = append(b.Roles, &Role{Name: r, DefaultFaction: faction})
	}
	return b
}

// Buckets partitions the full role table. It is read-only.
var Buckets = []Bucket{
	bucket("Town Investigative", Town, "Coroner", "Investigator", "Lookout", "Psychic", "Seer", "Sheriff", "Spy", "Tracker"),
	bucket("Town Protective", Town, "Bodyguard", "Cleric", "Crusader", "Oracle", "Trapper"),
	bucket("Town Killing", Town, "Deputy", "Trickster", "Veteran", "Vigilante"),
	bucket("Town Support", Town, "Admirer", "Amnesiac", "Retributionist", "Socialite", "Tavern Keeper"),
	bucket("Town Power", Town, "Jailor", "Marshal", "Mayor", "Monarch", "Prosecutor"),
	bucket("Town Outlier", Town, "Catalyst", "Pilgrim"),

	bucket("Coven Power", Coven, "Coven Leader", "Hex Master", "Witch"),
	bucket("Coven Killing", Coven, "Conjurer", "Jinx", "Ritualist"),
	bucket("Coven Deception", Coven, "Dreamweaver", "Enchanter", "Illusionist", "Medusa"),
	bucket("Coven Utility", Coven, "Necromancer", "Poisoner", "Potion Master", "Voodoo Master", "Wildling"),
	bucket("Coven Outlier", Coven, "Covenite", "Cultist"),

	bucket("Neutral Evil", nil, "Doomsayer", "Executioner", "Jester", "Pirate"),
	{Name: "Neutral Killing", Roles: []*Role{
		{"Arsonist", Arsonist},
		{"Serial Killer", SerialKiller},
		{"Shroud", Shroud},
		{"Werewolf", Werewolf},
	}},
	bucket("Neutral Apocalypse", Apocalypse, "Baker", "Berserker", "Plaguebearer", "Soul Collector", "Famine", "War", "Pestilence", "Death"),
	{Name: "Neutral Outlier", Roles: []*Role{
		{"Cursed Soul", nil},
		{"Vampire", Vampire},
	}},
}

var (
	roleByName = map[string]*Role{}
	bucketOf   = map[*Role]string{}
)

func init() {
	for _, b := range Buckets {
		for _, r := range b.Roles {
			roleByName[r.Name] = r
			bucketOf[r] = b.Name
		}
	}
}

// RoleByName looks a role up by its display name.
func RoleByName(name string) (*Role, bool) {
	r, ok := roleByName[name]
	return r, ok
}

// BucketOf returns the bucket name of a role.
func BucketOf(r *Role) string {
	return bucketOf[r]
}

// IsNeutral reports whether the role sits in a Neutral bucket.
func IsNeutral(r *Role) bool {
	return strings.HasPrefix(bucketOf[r], "Neutral")
}

// Identity is a role together with the faction it actually played for.
type Identity struct {
	Role    *Role
	Faction *Faction
}

// NewIdentity returns the identity of a role playing for its default faction.
func NewIdentity(r *Role) Identity {
	return Identity{Role: r, Faction: r.DefaultFaction}
}

// IsWrongFaction reports whether the identity plays against its role's default.
func (i Identity) IsWrongFaction() bool {
	return i.Faction != i.Role.DefaultFaction
}

func (i Identity) String() string {
	if !i.IsWrongFaction() {
		return i.Role.Name
	}
	return fmt.Sprintf("%s (%s)", i.Role.Name, i.Faction)
}

// Phase is the half of a game day.
type Phase int

const (
	PhaseDay Phase = iota
	PhaseNight
)

func (p Phase) String() string {
	if p == PhaseNight {
		return "night"
	}
	return "day"
}

// DayTime is a point in the game. Day N precedes night N, which precedes day N+1.
type DayTime struct {
	Day   int
	Phase Phase
}

// Before reports whether t is strictly earlier than o.
func (t DayTime) Before(o DayTime) bool {
	if t.Day != o.Day {
		return t.Day < o.Day
	}
	return t.Phase < o.Phase
}

// InDays shifts the time by delta days, keeping the phase.
func (t DayTime) InDays(delta int) DayTime {
	return DayTime{Day: t.Day + delta, Phase: t.Phase}
}

func (t DayTime) String() string {
	if t.Phase == PhaseNight {
		return fmt.Sprintf("N%d", t.Day)
	}
	return fmt.Sprintf("D%d", t.Day)
}

// Player is one seat of a match.
type Player struct {
	Number        int
	GameName      string
	AccountName   string
	StartingIdent Identity
	EndingIdent   Identity
	Died          *DayTime
	Won           bool
}

func (p *Player) String() string {
	ident := p.EndingIdent.String()
	if p.StartingIdent != p.EndingIdent {
		ident = fmt.Sprintf("%s (originally %s)", p.EndingIdent, p.StartingIdent)
	}
	won, died := ' ', ' '
	if p.Won {
		won = '*'
	}
	if p.Died != nil {
		died = 'x'
	}
	return fmt.Sprintf("%c%c %4s %s as %s - %s", won, died, fmt.Sprintf("[%d]", p.Number), p.AccountName, p.GameName, ident)
}

// Outcome classifies how a match was decided.
type Outcome int

const (
	OutcomeNormal Outcome = iota
	OutcomeHexBomb
	OutcomeDeathWin
	OutcomeCountdownWin
	OutcomeNoDeathsDraw
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHexBomb:
		return "hex_bomb"
	case OutcomeDeathWin:
		return "death"
	case OutcomeCountdownWin:
		return "tt_countdown"
	case OutcomeNoDeathsDraw:
		return "no_deaths"
	default:
		return "normal"
	}
}

// Modifier tags.
const (
	ModifierTownTraitor = "Town Traitor"
	ModifierVIP         = "VIP"
)

// GameResult is the analysed outcome of one match. Victor is nil for a draw
// and Unknown when no rule could decide the match.
type GameResult struct {
	Players     []*Player
	Victor      *Faction
	HuntReached *DayTime
	Modifiers   []string
	VIP         *Player
	Ended       DayTime
	Outcome     Outcome
}

// HasModifier reports whether the match carried the given modifier tag.
func (g *GameResult) HasModifier(mod string) bool {
	for _, m := range g.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

// SawHunt reports whether the player was still in the game when the hunt
// was reached.
func (g *GameResult) SawHunt(p *Player) (bool, error) {
	found := false
	for _, q := range g.Players {
		if q == p {
			found = true
			break
		}
	}
	if !found {
		return false, fmt.Errorf("player %q is not from this game", p.GameName)
	}
	if g.HuntReached == nil {
		return false, nil
	}
	return p.Died == nil || !p.Died.Before(*g.HuntReached), nil
}

func (g *GameResult) String() string {
	lines := make([]string, len(g.Players))
	for i, p := range g.Players {
		lines[i] = p.String()
	}
	return strings.Join(lines, "\n")
}

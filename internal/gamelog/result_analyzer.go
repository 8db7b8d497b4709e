package gamelog

import (
	"tosgamelogs/internal/log"
)

// MinPlayers is the smallest roster a real gamelog has.
const MinPlayers = 5

type colouredPlayer struct {
	player *Player
	colour string
}

// ResultAnalyzer works out who won a match.
type ResultAnalyzer struct {
	players      map[string]*Player
	order        []*Player
	inferredDead map[*Player]bool
	townColours  []colouredPlayer
	covenColour  string
	disconnected map[string]bool
	huntReached  *DayTime
	inTribunal   bool
	trialPeriod  bool
	time         DayTime
	modifiers    []string
	deathPopped  bool
	drawTomorrow bool
	vip          *Player
	result       *GameResult
}

// NewResultAnalyzer returns an analyzer positioned at day 1.
func NewResultAnalyzer() *ResultAnalyzer {
	return &ResultAnalyzer{
		players:      map[string]*Player{},
		inferredDead: map[*Player]bool{},
		disconnected: map[string]bool{},
		time:         DayTime{Day: 1, Phase: PhaseDay},
	}
}

func (a *ResultAnalyzer) player(who string) (*Player, bool) {
	p, ok := a.players[who]
	if !ok {
		log.Debug("gamelog: event for unknown player", "name", who, "time", a.time.String())
	}
	return p, ok
}

func (a *ResultAnalyzer) addPlayer(p *Player) {
	if old, ok := a.players[p.GameName]; ok {
		for i, q := range a.order {
			if q == old {
				a.order[i] = p
			}
		}
	} else {
		a.order = append(a.order, p)
	}
	a.players[p.GameName] = p
}

// kill records a death. Inferred deaths (wills, unresolved disconnects)
// give way to a later explicit one.
func (a *ResultAnalyzer) kill(who string, lastNight, inferred bool) {
	p, ok := a.player(who)
	if !ok {
		return
	}
	if p.Died != nil && (inferred || !a.inferredDead[p]) {
		return
	}
	if p.Died == nil {
		a.drawTomorrow = false
	}
	when := a.time
	if lastNight {
		when = DayTime{Day: a.time.Day - 1, Phase: PhaseNight}
	}
	p.Died = &when
	a.inferredDead[p] = inferred
}

func (a *ResultAnalyzer) judgeMiscolouredTownies() {
	for _, tc := range a.townColours {
		if tc.colour == a.covenColour {
			tc.player.StartingIdent.Faction = Coven
			tc.player.EndingIdent.Faction = Coven
			a.modifiers = append(a.modifiers, ModifierTownTraitor)
		}
	}
}

func (a *ResultAnalyzer) playerInfo(m PlayerInfo) error {
	endRole, ok := RoleByName(m.Role.Name)
	if !ok {
		return &UnsupportedRoleError{Name: m.Role.Name}
	}
	ending := NewIdentity(endRole)
	starting := ending
	if m.PrevRole != nil {
		startRole, ok := RoleByName(m.PrevRole.Name)
		if !ok {
			return &UnsupportedRoleError{Name: m.PrevRole.Name}
		}
		starting = NewIdentity(startRole)
	}

	// Only a vampire's colour tells the truth about who they ended up with.
	shown := ending.Faction
	if endRole.Name != RoleVampire {
		ending.Faction = starting.Faction
	}

	p := &Player{
		Number:        m.Number,
		GameName:      m.GameName,
		AccountName:   m.AccountName,
		StartingIdent: starting,
		EndingIdent:   ending,
	}
	if m.IsVIP {
		a.vip = p
		a.modifiers = append(a.modifiers, ModifierVIP)
	}
	a.addPlayer(p)

	switch shown {
	case Coven:
		a.covenColour = m.Role.Colour
	case Town:
		a.townColours = append(a.townColours, colouredPlayer{player: p, colour: m.Role.Colour})
	}
	return nil
}

func (a *ResultAnalyzer) Consume(msg Message) error {
	switch m := msg.(type) {
	case PlayerInfo:
		return a.playerInfo(m)
	case LeftAWill:
		a.kill(m.Who, false, true)
	case Upped:
		if a.inTribunal {
			a.kill(m.Who, false, false)
		}
	case NightDeath:
		a.kill(m.Who, true, false)
	case DayDeath:
		a.kill(m.Who, false, false)
	case FoundGuilty:
		if p, ok := a.player(m.Who); ok && p.EndingIdent.Role.Name == RoleJester {
			p.Won = true
		}
		a.kill(m.Who, false, false)
	case DayStart:
		if m.Day == 1 {
			a.judgeMiscolouredTownies()
			break
		}
		a.time = DayTime{Day: m.Day, Phase: PhaseDay}
		a.trialPeriod = false
		for who := range a.disconnected {
			a.kill(who, true, true)
		}
		clear(a.disconnected)
	case NightStart:
		a.time = DayTime{Day: m.Night, Phase: PhaseNight}
		a.deathPopped = false
		a.inTribunal = false
	case LeftTown:
		them, ok := a.player(m.Who)
		if !ok {
			break
		}
		if them.StartingIdent.Role.Name != RoleCursedSoul {
			them.Won = true
			break
		}
		for _, p := range a.order {
			if p.StartingIdent.Role.Name == RoleCursedSoul {
				p.Won = true
			}
		}
	case HuntWarning:
		if a.huntReached == nil {
			a.huntReached = &DayTime{Day: a.time.Day + m.DaysLeft - 3, Phase: PhaseDay}
		}
	case Tribunal:
		a.inTribunal = true
	case Disconnect:
		a.disconnected[m.Who] = true
	case Reconnect:
		if a.disconnected[m.Who] {
			delete(a.disconnected, m.Who)
		} else if p, ok := a.player(m.Who); ok {
			// never saw them leave, so they are alive after all
			p.Died = nil
			delete(a.inferredDead, p)
		}
	case TrialsRemaining:
		if !a.trialPeriod {
			a.trialPeriod = true
		}
	case DeathPop:
		a.deathPopped = true
	case DrawWarning:
		a.drawTomorrow = true
	}
	return nil
}

func isEvilRaiser(i Identity) bool {
	return i.Role.Name == RoleNecromancer || i.Role.Name == RoleRetributionist && i.Faction != Town
}

func (a *ResultAnalyzer) living(f *Faction) []*Player {
	var out []*Player
	for _, p := range a.order {
		if p.Died == nil && p.EndingIdent.Faction == f {
			out = append(out, p)
		}
	}
	return out
}

func onlyFactions(set map[*Faction]bool, fs ...*Faction) bool {
	if len(set) != len(fs) {
		return false
	}
	for _, f := range fs {
		if !set[f] {
			return false
		}
	}
	return true
}

// decide runs the tie-break cascade for a match that ended with more than
// one faction alive.
func (a *ResultAnalyzer) decide(alive map[*Faction]bool) (*Faction, Outcome) {
	if a.deathPopped {
		return Apocalypse, OutcomeDeathWin
	}
	if a.huntReached != nil && a.huntReached.Day == a.time.Day-3 {
		return Coven, OutcomeCountdownWin
	}
	if a.drawTomorrow {
		return nil, OutcomeNoDeathsDraw
	}

	if onlyFactions(alive, Town, Coven) {
		lastTown := a.living(Town)
		if len(lastTown) == 1 && a.anyStartingRole(RoleCultist) {
			lastTown[0].EndingIdent.Faction = Coven
			return Coven, OutcomeNormal
		}
	}
	if onlyFactions(alive, Town, Vampire) {
		if lastTown := a.living(Town); len(lastTown) <= 3 {
			for _, p := range lastTown {
				p.EndingIdent.Faction = Vampire
			}
			return Vampire, OutcomeNormal
		}
	}

	// Hex bomb. There is no message for it, so this is a guess from who
	// could still have set it off.
	for _, hm := range a.order {
		if hm.EndingIdent.Role.Name != RoleHexMaster {
			continue
		}
		if hm.Died == nil || a.anyLiving(isEvilRaiser) {
			return Coven, OutcomeHexBomb
		}
		break
	}
	return Unknown, OutcomeNormal
}

func (a *ResultAnalyzer) anyStartingRole(name string) bool {
	for _, p := range a.order {
		if p.StartingIdent.Role.Name == name {
			return true
		}
	}
	return false
}

func (a *ResultAnalyzer) anyLiving(pred func(Identity) bool) bool {
	for _, p := range a.order {
		if p.Died == nil && pred(p.EndingIdent) {
			return true
		}
	}
	return false
}

func (a *ResultAnalyzer) Result() (*GameResult, error) {
	if a.result != nil {
		return a.result, nil
	}
	if len(a.order) < MinPlayers {
		return nil, ErrNotLog
	}

	alive := map[*Faction]bool{}
	for _, p := range a.order {
		if f := p.EndingIdent.Faction; p.Died == nil && f != nil && f != Unknown {
			alive[f] = true
		}
	}

	victor, outcome := Unknown, OutcomeNormal
	switch len(alive) {
	case 0:
		victor = nil
	case 1:
		for f := range alive {
			victor = f
		}
	default:
		victor, outcome = a.decide(alive)
	}

	if victor != Unknown {
		for _, p := range a.order {
			if p.EndingIdent.Faction == victor {
				p.Won = true
			}
		}
	}

	a.result = &GameResult{
		Players:     append([]*Player(nil), a.order...),
		Victor:      victor,
		HuntReached: a.huntReached,
		Modifiers:   append([]string(nil), a.modifiers...),
		VIP:         a.vip,
		Ended:       a.time,
		Outcome:     outcome,
	}
	return a.result, nil
}

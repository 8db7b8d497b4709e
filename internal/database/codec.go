package database

import (
	"encoding/json"
	"fmt"

	"tosgamelogs/internal/gamelog"
)

type identityRecord struct {
	Role    string  `json:"role"`
	Faction *string `json:"faction"`
}

// dayTimeRecord serializes as ["night", 2].
type dayTimeRecord gamelog.DayTime

func (t dayTimeRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Phase.String(), t.Day})
}

func (t *dayTimeRecord) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("day time must have 2 elements, got %d", len(pair))
	}
	var phase string
	if err := json.Unmarshal(pair[0], &phase); err != nil {
		return err
	}
	switch phase {
	case "day":
		t.Phase = gamelog.PhaseDay
	case "night":
		t.Phase = gamelog.PhaseNight
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}
	return json.Unmarshal(pair[1], &t.Day)
}

type playerRecord struct {
	Number        int            `json:"number"`
	GameName      string         `json:"game_name"`
	AccountName   string         `json:"account_name"`
	StartingIdent identityRecord `json:"starting_ident"`
	EndingIdent   identityRecord `json:"ending_ident"`
	Died          *dayTimeRecord `json:"died"`
	Won           bool           `json:"won"`
}

type resultRecord struct {
	Players     []playerRecord `json:"players"`
	Victor      *string        `json:"victor"`
	HuntReached *int           `json:"hunt_reached"`
	Modifiers   []string       `json:"modifiers"`
	VIP         *int           `json:"vip"`
	Ended       dayTimeRecord  `json:"ended"`
	Outcome     string         `json:"outcome"`
}

func factionKey(f *gamelog.Faction) *string {
	if f == nil {
		return nil
	}
	k := f.Key()
	return &k
}

func factionOf(key *string) (*gamelog.Faction, error) {
	if key == nil {
		return nil, nil
	}
	f, ok := gamelog.FactionByKey(*key)
	if !ok {
		return nil, fmt.Errorf("unknown faction %q", *key)
	}
	return f, nil
}

func encodeIdentity(i gamelog.Identity) identityRecord {
	return identityRecord{Role: i.Role.Name, Faction: factionKey(i.Faction)}
}

func decodeIdentity(r identityRecord) (gamelog.Identity, error) {
	role, ok := gamelog.RoleByName(r.Role)
	if !ok {
		return gamelog.Identity{}, &gamelog.UnsupportedRoleError{Name: r.Role}
	}
	f, err := factionOf(r.Faction)
	if err != nil {
		return gamelog.Identity{}, err
	}
	return gamelog.Identity{Role: role, Faction: f}, nil
}

var outcomes = map[string]gamelog.Outcome{}

func init() {
	for _, o := range []gamelog.Outcome{
		gamelog.OutcomeNormal,
		gamelog.OutcomeHexBomb,
		gamelog.OutcomeDeathWin,
		gamelog.OutcomeCountdownWin,
		gamelog.OutcomeNoDeathsDraw,
	} {
		outcomes[o.String()] = o
	}
}

// EncodeResult serializes a result for the analysis column.
func EncodeResult(g *gamelog.GameResult) ([]byte, error) {
	rec := resultRecord{
		Players:   make([]playerRecord, len(g.Players)),
		Victor:    factionKey(g.Victor),
		Modifiers: g.Modifiers,
		Ended:     dayTimeRecord(g.Ended),
		Outcome:   g.Outcome.String(),
	}
	if rec.Modifiers == nil {
		rec.Modifiers = []string{}
	}
	for i, p := range g.Players {
		rec.Players[i] = playerRecord{
			Number:        p.Number,
			GameName:      p.GameName,
			AccountName:   p.AccountName,
			StartingIdent: encodeIdentity(p.StartingIdent),
			EndingIdent:   encodeIdentity(p.EndingIdent),
			Died:          (*dayTimeRecord)(p.Died),
			Won:           p.Won,
		}
		if p == g.VIP {
			idx := i
			rec.VIP = &idx
		}
	}
	if g.HuntReached != nil {
		day := g.HuntReached.Day
		rec.HuntReached = &day
	}
	return json.Marshal(rec)
}

// DecodeResult is the inverse of EncodeResult.
func DecodeResult(data []byte) (*gamelog.GameResult, error) {
	var rec resultRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}

	g := &gamelog.GameResult{
		Players: make([]*gamelog.Player, len(rec.Players)),
		Ended:   gamelog.DayTime(rec.Ended),
	}
	if len(rec.Modifiers) > 0 {
		g.Modifiers = rec.Modifiers
	}
	var err error
	if g.Victor, err = factionOf(rec.Victor); err != nil {
		return nil, err
	}
	for i, pr := range rec.Players {
		p := &gamelog.Player{
			Number:      pr.Number,
			GameName:    pr.GameName,
			AccountName: pr.AccountName,
			Died:        (*gamelog.DayTime)(pr.Died),
			Won:         pr.Won,
		}
		if p.StartingIdent, err = decodeIdentity(pr.StartingIdent); err != nil {
			return nil, err
		}
		if p.EndingIdent, err = decodeIdentity(pr.EndingIdent); err != nil {
			return nil, err
		}
		g.Players[i] = p
	}
	if rec.VIP != nil {
		if *rec.VIP < 0 || *rec.VIP >= len(g.Players) {
			return nil, fmt.Errorf("vip index %d out of range", *rec.VIP)
		}
		g.VIP = g.Players[*rec.VIP]
	}
	if rec.HuntReached != nil {
		g.HuntReached = &gamelog.DayTime{Day: *rec.HuntReached, Phase: gamelog.PhaseDay}
	}
	o, ok := outcomes[rec.Outcome]
	if !ok && rec.Outcome != "" {
		return nil, fmt.Errorf("unknown outcome %q", rec.Outcome)
	}
	g.Outcome = o
	return g, nil
}

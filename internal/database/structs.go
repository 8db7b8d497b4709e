package database

import (
	"errors"
	"time"

	"tosgamelogs/internal/gamelog"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Gamelog is one uploaded transcript, stored after tag cleaning.
type Gamelog struct {
	Hash         string
	Filename     string
	Uploader     string
	UploadID     string
	FilenameTime *time.Time
	UploadedAt   time.Time
	CleanContent string
	Game         string // gist of the game it was matched to, if any
}

// Game is one analysed match. FromLog is the richest transcript seen so far,
// FirstLog the earliest.
type Game struct {
	Gist            string
	FromLog         string
	FirstLog        string
	MessageCount    int
	Result          *gamelog.GameResult
	AnalysisVersion int
	AddedAt         time.Time
}

// UpsertResult reports what UpsertGame did.
type UpsertResult struct {
	Added    bool
	Replaced bool
}

// GameFilter narrows FindGames. Zero fields do not filter.
type GameFilter struct {
	Account string
	Victor  string // faction key, or "draw"
	Role    string // ending role of any player
	Limit   int
}

// VictorDraw selects drawn games in GameFilter.Victor.
const VictorDraw = "draw"

// StaleGame is a game whose stored analysis predates the current engine.
type StaleGame struct {
	Gist         string
	FromLog      string
	CleanContent string
}

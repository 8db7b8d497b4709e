package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tosgamelogs/internal/gamelog"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "gamelogs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func role(t *testing.T, name string) *gamelog.Role {
	t.Helper()
	r, ok := gamelog.RoleByName(name)
	require.True(t, ok, name)
	return r
}

func sampleResult(t *testing.T, accounts ...string) *gamelog.GameResult {
	t.Helper()
	roles := []string{"Sheriff", "Jailor", "Coven Leader", "Poisoner", "Witch"}
	g := &gamelog.GameResult{
		Victor:  gamelog.Coven,
		Ended:   gamelog.DayTime{Day: 4, Phase: gamelog.PhaseNight},
		Outcome: gamelog.OutcomeNormal,
	}
	for i, name := range roles {
		account := fmt.Sprintf("acct%d", i+1)
		if i < len(accounts) {
			account = accounts[i]
		}
		ident := gamelog.NewIdentity(role(t, name))
		p := &gamelog.Player{
			Number:        i + 1,
			GameName:      fmt.Sprintf("Player %d", i+1),
			AccountName:   account,
			StartingIdent: ident,
			EndingIdent:   ident,
			Won:           ident.Faction == gamelog.Coven,
		}
		if !p.Won {
			p.Died = &gamelog.DayTime{Day: 3, Phase: gamelog.PhaseNight}
		}
		g.Players = append(g.Players, p)
	}
	return g
}

func saveLog(t *testing.T, db *Database, hash string) {
	t.Helper()
	added, err := db.SaveGamelog(context.Background(), Gamelog{Hash: hash, Filename: hash + ".html", CleanContent: "<html>" + hash + "</html>"})
	require.NoError(t, err)
	require.True(t, added)
}

func TestOpen_AppliesMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gamelogs.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	version, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].ID, version)
	require.NoError(t, db.Close())

	// reopening is a no-op
	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	status, err := db.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Len(t, status, len(migrations))
	for _, s := range status {
		assert.True(t, s.Applied, s.Description)
	}
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()
	saveLog(t, db, "abc")
}

func TestSaveGamelog(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	when := time.Date(2024, 5, 1, 20, 15, 0, 0, time.UTC)

	added, err := db.SaveGamelog(ctx, Gamelog{
		Hash:         "h1",
		Filename:     "log-2024-05-01-20-15.html",
		Uploader:     "someone",
		UploadID:     "batch",
		FilenameTime: &when,
		CleanContent: "<html></html>",
	})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = db.SaveGamelog(ctx, Gamelog{Hash: "h1", Filename: "other.html", CleanContent: "x"})
	require.NoError(t, err)
	assert.False(t, added)

	got, err := db.GetGamelog(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "log-2024-05-01-20-15.html", got.Filename)
	assert.Equal(t, "someone", got.Uploader)
	require.NotNil(t, got.FilenameTime)
	assert.True(t, when.Equal(*got.FilenameTime))
	assert.Empty(t, got.Game)

	_, err = db.GetGamelog(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertGame_KeepsRicherLog(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	for _, h := range []string{"first", "richer", "poorer"} {
		saveLog(t, db, h)
	}
	result := sampleResult(t)
	gist := gamelog.GistOf(result)

	res, err := db.UpsertGame(ctx, Game{Gist: gist, FromLog: "first", MessageCount: 100, Result: result, AnalysisVersion: gamelog.Version})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Added: true}, res)

	res, err = db.UpsertGame(ctx, Game{Gist: gist, FromLog: "richer", MessageCount: 120, Result: result, AnalysisVersion: gamelog.Version})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Replaced: true}, res)

	res, err = db.UpsertGame(ctx, Game{Gist: gist, FromLog: "poorer", MessageCount: 80, Result: result, AnalysisVersion: gamelog.Version})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{}, res)

	g, err := db.GetGame(ctx, gist)
	require.NoError(t, err)
	assert.Equal(t, "richer", g.FromLog)
	assert.Equal(t, "first", g.FirstLog)
	assert.Equal(t, 120, g.MessageCount)
	assert.Equal(t, result, g.Result)
}

func TestLinkGamelog(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	saveLog(t, db, "h")
	result := sampleResult(t)
	gist := gamelog.GistOf(result)
	_, err := db.UpsertGame(ctx, Game{Gist: gist, FromLog: "h", MessageCount: 1, Result: result, AnalysisVersion: 1})
	require.NoError(t, err)

	require.NoError(t, db.LinkGamelog(ctx, "h", gist))
	got, err := db.GetGamelog(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, gist, got.Game)

	assert.ErrorIs(t, db.LinkGamelog(ctx, "nope", gist), ErrNotFound)
}

func TestFindGames(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	covenWin := sampleResult(t, "Ann", "Ben")
	draw := sampleResult(t, "ann", "Cal")
	draw.Victor = nil
	for _, p := range draw.Players {
		p.Won = false
	}
	saveLog(t, db, "a")
	saveLog(t, db, "b")
	_, err := db.UpsertGame(ctx, Game{Gist: gamelog.GistOf(covenWin), FromLog: "a", MessageCount: 1, Result: covenWin, AnalysisVersion: 1})
	require.NoError(t, err)
	_, err = db.UpsertGame(ctx, Game{Gist: gamelog.GistOf(draw), FromLog: "b", MessageCount: 1, Result: draw, AnalysisVersion: 1})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter GameFilter
		want   int
	}{
		{"everything", GameFilter{}, 2},
		{"account ignores case", GameFilter{Account: "ANN"}, 2},
		{"account", GameFilter{Account: "ben"}, 1},
		{"victor", GameFilter{Victor: "coven"}, 1},
		{"draw", GameFilter{Victor: VictorDraw}, 1},
		{"role", GameFilter{Role: "witch"}, 2},
		{"missing role", GameFilter{Role: "Mayor"}, 0},
		{"limit", GameFilter{Limit: 1}, 1},
		{"combined", GameFilter{Account: "cal", Victor: "town"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			games, err := db.FindGames(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, games, tt.want)
		})
	}
}

func TestStaleGamesAndUpdateAnalysis(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	saveLog(t, db, "old")
	result := sampleResult(t)
	gist := gamelog.GistOf(result)
	_, err := db.UpsertGame(ctx, Game{Gist: gist, FromLog: "old", MessageCount: 3, Result: result, AnalysisVersion: 0})
	require.NoError(t, err)

	stale, err := db.StaleGames(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, StaleGame{Gist: gist, FromLog: "old", CleanContent: "<html>old</html>"}, stale[0])

	result.Victor = gamelog.Unknown
	require.NoError(t, db.UpdateAnalysis(ctx, gist, 4, result, 1))

	stale, err = db.StaleGames(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, stale)

	g, err := db.GetGame(ctx, gist)
	require.NoError(t, err)
	assert.Same(t, gamelog.Unknown, g.Result.Victor)
	assert.Equal(t, 4, g.MessageCount)

	assert.ErrorIs(t, db.UpdateAnalysis(ctx, "nope", 1, result, 1), ErrNotFound)
}

func TestNames(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.SaveNames(ctx, []string{"ann", "ben"}))
	require.NoError(t, db.SaveNames(ctx, []string{"ben", "cal"}))

	for want, name := range []string{"ann", "ben", "cal"} {
		id, err := db.PlayerID(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want+1, id, name)
	}
	_, err := db.PlayerID(ctx, "dan")
	assert.ErrorIs(t, err, ErrNotFound)
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"tosgamelogs/internal/gamelog"
	"tosgamelogs/internal/log"
)

// Database stores gamelogs and the games analysed from them in SQLite.
type Database struct {
	db   *sql.DB
	path string
	sq   squirrel.StatementBuilderType
}

// Open opens (creating if needed) the database at path and applies any
// pending migrations. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Database, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer, and an in-memory database lives only as
	// long as its one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	d := &Database{
		db:   db,
		path: path,
		sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question).RunWith(db),
	}
	if err := d.runMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database: opened", "path", path)
	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveGamelog stores a gamelog unless one with the same hash exists. It
// reports whether the row is new.
func (d *Database) SaveGamelog(ctx context.Context, g Gamelog) (bool, error) {
	if g.UploadedAt.IsZero() {
		g.UploadedAt = time.Now().UTC()
	}
	res, err := d.db.ExecContext(ctx, `
	INSERT OR IGNORE INTO gamelogs (hash, filename, uploader, upload_id, filename_time, uploaded_at, clean_content)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.Hash, g.Filename, g.Uploader, g.UploadID, nullTime(g.FilenameTime), g.UploadedAt, g.CleanContent)
	if err != nil {
		return false, fmt.Errorf("failed to save gamelog %s: %w", g.Hash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetGamelog loads a gamelog by hash.
func (d *Database) GetGamelog(ctx context.Context, hash string) (*Gamelog, error) {
	var (
		g            Gamelog
		filenameTime sql.NullTime
		game         sql.NullString
	)
	err := d.db.QueryRowContext(ctx, `
	SELECT hash, filename, uploader, upload_id, filename_time, uploaded_at, clean_content, game
	FROM gamelogs WHERE hash = ?`, hash).Scan(
		&g.Hash, &g.Filename, &g.Uploader, &g.UploadID, &filenameTime, &g.UploadedAt, &g.CleanContent, &game)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("gamelog %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load gamelog %s: %w", hash, err)
	}
	if filenameTime.Valid {
		g.FilenameTime = &filenameTime.Time
	}
	g.Game = game.String
	return &g, nil
}

// UpsertGame records an analysed game. A game already known by gist is
// replaced only when the new transcript has at least as many messages.
func (d *Database) UpsertGame(ctx context.Context, g Game) (UpsertResult, error) {
	analysis, err := EncodeResult(g.Result)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to encode game %s: %w", g.Gist, err)
	}

	var out UpsertResult
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		var existing int
		err := tx.QueryRowContext(ctx, `SELECT message_count FROM games WHERE gist = ?`, g.Gist).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx, `
			INSERT INTO games (gist, from_log, first_log, message_count, analysis, analysis_version, victor, ended_day)
			VALUES (?1, ?2, ?2, ?3, ?4, ?5, ?6, ?7)`,
				g.Gist, g.FromLog, g.MessageCount, string(analysis), g.AnalysisVersion, victorKey(g.Result.Victor), g.Result.Ended.Day)
			if err != nil {
				return fmt.Errorf("failed to insert game: %w", err)
			}
			out.Added = true
		case err != nil:
			return fmt.Errorf("failed to look up game: %w", err)
		case g.MessageCount >= existing:
			_, err = tx.ExecContext(ctx, `
			UPDATE games SET from_log = ?2, message_count = ?3, analysis = ?4, analysis_version = ?5, victor = ?6, ended_day = ?7
			WHERE gist = ?1`,
				g.Gist, g.FromLog, g.MessageCount, string(analysis), g.AnalysisVersion, victorKey(g.Result.Victor), g.Result.Ended.Day)
			if err != nil {
				return fmt.Errorf("failed to replace game: %w", err)
			}
			out.Replaced = true
		default:
			return nil
		}
		return savePlayers(ctx, tx, g.Gist, g.Result)
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to upsert game %s: %w", g.Gist, err)
	}
	return out, nil
}

func savePlayers(ctx context.Context, tx *sql.Tx, gist string, result *gamelog.GameResult) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM game_players WHERE gist = ?`, gist); err != nil {
		return fmt.Errorf("failed to clear players: %w", err)
	}
	insert := squirrel.Insert("game_players").
		Columns("gist", "number", "game_name", "account_name", "starting_role", "ending_role", "faction", "won", "died")
	for _, p := range result.Players {
		var died any
		if p.Died != nil {
			died = p.Died.String()
		}
		insert = insert.Values(gist, p.Number, p.GameName, p.AccountName,
			p.StartingIdent.Role.Name, p.EndingIdent.Role.Name, victorKey(p.EndingIdent.Faction), p.Won, died)
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build player insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save players: %w", err)
	}
	return nil
}

// LinkGamelog marks the gamelog as a transcript of the game.
func (d *Database) LinkGamelog(ctx context.Context, hash, gist string) error {
	res, err := d.db.ExecContext(ctx, `UPDATE gamelogs SET game = ? WHERE hash = ?`, gist, hash)
	if err != nil {
		return fmt.Errorf("failed to link gamelog %s to %s: %w", hash, gist, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("gamelog %s: %w", hash, ErrNotFound)
	}
	return nil
}

const gameColumns = "gist, from_log, first_log, message_count, analysis, analysis_version, added_at"

func scanGame(row squirrel.RowScanner) (*Game, error) {
	var (
		g        Game
		analysis string
	)
	if err := row.Scan(&g.Gist, &g.FromLog, &g.FirstLog, &g.MessageCount, &analysis, &g.AnalysisVersion, &g.AddedAt); err != nil {
		return nil, err
	}
	result, err := DecodeResult([]byte(analysis))
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", g.Gist, err)
	}
	g.Result = result
	return &g, nil
}

// GetGame loads a game by gist.
func (d *Database) GetGame(ctx context.Context, gist string) (*Game, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE gist = ?`, gist)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", gist, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", gist, err)
	}
	return g, nil
}

// FindGames lists games matching the filter, newest first.
func (d *Database) FindGames(ctx context.Context, f GameFilter) ([]*Game, error) {
	query := d.sq.Select(strings.Split(gameColumns, ", ")...).
		From("games").
		OrderBy("added_at DESC", "gist")

	if f.Account != "" {
		query = query.Where("gist IN (SELECT gist FROM game_players WHERE account_name = ? COLLATE NOCASE)", f.Account)
	}
	if f.Role != "" {
		query = query.Where("gist IN (SELECT gist FROM game_players WHERE ending_role = ? COLLATE NOCASE)", f.Role)
	}
	switch f.Victor {
	case "":
	case VictorDraw:
		query = query.Where(squirrel.Eq{"victor": nil})
	default:
		query = query.Where(squirrel.Eq{"victor": strings.ToLower(f.Victor)})
	}
	if f.Limit > 0 {
		query = query.Limit(uint64(f.Limit))
	}

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// StaleGames returns the games analysed by an engine older than version,
// with the content of their best transcript.
func (d *Database) StaleGames(ctx context.Context, version int) ([]StaleGame, error) {
	rows, err := d.db.QueryContext(ctx, `
	SELECT games.gist, games.from_log, gamelogs.clean_content
	FROM games JOIN gamelogs ON gamelogs.hash = games.from_log
	WHERE games.analysis_version < ?
	ORDER BY games.gist`, version)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale games: %w", err)
	}
	defer rows.Close()

	var stale []StaleGame
	for rows.Next() {
		var s StaleGame
		if err := rows.Scan(&s.Gist, &s.FromLog, &s.CleanContent); err != nil {
			return nil, err
		}
		stale = append(stale, s)
	}
	return stale, rows.Err()
}

// UpdateAnalysis replaces the stored analysis of a game in place.
func (d *Database) UpdateAnalysis(ctx context.Context, gist string, messageCount int, result *gamelog.GameResult, version int) error {
	analysis, err := EncodeResult(result)
	if err != nil {
		return fmt.Errorf("failed to encode game %s: %w", gist, err)
	}
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		UPDATE games SET message_count = ?, analysis = ?, analysis_version = ?, victor = ?, ended_day = ?
		WHERE gist = ?`,
			messageCount, string(analysis), version, victorKey(result.Victor), result.Ended.Day, gist)
		if err != nil {
			return fmt.Errorf("failed to update analysis of %s: %w", gist, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("game %s: %w", gist, ErrNotFound)
		}
		return savePlayers(ctx, tx, gist, result)
	})
}

// SaveNames gives every new account name the next free player id.
func (d *Database) SaveNames(ctx context.Context, accounts []string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range accounts {
			_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO names VALUES (?, (SELECT COALESCE(MAX(player), 0) + 1 FROM names))`, name)
			if err != nil {
				return fmt.Errorf("failed to save name %q: %w", name, err)
			}
		}
		return nil
	})
}

// PlayerID returns the stable id of an account name.
func (d *Database) PlayerID(ctx context.Context, account string) (int, error) {
	var id int
	err := d.db.QueryRowContext(ctx, `SELECT player FROM names WHERE account_name = ?`, account).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("account %q: %w", account, ErrNotFound)
	}
	return id, err
}

func victorKey(f *gamelog.Faction) any {
	if f == nil {
		return nil
	}
	return f.Key()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

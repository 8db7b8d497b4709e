// Package ingest turns uploaded gamelog files into stored, analysed games.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"tosgamelogs/internal/archive"
	"tosgamelogs/internal/config"
	"tosgamelogs/internal/database"
	"tosgamelogs/internal/gamelog"
	"tosgamelogs/internal/log"
)

// Upload is one file handed to the pipeline.
type Upload struct {
	Filename string
	Uploader string
	Content  []byte
}

// Issue is a per-file problem reported back to the uploader.
type Issue struct {
	Filename string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Filename, i.Message)
}

// Report summarizes one batch.
type Report struct {
	BatchID string
	Added   int
	Issues  []Issue
}

// Store is the part of the database the pipeline needs.
type Store interface {
	SaveGamelog(ctx context.Context, g database.Gamelog) (bool, error)
	UpsertGame(ctx context.Context, g database.Game) (database.UpsertResult, error)
	LinkGamelog(ctx context.Context, hash, gist string) error
	SaveNames(ctx context.Context, accounts []string) error
	StaleGames(ctx context.Context, version int) ([]database.StaleGame, error)
	UpdateAnalysis(ctx context.Context, gist string, messageCount int, result *gamelog.GameResult, version int) error
}

// Ingester runs uploads through cleaning, storage, analysis and policy.
type Ingester struct {
	store    Store
	archiver archive.Archiver
	policy   config.PolicyConfig
	now      func() time.Time
}

// New returns an Ingester. A nil archiver archives nothing.
func New(store Store, archiver archive.Archiver, policy config.PolicyConfig) *Ingester {
	if archiver == nil {
		archiver = archive.Nop{}
	}
	return &Ingester{store: store, archiver: archiver, policy: policy, now: time.Now}
}

var filenameTimeRe = regexp.MustCompile(`^.*-(\d{4}-\d{2}-\d{2}-\d{2}-\d{2})\.html$`)

// FilenameTime extracts the timestamp the client puts in exported file
// names ("...-2024-05-01-20-15.html").
func FilenameTime(filename string) *time.Time {
	m := filenameTimeRe.FindStringSubmatch(filename)
	if m == nil {
		return nil
	}
	t, err := time.Parse("2006-01-02-15-04", m[1])
	if err != nil {
		return nil
	}
	return &t
}

// decode returns the upload as text. The client normally writes UTF-8; old
// exports are Windows-1252.
func decode(content []byte) (string, error) {
	if utf8.Valid(content) {
		return string(content), nil
	}
	text, err := charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		return "", err
	}
	return string(text), nil
}

// Digest is the storage key of cleaned content.
func Digest(clean string) string {
	sum := sha256.Sum256([]byte(clean))
	return hex.EncodeToString(sum[:])
}

// Ingest processes one batch of uploads. Problems with individual files are
// reported as issues; only storage failures abort the batch.
func (in *Ingester) Ingest(ctx context.Context, uploads ...Upload) (Report, error) {
	report := Report{BatchID: uuid.NewString()}
	for _, up := range uploads {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		added, issue, err := in.ingestOne(ctx, report.BatchID, up)
		if err != nil {
			return report, fmt.Errorf("ingest %s: %w", up.Filename, err)
		}
		if added {
			report.Added++
		}
		if issue != "" {
			report.Issues = append(report.Issues, Issue{Filename: up.Filename, Message: issue})
		}
	}
	log.Info("ingest: batch done", "batch", report.BatchID, "files", len(uploads), "added", report.Added, "issues", len(report.Issues))
	return report, nil
}

func (in *Ingester) ingestOne(ctx context.Context, batchID string, up Upload) (bool, string, error) {
	if !strings.HasSuffix(up.Filename, ".html") {
		return false, "", nil
	}
	text, err := decode(up.Content)
	if err != nil {
		log.Debug("ingest: undecodable upload", "file", up.Filename, "error", err)
		return false, "", nil
	}
	clean := gamelog.CleanTags(text)
	if strings.TrimSpace(clean) == "" {
		return false, "", nil
	}

	digest := Digest(clean)
	isNew, err := in.store.SaveGamelog(ctx, database.Gamelog{
		Hash:         digest,
		Filename:     up.Filename,
		Uploader:     up.Uploader,
		UploadID:     batchID,
		FilenameTime: FilenameTime(up.Filename),
		UploadedAt:   in.now().UTC(),
		CleanContent: clean,
	})
	if err != nil {
		return false, "", err
	}
	if isNew {
		if uri, err := in.archiver.Archive(ctx, digest, []byte(clean)); err != nil {
			log.Warn("ingest: archive failed", "file", up.Filename, "hash", digest, "error", err)
		} else if uri != "" {
			log.Debug("ingest: archived", "file", up.Filename, "uri", uri)
		}
	}

	result, count, err := gamelog.ParseWithCount(clean, gamelog.WithoutCleaning())
	if err != nil {
		if !errors.Is(err, gamelog.ErrBadLog) {
			return false, "", err
		}
		return false, gamelog.Describe(err), nil
	}

	if issue := in.checkPolicy(result); issue != "" {
		log.Warn("ingest: game rejected", "file", up.Filename, "reason", issue)
		return false, issue, nil
	}

	accounts := make([]string, len(result.Players))
	for i, p := range result.Players {
		accounts[i] = p.AccountName
	}
	if err := in.store.SaveNames(ctx, accounts); err != nil {
		return false, "", err
	}

	gist := gamelog.GistOf(result)
	res, err := in.store.UpsertGame(ctx, database.Game{
		Gist:            gist,
		FromLog:         digest,
		MessageCount:    count,
		Result:          result,
		AnalysisVersion: gamelog.Version,
	})
	if err != nil {
		return false, "", err
	}
	if err := in.store.LinkGamelog(ctx, digest, gist); err != nil {
		return false, "", err
	}
	return res.Added, "", nil
}

func (in *Ingester) checkPolicy(g *gamelog.GameResult) string {
	if want := in.policy.RequireModifiers; len(want) > 0 && !slices.Equal(g.Modifiers, want) {
		return "Not a game of " + strings.Join(want, ", ")
	}
	if in.policy.RejectNeutrals {
		for _, p := range g.Players {
			if gamelog.IsNeutral(p.EndingIdent.Role) {
				return "Contains neutrals"
			}
		}
	}
	return ""
}

// Reanalyze re-runs the engine over every game analysed by an older engine
// version. Games whose transcript no longer parses keep their old analysis.
func (in *Ingester) Reanalyze(ctx context.Context) (int, error) {
	stale, err := in.store.StaleGames(ctx, gamelog.Version)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, s := range stale {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		result, count, err := gamelog.ParseWithCount(s.CleanContent, gamelog.WithoutCleaning())
		if err != nil {
			log.Warn("ingest: reanalysis failed", "gist", s.Gist, "log", s.FromLog, "error", err)
			continue
		}
		if gist := gamelog.GistOf(result); gist != s.Gist {
			log.Warn("ingest: reanalysis changed gist", "gist", s.Gist, "new_gist", gist)
		}
		if err := in.store.UpdateAnalysis(ctx, s.Gist, count, result, gamelog.Version); err != nil {
			return updated, err
		}
		updated++
	}
	log.Info("ingest: reanalysis done", "stale", len(stale), "updated", updated)
	return updated, nil
}

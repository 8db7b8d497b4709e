// Package server exposes the engine and the game store over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tosgamelogs/internal/database"
	"tosgamelogs/internal/gamelog"
	"tosgamelogs/internal/log"
)

// MaxUploadBytes bounds the body of POST /parse.
const MaxUploadBytes = 16 << 20

// GameStore is the read side of the database.
type GameStore interface {
	GetGame(ctx context.Context, gist string) (*database.Game, error)
	FindGames(ctx context.Context, f database.GameFilter) ([]*database.Game, error)
	SchemaVersion(ctx context.Context) (int, error)
	MigrationStatus(ctx context.Context) ([]database.MigrationStatus, error)
	PlayerID(ctx context.Context, account string) (int, error)
}

type migrationResponse struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Applied     bool   `json:"applied"`
}

type gameResponse struct {
	Gist            string          `json:"gist"`
	FromLog         string          `json:"from_log,omitempty"`
	FirstLog        string          `json:"first_log,omitempty"`
	MessageCount    int             `json:"message_count"`
	AnalysisVersion int             `json:"analysis_version,omitempty"`
	AddedAt         *time.Time      `json:"added_at,omitempty"`
	Result          json.RawMessage `json:"result"`
}

func newGameResponse(g *database.Game) (gameResponse, error) {
	result, err := database.EncodeResult(g.Result)
	if err != nil {
		return gameResponse{}, err
	}
	resp := gameResponse{
		Gist:            g.Gist,
		FromLog:         g.FromLog,
		FirstLog:        g.FirstLog,
		MessageCount:    g.MessageCount,
		AnalysisVersion: g.AnalysisVersion,
		Result:          result,
	}
	if !g.AddedAt.IsZero() {
		resp.AddedAt = &g.AddedAt
	}
	return resp, nil
}

// New returns the router. store may be nil, in which case only /parse and
// /healthz are served.
func New(store GameStore) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok"}
		if store != nil {
			v, err := store.SchemaVersion(r.Context())
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			resp["schema_version"] = v

			status, err := store.MigrationStatus(r.Context())
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			migrations := make([]migrationResponse, 0, len(status))
			for _, m := range status {
				if !m.Applied {
					resp["status"] = "pending_migrations"
				}
				migrations = append(migrations, migrationResponse{ID: m.ID, Description: m.Description, Applied: m.Applied})
			}
			resp["migrations"] = migrations
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/parse", handleParse)

	if store != nil {
		r.Get("/games", func(w http.ResponseWriter, r *http.Request) {
			handleFindGames(w, r, store)
		})
		// gists contain slashes
		r.Get("/games/*", func(w http.ResponseWriter, r *http.Request) {
			handleGetGame(w, r, store)
		})
		r.Get("/players/{account}", func(w http.ResponseWriter, r *http.Request) {
			handleGetPlayer(w, r, store)
		})
	}
	return r
}

func handleParse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "gamelog too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, count, err := gamelog.ParseWithCount(string(body))
	if err != nil {
		if errors.Is(err, gamelog.ErrBadLog) {
			writeError(w, http.StatusUnprocessableEntity, gamelog.Describe(err))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp, err := newGameResponse(&database.Game{
		Gist:         gamelog.GistOf(result),
		MessageCount: count,
		Result:       result,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleFindGames(w http.ResponseWriter, r *http.Request, store GameStore) {
	q := r.URL.Query()
	filter := database.GameFilter{
		Account: q.Get("account"),
		Victor:  q.Get("victor"),
		Role:    q.Get("role"),
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	games, err := store.FindGames(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]gameResponse, 0, len(games))
	for _, g := range games {
		resp, err := newGameResponse(g)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": out})
}

func handleGetGame(w http.ResponseWriter, r *http.Request, store GameStore) {
	game, err := store.GetGame(r.Context(), chi.URLParam(r, "*"))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp, err := newGameResponse(game)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetPlayer reports the stable id of an account and the games it played.
func handleGetPlayer(w http.ResponseWriter, r *http.Request, store GameStore) {
	account := chi.URLParam(r, "account")
	id, err := store.PlayerID(r.Context(), account)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	games, err := store.FindGames(r.Context(), database.GameFilter{Account: account})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	gists := make([]string, 0, len(games))
	for _, g := range games {
		gists = append(gists, g.Gist)
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account, "id": id, "games": gists})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info("server: request",
				"id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String())
		}()
		next.ServeHTTP(ww, r)
	})
}

// Serve runs the handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second, IdleTimeout: 60 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("server: shutdown error", "error", err)
		return err
	}
	log.Info("server: stopped")
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tosgamelogs/internal/archive"
	"tosgamelogs/internal/database"
	"tosgamelogs/internal/gamelog"
	"tosgamelogs/internal/ingest"
	"tosgamelogs/internal/log"
	"tosgamelogs/internal/render"
	"tosgamelogs/internal/server"
)

// errFailed is returned when some files could not be processed; the
// details have already been printed.
var errFailed = errors.New("some files failed")

func parseCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Print the result of each gamelog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := false
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				result, count, err := gamelog.ParseWithCount(string(data))
				if err != nil {
					if !errors.Is(err, gamelog.ErrBadLog) {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, gamelog.Describe(err))
					failed = true
					continue
				}
				if asJSON {
					encoded, err := database.EncodeResult(result)
					if err != nil {
						return err
					}
					line, err := json.Marshal(map[string]any{
						"file":          path,
						"gist":          gamelog.GistOf(result),
						"message_count": count,
						"result":        json.RawMessage(encoded),
					})
					if err != nil {
						return err
					}
					fmt.Fprintln(out, string(line))
					continue
				}
				if len(args) > 1 {
					fmt.Fprintf(out, "== %s\n", path)
				}
				fmt.Fprint(out, render.Result(result))
			}
			if failed {
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per file")
	return cmd
}

func transcriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcript FILE",
		Short: "Print the chat and announcements of a gamelog as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			messages, err := gamelog.Messages(string(data))
			if err != nil {
				return errors.New(gamelog.Describe(err))
			}
			fmt.Fprint(cmd.OutOrStdout(), render.Transcript(messages))
			return nil
		},
	}
}

func openDatabase(ctx context.Context) (*database.Database, error) {
	return database.Open(ctx, cfg.Database)
}

func ingestCmd() *cobra.Command {
	var uploader string
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Store gamelogs and the games they record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			arch, closeArchive, err := archive.New(ctx, cfg.Archive.Bucket, cfg.Archive.Endpoint)
			if err != nil {
				return err
			}
			defer closeArchive()

			uploads := make([]ingest.Upload, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				uploads = append(uploads, ingest.Upload{Filename: filepath.Base(path), Uploader: uploader, Content: data})
			}

			report, err := ingest.New(db, arch, cfg.Policy).Ingest(ctx, uploads...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added %d new game(s)\n", report.Added)
			for _, issue := range report.Issues {
				fmt.Fprintln(out, issue)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&uploader, "uploader", os.Getenv("USER"), "name recorded as the uploader")
	return cmd
}

func reanalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reanalyze",
		Short: "Re-run the engine over games analysed by an older version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := ingest.New(db, nil, cfg.Policy).Reanalyze(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d game(s)\n", n)
			return nil
		},
	}
}

func gamesCmd() *cobra.Command {
	var (
		filter database.GameFilter
		full   bool
	)
	cmd := &cobra.Command{
		Use:   "games",
		Short: "List stored games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			games, err := db.FindGames(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, g := range games {
				fmt.Fprintf(out, "%s  %-8s  %s\n", g.AddedAt.Format(time.DateTime), g.Result.Victor, g.Gist)
				if full {
					fmt.Fprintln(out, render.Result(g.Result))
				}
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&filter.Account, "account", "", "only games with this account")
	flags.StringVar(&filter.Victor, "victor", "", "only games won by this faction key, or \"draw\"")
	flags.StringVar(&filter.Role, "role", "", "only games where someone ended as this role")
	flags.IntVar(&filter.Limit, "limit", 20, "maximum number of games (0 for all)")
	flags.BoolVar(&full, "full", false, "print each game's players")
	return cmd
}

func serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if listen == "" {
				listen = cfg.Listen
			}
			log.Info("serve: starting", "addr", listen, "database", cfg.Database)
			return server.Serve(ctx, listen, server.New(db))
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (overrides config)")
	return cmd
}

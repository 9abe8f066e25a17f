package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/halvext/drift/internal/config"
	"github.com/halvext/drift/internal/engine"
	"github.com/halvext/drift/internal/errors"
	"github.com/halvext/drift/internal/ops"
	"github.com/halvext/drift/internal/profile"
	"github.com/halvext/drift/internal/scheduler"
	"github.com/halvext/drift/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, eng *engine.Engine) *cli.App {
	app := &cli.App{
		Name:    "drift",
		Usage:   "Behavioral profile synthesis engine",
		Version: Version,
		Commands: []*cli.Command{
			recordSearchCmd(db, eng),
			recordPageCmd(db),
			closeSessionCmd(db, eng),
			getCmd(db),
			historyCmd(db),
			summaryCmd(db, eng),
			statusCmd(db, eng),
			resetCmd(db),
			webCmd(db, cfg, eng),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// recordSearchCmd creates the record-search command.
func recordSearchCmd(db *sql.DB, eng *engine.Engine) *cli.Command {
	return &cli.Command{
		Name:      "record-search",
		Usage:     "Record a search query in a session",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Required: true, Usage: "Session ID"},
			&cli.StringFlag{Name: "tab", Usage: "Originating tab ID"},
			&cli.StringFlag{Name: "at", Usage: "Event time (RFC3339, default now)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.RecordSearchInput{
				SessionID: c.String("session"),
				TabID:     c.String("tab"),
				Query:     strings.Join(c.Args().Slice(), " "),
			}

			at, err := parseTimeFlag(c.String("at"))
			if err != nil {
				return outputError(err)
			}
			input.At = at

			output, err := ops.RecordSearch(db, eng, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// recordPageCmd creates the record-page command.
func recordPageCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "record-page",
		Usage: "Record a page visit with engagement signals (optionally reads content sample from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Required: true, Usage: "Session ID"},
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Required: true, Usage: "Page URL"},
			&cli.StringFlag{Name: "domain", Usage: "Domain (derived from URL if omitted)"},
			&cli.StringFlag{Name: "tab", Usage: "Originating tab ID"},
			&cli.StringFlag{Name: "started-at", Usage: "Visit start (RFC3339, default now)"},
			&cli.StringFlag{Name: "ended-at", Usage: "Visit end (RFC3339, default started-at)"},
			&cli.Float64Flag{Name: "active-seconds", Usage: "Active time on the page"},
			&cli.Float64Flag{Name: "scroll-depth", Usage: "Scroll depth, 0-100"},
			&cli.IntFlag{Name: "clicks", Usage: "Click count"},
			&cli.IntFlag{Name: "copies", Usage: "Copy count"},
			&cli.IntFlag{Name: "pastes", Usage: "Paste count"},
			&cli.IntFlag{Name: "highlights", Usage: "Highlight count"},
			&cli.IntFlag{Name: "tab-switches", Usage: "Tab switch count"},
			&cli.Float64Flag{Name: "score", Usage: "Engagement score, 0-100"},
		},
		Action: func(c *cli.Context) error {
			input := ops.RecordPageInput{
				SessionID: c.String("session"),
				TabID:     c.String("tab"),
				URL:       c.String("url"),
				Domain:    c.String("domain"),
				Engagement: profile.Engagement{
					ActiveTimeSeconds: c.Float64("active-seconds"),
					ScrollDepth:       c.Float64("scroll-depth"),
					Clicks:            c.Int("clicks"),
					Copies:            c.Int("copies"),
					Pastes:            c.Int("pastes"),
					Highlights:        c.Int("highlights"),
					TabSwitches:       c.Int("tab-switches"),
					EngagementScore:   c.Float64("score"),
				},
			}

			startedAt, err := parseTimeFlag(c.String("started-at"))
			if err != nil {
				return outputError(err)
			}
			input.StartedAt = startedAt

			endedAt, err := parseTimeFlag(c.String("ended-at"))
			if err != nil {
				return outputError(err)
			}
			input.EndedAt = endedAt

			// Content sample comes from stdin if piped
			if stdinHasData() {
				sample, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				input.ContentSample = sample
			}

			output, err := ops.RecordPage(db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// closeSessionCmd creates the close-session command.
func closeSessionCmd(db *sql.DB, eng *engine.Engine) *cli.Command {
	return &cli.Command{
		Name:      "close-session",
		Usage:     "Close a session, snapshot it, and merge it into the profile",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session ID"},
		},
		Action: func(c *cli.Context) error {
			sessionID := c.String("session")
			if c.NArg() > 0 {
				sessionID = c.Args().First()
			}

			output, err := ops.CloseSession(db, eng, ops.CloseSessionInput{
				SessionID: sessionID,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// getCmd creates the get command.
func getCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "Show the long-term profile",
		Action: func(c *cli.Context) error {
			output, err := ops.GetProfile(db)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent session snapshots, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Maximum snapshots to return"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(db, ops.HistoryInput{
				Limit: c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(db *sql.DB, eng *engine.Engine) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Generate a natural-language summary of the profile",
		Action: func(c *cli.Context) error {
			output, err := ops.Summarize(context.Background(), db, eng)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(db *sql.DB, eng *engine.Engine) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show engine, queue, and storage health",
		Action: func(c *cli.Context) error {
			output, err := ops.Status(context.Background(), db, eng)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// resetCmd creates the reset command.
func resetCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Delete the profile and snapshot history (the session ledger survives)",
		Action: func(c *cli.Context) error {
			output, err := ops.Reset(db)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// webCmd creates the web command.
func webCmd(db *sql.DB, cfg *config.Config, eng *engine.Engine) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the local dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind := cfg.WebBind
			if b := c.String("bind"); b != "" {
				bind = b
			}
			port := cfg.WebPort
			if p := c.Int("port"); p != 0 {
				port = p
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			eng.StartPoller(ctx, scheduler.DefaultPollInterval)

			srv := web.NewServer(db, cfg, eng, Version, bind, port)
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if dErr, ok := err.(*errors.DriftError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", dErr.Code, dErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseTimeFlag parses an optional RFC3339 flag value.
func parseTimeFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid timestamp %q, want RFC3339", s))
	}
	return &t, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

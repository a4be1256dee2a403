package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/stump/internal/aotargs"
	"github.com/hpungsan/stump/internal/capture"
	"github.com/hpungsan/stump/internal/config"
	"github.com/hpungsan/stump/internal/db"
	"github.com/hpungsan/stump/internal/errors"
	"github.com/hpungsan/stump/internal/logging"
	"github.com/hpungsan/stump/internal/mcp"
	"github.com/hpungsan/stump/internal/report"
)

// appEnv is shared by every command. The logger is built once the global
// flags are parsed.
type appEnv struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
	stderr io.Writer
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config) *cli.App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	rt := &appEnv{db: database, cfg: cfg, logger: zap.NewNop(), stderr: os.Stderr}

	app := &cli.App{
		Name:    "stump",
		Usage:   "Capture AOT compiler invocations from build traces into replayable archives",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: cfg.LogLevel, Usage: "Log level: debug|info|warn|error"},
			&cli.StringFlag{Name: "log-format", Value: cfg.LogFormat, Usage: "Log format: console|json"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "Shorthand for --log-level=debug"},
		},
		Before: func(c *cli.Context) error {
			level := c.String("log-level")
			if c.Bool("verbose") {
				level = "debug"
			}
			rt.logger = logging.New(level, c.String("log-format"), rt.stderr)
			return nil
		},
		After: func(*cli.Context) error {
			// Sync fails on terminals; there is nothing useful to do about it.
			_ = rt.logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			captureCmd(rt),
			inspectCmd(rt),
			listCmd(rt),
			deleteCmd(rt),
			reportCmd(rt),
			tokenizeCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// captureCmd creates the capture command.
func captureCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Archive every AOT compiler invocation of a build trace",
		ArgsUsage: "<trace.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Archive path (.zip); defaults to the captures directory"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one trace path is required"))
			}

			output, err := capture.Run(c.Context, rt.logger, rt.cfg, capture.Input{
				TracePath:  c.Args().First(),
				OutputPath: c.String("output"),
				IndexDB:    rt.db,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// inspectCmd creates the inspect command.
func inspectCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show what a capture of the trace would contain without writing it",
		ArgsUsage: "<trace.json>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "project", Usage: "Print only the rendered replay project"},
			&cli.BoolFlag{Name: "layout", Usage: "Print only the archive layout tree"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one trace path is required"))
			}

			insp, err := capture.Inspect(c.Context, rt.logger, rt.cfg, c.Args().First(), "")
			if err != nil {
				return outputError(err)
			}
			switch {
			case c.Bool("project"):
				_, err = io.WriteString(os.Stdout, insp.Project)
				return err
			case c.Bool("layout"):
				_, err = io.WriteString(os.Stdout, insp.Layout)
				return err
			}
			return outputJSON(insp)
		},
	}
}

// listCmd creates the list command.
func listCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List recorded captures, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "flavor", Usage: "Filter by build flavor"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: db.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			output, err := capture.List(rt.db, capture.ListInput{
				Flavor: c.String("flavor"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove a capture from the index (the archive file is kept)",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if rt.db == nil {
				return outputError(capture.ErrIndexDisabled())
			}
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one capture id is required"))
			}

			output, err := capture.Delete(rt.db, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// reportCmd creates the report command.
func reportCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Write a Markdown (or HTML) report of a trace or recorded capture",
		ArgsUsage: "[trace.json]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Report on a recorded capture instead of a trace path"},
			&cli.BoolFlag{Name: "html", Usage: "Render HTML instead of Markdown"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the report to a file instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			format := report.FormatMarkdown
			if c.Bool("html") {
				format = report.FormatHTML
			}

			output, err := report.Generate(c.Context, rt.logger, rt.cfg, rt.db, report.Input{
				TracePath: c.Args().First(),
				ID:        c.String("id"),
				Format:    format,
			})
			if err != nil {
				return outputError(err)
			}

			if out := c.String("output"); out != "" {
				if err := os.WriteFile(out, []byte(output.Text), 0644); err != nil {
					return outputError(errors.NewIO(out, err))
				}
				return outputJSON(map[string]any{"id": output.ID, "path": out, "bytes": len(output.Text)})
			}
			_, err = io.WriteString(os.Stdout, output.Text)
			return err
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the capture tools over MCP on stdio",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(rt.cfg.DisabledTools); len(unknown) > 0 {
				rt.logger.Warn("unknown disabled_tools entries", zap.Strings("tools", unknown))
			}
			if unknown := mcp.ValidateDisabledTypes(rt.cfg.DisabledTypes); len(unknown) > 0 {
				rt.logger.Warn("unknown disabled_types entries", zap.Strings("types", unknown))
			}
			return mcp.Run(rt.db, rt.cfg, rt.logger, Version)
		},
	}
}

// tokenizeCmd creates the tokenize command.
func tokenizeCmd() *cli.Command {
	return &cli.Command{
		Name:      "tokenize",
		Usage:     "Split a Mono --aot option string into options",
		ArgsUsage: "<options>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one option string is required"))
			}
			return outputJSON(aotargs.Parse(c.Args().First()))
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
	var stumpErr *errors.StumpError
	if stderrors.As(err, &stumpErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", stumpErr.Code, stumpErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sfclink/internal/core/config"
	"sfclink/internal/core/ports"
	"sfclink/internal/data/files"
	"sfclink/internal/ui/report/formats"

	ucli "github.com/urfave/cli/v3"
)

const versionString = "1.0.0"

// exitError carries a process exit code without printing anything more.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string) int {
	err := NewCommand(os.Stdout).Run(ctx, args)
	if err == nil {
		return 0
	}
	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

// NewCommand builds the sfclink command tree writing results to out.
func NewCommand(out io.Writer) *ucli.Command {
	return &ucli.Command{
		Name:    "sfclink",
		Usage:   "Link single-file components and scripts into ordered browser modules",
		Version: versionString,
		Flags: []ucli.Flag{
			&ucli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.DefaultPath,
			},
			&ucli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose logging",
			},
			&ucli.StringFlag{
				Name:  "dir",
				Usage: "Source directory (overrides source.dir)",
			},
			&ucli.StringFlag{
				Name:  "out",
				Usage: "Output directory (overrides output.dir)",
			},
		},
		Commands: []*ucli.Command{
			{
				Name:      "build",
				Usage:     "Link the graph reachable from the root once and write the scripts",
				ArgsUsage: "[root]",
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					return buildAction(ctx, cmd, out)
				},
			},
			{
				Name:      "watch",
				Usage:     "Rebuild whenever sources change",
				ArgsUsage: "[root]",
				Flags: []ucli.Flag{
					&ucli.BoolFlag{
						Name:  "ui",
						Usage: "Show the terminal dashboard instead of log output",
					},
				},
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					return watchAction(ctx, cmd, out)
				},
			},
			{
				Name:      "graph",
				Usage:     "Print the import graph reachable from the root without writing output",
				ArgsUsage: "[root]",
				Flags: []ucli.Flag{
					&ucli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Diagram format: dot or mermaid",
						Value:   "dot",
					},
				},
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					return graphAction(ctx, cmd, out)
				},
			},
			{
				Name:      "trace",
				Usage:     "Print the shortest import chain between two files",
				ArgsUsage: "<from> <to>",
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					return traceAction(ctx, cmd, out)
				},
			},
			{
				Name:  "history",
				Usage: "Show recorded builds",
				Flags: []ucli.Flag{
					&ucli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of builds to show",
						Value:   20,
					},
					&ucli.StringFlag{
						Name:  "since",
						Usage: "Only builds at/after this time (RFC3339 or YYYY-MM-DD)",
					},
					&ucli.BoolFlag{
						Name:  "all",
						Usage: "Include builds of every root, not only link.root",
					},
				},
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					return historyAction(ctx, cmd, out)
				},
			},
			{
				Name:  "version",
				Usage: "Print version and exit",
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					fmt.Fprintf(out, "sfclink v%s\n", versionString)
					return nil
				},
			},
		},
	}
}

func buildAction(ctx context.Context, cmd *ucli.Command, out io.Writer) error {
	rt, err := setupRuntime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.service.Build(ctx, ports.BuildRequest{Root: cmd.Args().First()})
	writeSummary(out, res, err, colorEnabled(out))
	if err != nil || res.Failed() {
		return exitError{code: 1}
	}
	return nil
}

func watchAction(ctx context.Context, cmd *ucli.Command, out io.Writer) error {
	uiMode := cmd.Bool("ui")
	rt, err := setupRuntime(ctx, cmd, uiMode)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rt.cfg.Observability.MetricsAddr != "" {
		server := NewObservabilityServer(rt.cfg.Observability.MetricsAddr, rt.health)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	if uiMode {
		return runDashboard(ctx, rt.service, rt.cfg.Link.Root)
	}

	color := colorEnabled(out)
	return rt.service.Watch(ctx, func(u ports.WatchUpdate) {
		writeUpdate(out, u, color)
	})
}

func graphAction(ctx context.Context, cmd *ucli.Command, out io.Writer) error {
	format := strings.ToLower(strings.TrimSpace(cmd.String("format")))
	if format != "dot" && format != "mermaid" {
		return fmt.Errorf("--format must be dot or mermaid, got %q", format)
	}
	rt, err := setupRuntime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	g, err := rt.app.Graph(ctx, rt.cfg.Link.Root)
	if err != nil {
		return err
	}
	cycles := g.DetectCycles()
	slog.Debug("link graph", "root", g.Root(), "nodes", len(g.Nodes()), "edges", g.EdgeCount(), "cycles", len(cycles))

	var diagram string
	if format == "mermaid" {
		diagram, err = formats.NewMermaidGenerator(g).Generate(cycles)
	} else {
		diagram, err = formats.NewDOTGenerator(g).Generate(cycles)
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, diagram)
	return err
}

func traceAction(ctx context.Context, cmd *ucli.Command, out io.Writer) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("trace requires <from> and <to>")
	}
	from := files.Normalize(cmd.Args().Get(0))
	to := files.Normalize(cmd.Args().Get(1))

	rt, err := setupRuntime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Link from the source so the chain does not depend on link.root.
	g, err := rt.app.Graph(ctx, from)
	if err != nil {
		return err
	}
	chain, ok := g.FindImportChain(from, to)
	if !ok {
		fmt.Fprintf(out, "%s does not import %s\n", from, to)
		return exitError{code: 1}
	}
	fmt.Fprintln(out, strings.Join(chain, " -> "))
	return nil
}

func historyAction(ctx context.Context, cmd *ucli.Command, out io.Writer) error {
	rt, err := setupRuntime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.history == nil {
		return fmt.Errorf("build history is disabled (db.enabled=false)")
	}
	since, err := parseSince(cmd.String("since"))
	if err != nil {
		return err
	}
	root := rt.cfg.Link.Root
	if cmd.Bool("all") {
		root = ""
	}
	builds, err := rt.history.LoadBuilds(root, since, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	writeHistory(out, root, builds, colorEnabled(out))
	return nil
}

func parseSince(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse("2006-01-02", value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("--since must be RFC3339 or YYYY-MM-DD, got %q", value)
}

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"sfclink/internal/core/errors"
	"sfclink/internal/core/ports"
	"sfclink/internal/data/history"
	"sfclink/internal/shared/util"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// colorEnabled reports whether out is an interactive terminal that wants color.
func colorEnabled(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func paint(style lipgloss.Style, color bool, s string) string {
	if !color {
		return s
	}
	return style.Render(s)
}

// writeSummary prints the outcome of one build.
func writeSummary(out io.Writer, res ports.BuildResult, err error, color bool) {
	var b strings.Builder
	switch {
	case err != nil:
		b.WriteString(paint(failureStyle, color, "Build failed: "+displayError(err)))
		b.WriteString("\n")
	case res.Failed():
		fmt.Fprintf(&b, "%s\n", paint(failureStyle, color,
			fmt.Sprintf("Linked with errors: %d modules, %d failed", res.Modules, len(res.Failures))))
		for _, name := range util.SortedKeys(res.Failures) {
			for _, ferr := range res.Failures[name] {
				fmt.Fprintf(&b, "  %s %s\n", paint(fileStyle, color, name), displayError(ferr))
			}
		}
	default:
		fmt.Fprintf(&b, "%s\n", paint(successStyle, color,
			fmt.Sprintf("Successfully compiled: %d modules", res.Modules)))
	}
	for _, cycle := range res.Cycles {
		loop := append(append([]string{}, cycle...), cycle[0])
		fmt.Fprintf(&b, "  %s %s\n", paint(statusStyle, color, "cycle:"), strings.Join(loop, " -> "))
	}
	if err == nil {
		fmt.Fprintf(&b, "%s\n", paint(statusStyle, color,
			fmt.Sprintf("%d files visited, %d outputs written in %s", res.Files, len(res.Written), res.Duration.Round(time.Millisecond))))
	}
	_, _ = io.WriteString(out, b.String())
}

// writeUpdate prints one watch-mode rebuild.
func writeUpdate(out io.Writer, u ports.WatchUpdate, color bool) {
	if len(u.Changed) > 0 {
		line := strings.Join(u.Changed, ", ")
		if extra := len(u.Affected) - len(u.Changed); extra > 0 {
			line += fmt.Sprintf(" (+%d importers)", extra)
		}
		fmt.Fprintf(out, "%s %s\n", paint(statusStyle, color, time.Now().Format("15:04:05")), line)
	}
	writeSummary(out, u.Result, u.Err, color)
}

// writeHistory prints builds newest first followed by an aggregate line.
func writeHistory(out io.Writer, root string, builds []history.Build, color bool) {
	if len(builds) == 0 {
		fmt.Fprintln(out, "No builds recorded.")
		return
	}
	for _, b := range builds {
		state := paint(successStyle, color, "ok    ")
		if b.Failed() {
			state = paint(failureStyle, color, "failed")
		}
		fmt.Fprintf(out, "%s %s %-16s modules=%-4d files=%-4d %8s",
			b.Timestamp.Local().Format("2006-01-02 15:04:05"),
			state,
			b.Root,
			b.ModuleCount,
			b.FileCount,
			b.Duration.Round(time.Millisecond),
		)
		if b.Failed() {
			fmt.Fprintf(out, " %s", paint(fileStyle, color, strings.Join(b.FailedFiles(), ", ")))
		}
		fmt.Fprintln(out)
	}

	s := history.Summarize(root, builds)
	line := fmt.Sprintf("%d builds, %d failed, avg %s, max %s, modules %+d",
		s.BuildCount, s.FailedCount, s.AvgDuration.Round(time.Millisecond), s.MaxDuration.Round(time.Millisecond), s.DeltaModules)
	if !s.LastSuccess.IsZero() {
		line += ", last success " + s.LastSuccess.Local().Format("2006-01-02 15:04:05")
	}
	fmt.Fprintln(out, paint(statusStyle, color, line))
}

func displayError(err error) string {
	return errors.Display(err)
}

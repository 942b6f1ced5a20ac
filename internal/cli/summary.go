package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jollyblade/jollykit/pkg/chunk"
)

const (
	summaryBoxWidth = 56
	progressWidth   = 40
)

// Summary is what a run command prints when the run ends.
type Summary struct {
	Name        string
	RunID       string
	TraceID     string
	Processed   int
	IDs         int
	Chunks      int
	TotalChunks int
	Errors      int
	Messages    int
	Duration    time.Duration
	Failure     error
}

// NewSummary builds a Summary from a run result.
func NewSummary(name string, res chunk.Result) Summary {
	s := Summary{
		Name:        name,
		RunID:       res.RunID,
		Processed:   res.Processed,
		IDs:         res.IDs,
		Chunks:      res.Chunks,
		TotalChunks: res.TotalChunks,
		Duration:    res.Duration,
		Failure:     res.Err,
	}
	if res.Report != nil {
		s.Errors = res.Report.Total()
		s.Messages = len(res.Report.Messages())
	}
	return s
}

// RenderSummary writes the summary to w, boxed with Lip Gloss when w is a terminal.
func RenderSummary(w io.Writer, s Summary) error {
	if isWriterTerminal(w) {
		return renderStyledSummary(w, s)
	}
	return renderPlainSummary(w, s)
}

// isWriterTerminal reports whether w is an *os.File attached to a terminal.
func isWriterTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}

// summaryLines returns the label/value pairs shared by both renderings.
func summaryLines(p *message.Printer, s Summary) [][2]string {
	lines := [][2]string{
		{"Processor", s.Name},
		{"Run ID", s.RunID},
		{"Processed", p.Sprintf("%d records from %d ids", s.Processed, s.IDs)},
		{"Chunks", p.Sprintf("%d of %d", s.Chunks, s.TotalChunks)},
		{"Elapsed", s.Duration.Round(time.Millisecond).String()},
		{"Errors", p.Sprintf("%d (%d distinct)", s.Errors, s.Messages)},
	}
	if s.TraceID != "" {
		lines = append(lines, [2]string{"Trace ID", s.TraceID})
	}
	if s.Failure != nil {
		lines = append(lines, [2]string{"Failed", s.Failure.Error()})
	}
	return lines
}

func renderPlainSummary(w io.Writer, s Summary) error {
	p := message.NewPrinter(language.English)

	if _, err := fmt.Fprintln(w, "RUN SUMMARY"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("=", len("RUN SUMMARY"))); err != nil {
		return err
	}
	for _, line := range summaryLines(p, s) {
		if _, err := fmt.Fprintf(w, "%-10s %s\n", line[0]+":", line[1]); err != nil {
			return err
		}
	}
	return nil
}

func renderStyledSummary(w io.Writer, s Summary) error {
	p := message.NewPrinter(language.English)

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	labelStyle := lipgloss.NewStyle().Bold(true).Width(11)
	valueStyle := lipgloss.NewStyle()
	borderColor := lipgloss.Color("42")
	if s.Failure != nil {
		borderColor = lipgloss.Color("196")
	} else if s.Errors > 0 {
		borderColor = lipgloss.Color("208")
	}
	boxStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(summaryBoxWidth)

	var content strings.Builder
	content.WriteString(titleStyle.Render("RUN SUMMARY"))
	for _, line := range summaryLines(p, s) {
		content.WriteString("\n")
		content.WriteString(labelStyle.Render(line[0]))
		content.WriteString(valueStyle.Render(line[1]))
	}

	_, err := fmt.Fprintln(w, boxStyle.Render(content.String()))
	return err
}

// progressBar redraws a single progress line on w after every chunk.
type progressBar struct {
	w   io.Writer
	bar progress.Model
	p   *message.Printer
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{
		w:   w,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
		p:   message.NewPrinter(language.English),
	}
}

// Hooks returns runner hooks that draw the bar. Run start and end keep their default logging.
func (b *progressBar) Hooks() chunk.Hooks {
	return chunk.Hooks{
		OnChunkFinished: b.chunkFinished,
		OnRunEnd:        b.runEnd,
		OnRunFailed:     b.runFailed,
	}
}

func (b *progressBar) chunkFinished(ctx context.Context, info chunk.ChunkInfo) {
	zerolog.Ctx(ctx).Debug().
		Int("chunk", info.Index).
		Int("total_chunks", info.Progress.TotalChunks).
		Msgf("%s processed %d records", info.Run.Name, info.Records)
	b.draw(info.Progress)
}

func (b *progressBar) runEnd(ctx context.Context, run chunk.RunInfo, processed int) {
	_, _ = fmt.Fprintln(b.w)
	zerolog.Ctx(ctx).Debug().Int("processed", processed).Msgf("Process ended %s", run.Name)
}

func (b *progressBar) runFailed(ctx context.Context, run chunk.RunInfo, err error) {
	_, _ = fmt.Fprintln(b.w)
	zerolog.Ctx(ctx).Debug().Err(err).Msgf("%s process failed", run.Name)
}

func (b *progressBar) draw(snap chunk.ProgressSnapshot) {
	_, _ = fmt.Fprintf(b.w, "\r%s %s",
		b.bar.ViewAs(snap.PercentComplete/100),
		b.p.Sprintf("%d/%d chunks", snap.ProcessedChunks, snap.TotalChunks))
}

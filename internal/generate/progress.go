package generate

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/samcharles93/wordgen/internal/logger"
)

// Reporter is told about loop progress before each step.
type Reporter interface {
	Report(done, total int)
	Finish()
}

// LogReporter logs a progress record every Interval steps.
type LogReporter struct {
	Log      logger.Logger
	Interval int
}

// Report logs "Generated done/total words" when done is a multiple of
// Interval.
func (r LogReporter) Report(done, total int) {
	if r.Log == nil || r.Interval <= 0 || done%r.Interval != 0 {
		return
	}
	r.Log.Info(fmt.Sprintf("Generated %d/%d words", done, total))
}

// Finish is a no-op.
func (LogReporter) Finish() {}

// BarReporter renders a terminal progress bar.
type BarReporter struct {
	bar *progressbar.ProgressBar
}

// NewBarReporter returns a progress bar over total words drawn on w.
func NewBarReporter(w io.Writer, total int) *BarReporter {
	return &BarReporter{bar: progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Generating"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("words"),
		progressbar.OptionThrottle(0),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)}
}

// Report moves the bar to done.
func (r *BarReporter) Report(done, total int) {
	_ = r.bar.Set(done)
}

// Finish fills the bar.
func (r *BarReporter) Finish() {
	_ = r.bar.Finish()
}

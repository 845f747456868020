package progress

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/face-finder/internal/scan"
)

// Bar renders scan progress as a terminal progress bar.
type Bar struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func NewBar(w io.Writer) *Bar {
	return &Bar{w: w}
}

func (b *Bar) Report(e scan.Event) {
	switch e.Type {
	case scan.EventInitializing:
		b.bar = progressbar.NewOptions(e.Total,
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionSetDescription("Scanning photos"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	case scan.EventBatchStarting:
		if b.bar != nil {
			b.bar.Describe(fmt.Sprintf("Batch %d/%d", e.Batch, e.Batches))
		}
	case scan.EventProcessing:
		if b.bar != nil {
			b.bar.Add(1)
		}
	case scan.EventCompleted:
		if b.bar == nil {
			return
		}
		if e.Summary != nil && e.Summary.FromCache {
			b.bar.Describe("Cached results")
			b.bar.Set(e.Total)
		}
		b.bar.Finish()
		fmt.Fprintln(b.w)
	case scan.EventCancelled, scan.EventFailed:
		if b.bar != nil {
			b.bar.Exit()
			fmt.Fprintln(b.w)
		}
	}
}

// Finished reports whether the bar reached its terminal state.
func (b *Bar) Finished() bool {
	return b.bar != nil && b.bar.IsFinished()
}

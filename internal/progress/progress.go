package progress

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Bar reports build progress. A nil *Bar is valid and reports nothing.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a bar counting up to max. It writes to os.Stderr unless w is set.
func New(w io.Writer, max int, description string) *Bar {
	if w == nil {
		w = os.Stderr
	}
	return &Bar{bar: progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)}
}

func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	_ = b.bar.Add(n)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}

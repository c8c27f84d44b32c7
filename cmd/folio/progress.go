package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/shishobooks/folio/pkg/fileutils"
	"github.com/shishobooks/folio/pkg/progress"
)

const maxProgressMessage = 40

// renderProgress draws the events sent to the returned sink as a progress bar
// on stderr. The stop function must be called once the engine has returned.
// Nothing is drawn when stderr isn't a terminal.
func renderProgress(e *env, description string) (progress.Sink, func()) {
	if e.quiet || !isatty.IsTerminal(os.Stderr.Fd()) {
		return progress.Discard, func() {}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)

	ch := progress.NewChannel(32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch.Events() {
			if ev.Total > 0 && bar.GetMax() != ev.Total {
				bar.ChangeMax(ev.Total)
			}
			if ev.Message != "" {
				bar.Describe(description + " " + fileutils.TruncateUTF8(filepath.Base(ev.Message), maxProgressMessage))
			}
			_ = bar.Set(ev.Current)
		}
		_ = bar.Finish()
	}()

	return ch, func() {
		ch.Close()
		<-done
	}
}

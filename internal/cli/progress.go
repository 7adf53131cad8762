package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"

	"passage/internal/usecase"
)

// newProgressBar builds the progress bar used by bulk operations.
func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

// barProgress adapts the progress bar to the usecase callback. The bar is
// created on the first report, once the total is known.
func barProgress(description string) usecase.ProgressFunc {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = newProgressBar(total, description)
		}
		bar.Set(done)
	}
}

package outwriter

import (
	"os"

	"github.com/covtrail/covtrail/internal/contract"
	"golang.org/x/term"
)

// Bounds for the commit message column.
const (
	minMessageWidth = 20
	maxMessageWidth = 72
)

// getMaxMessageWidth calculates the maximum width for commit messages in table output
// based on terminal width and the fixed columns.
func getMaxMessageWidth(cfg *contract.Config) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// # + Commit + Branch + Coverage + Change + Created, plus borders and padding
	baseWidth := 4 + 9 + 14 + 18 + 10 + 21 + 22

	available := termWidth - baseWidth
	if available < minMessageWidth {
		return minMessageWidth
	}
	if available > maxMessageWidth {
		return maxMessageWidth
	}
	return available
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kalambet/ctxsync/internal/replace"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// noColor disables ANSI escapes; set from --no-color or NO_COLOR.
var noColor bool

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// printReport renders a replace run on stderr: one headline for the result,
// then the details that explain it.
func printReport(rep replace.Report) {
	switch rep.Result {
	case replace.Success:
		printSuccess("Replaced document in %s", rep.Environment)
	case replace.NoOp:
		printWarning("No document available upstream; nothing uploaded")
	default:
		printError("Replace failed: %v", rep.Err)
	}

	if rep.Environment != "" {
		printStatus("environment", "%s", rep.Environment)
	}
	printStatus("invocation", "%s", rep.InvocationID)
	if rep.CheckErr != nil {
		printStatus("existing", "%s", colorize(colorYellow, "unknown ("+rep.CheckErr.Error()+")"))
	} else {
		printStatus("existing", "%t", rep.Existed)
	}
	if rep.DeleteAttempted {
		if rep.DeleteErr != nil {
			printStatus("deleted", "%s", colorize(colorYellow, "failed ("+rep.DeleteErr.Error()+")"))
		} else {
			printStatus("deleted", "%t", rep.Deleted)
		}
	}
	if rep.FetchErr != nil {
		printStatus("document", "%v", rep.FetchErr)
	} else if rep.PathCount > 0 || rep.Uploaded {
		printStatus("paths", "%d", rep.PathCount)
	}
	printStatus("duration", "%s", rep.Duration.Round(time.Millisecond))
}

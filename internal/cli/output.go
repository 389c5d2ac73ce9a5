package cli

import (
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

// useIcons reports whether w is an interactive terminal, where the unicode
// status icons render.
func useIcons(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func statusIcon(result string, icons bool) string {
	if !icons {
		return result
	}
	switch result {
	case "PASS":
		return "\xe2\x9c\x85" // check mark
	case "FAIL":
		return "\xe2\x9d\x8c" // cross mark
	default:
		return "\xe2\x9d\x93" // question mark
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(100 * time.Microsecond).String()
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

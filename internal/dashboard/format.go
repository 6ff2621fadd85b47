package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// PrettyDate renders t like "Tue March 4th".
func PrettyDate(t time.Time) string {
	return fmt.Sprintf("%s %s %s", t.Format("Mon"), t.Format("January"), humanize.Ordinal(t.Day()))
}

// DateWithAge renders t followed by how many whole days before now it was.
func DateWithAge(t, now time.Time) string {
	days := int(now.Sub(t).Hours() / 24)
	if days < 0 {
		days = 0
	}
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	return fmt.Sprintf("%s, %d %s ago", PrettyDate(t), days, unit)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}

func countdown(d time.Duration) string {
	secs := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

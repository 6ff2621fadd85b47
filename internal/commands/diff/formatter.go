package diff

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/user/release-tracker/internal/tracker"
)

// FormatSnapshot renders a snapshot as Mattermost-flavoured markdown.
func FormatSnapshot(snap *tracker.Snapshot, now time.Time) string {
	var sb strings.Builder

	latest := make([]tracker.Release, 0, len(snap.Latest))
	for _, rel := range snap.Latest {
		latest = append(latest, rel)
	}
	sort.Slice(latest, func(i, j int) bool {
		return latest[i].Repo < latest[j].Repo
	})

	if len(latest) > 0 {
		sb.WriteString("#### Latest releases\n\n")
		for _, rel := range latest {
			sb.WriteString(fmt.Sprintf("- [%s %s](%s) _(%s ago)_\n",
				rel.Repo, rel.Tag, rel.HTMLURL, formatDuration(now.Sub(rel.PublishedAt))))
		}
	}

	for _, lineage := range snap.Ordered() {
		sb.WriteString("\n---\n\n")
		sb.WriteString(fmt.Sprintf("#### %s\n\n", lineage.Title))

		if lineage.Stale {
			sb.WriteString(":warning: data is stale\n\n")
		}
		if len(lineage.Diffs) == 0 {
			if lineage.Error != "" {
				sb.WriteString(fmt.Sprintf("_No data: %s_\n", lineage.Error))
			} else {
				sb.WriteString("_No data_\n")
			}
			continue
		}

		for _, d := range lineage.Diffs {
			sb.WriteString(fmt.Sprintf("**[%s](%s)** since %s · component %s\n",
				d.HeadTag, d.HeadReleaseURL, d.BaseTag, componentLink(d)))

			if len(d.Commits) == 0 {
				sb.WriteString("   _No changes from tracked committers_\n\n")
				continue
			}
			for _, c := range d.Commits {
				sb.WriteString(fmt.Sprintf("- [`%s`](%s) %s _(%s)_\n",
					shortSHA(c.SHA), c.HTMLURL, firstLine(c.Message), c.AuthorLogin))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func componentLink(d tracker.ReleaseDiff) string {
	version := d.ComponentVersion
	if d.ComponentReleaseURL != "" {
		version = fmt.Sprintf("[%s](%s)", d.ComponentVersion, d.ComponentReleaseURL)
	}
	if d.BaseComponentVersion != "" && d.BaseComponentVersion != d.ComponentVersion {
		version += " (was " + d.BaseComponentVersion + ")"
	}
	return version
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)

	if days >= 60 {
		return fmt.Sprintf("%d months", days/30)
	}
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
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

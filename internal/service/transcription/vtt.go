package transcription

import (
	"regexp"
	"strings"
)

var (
	vttTimingRe = regexp.MustCompile(`^\d{2}:\d{2}(?::\d{2})?\.\d{3}\s+-->\s+`)
	vttTagRe    = regexp.MustCompile(`<[^>]*>`)
	vttCueIDRe  = regexp.MustCompile(`^\d+$`)

	vttEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&nbsp;", " ")
)

// CleanVTT flattens a WebVTT caption file into plain text.
// Automatic captions repeat the previous line in every rolling cue; repeats are dropped.
func CleanVTT(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	// the header block (WEBVTT, Kind:, Language:) ends at the first blank line
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "WEBVTT") {
		i := 0
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			i++
		}
		lines = lines[i:]
	}

	var (
		kept []string
		prev string
	)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" ||
			vttTimingRe.MatchString(line) ||
			vttCueIDRe.MatchString(line) ||
			strings.HasPrefix(line, "NOTE") ||
			strings.HasPrefix(line, "STYLE") ||
			strings.HasPrefix(line, "REGION") {
			continue
		}

		line = strings.TrimSpace(vttEntities.Replace(vttTagRe.ReplaceAllString(line, "")))
		if line == "" || line == prev {
			continue
		}
		kept = append(kept, line)
		prev = line
	}
	return strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
}

// Package markup turns model output into display lines.
package markup

import (
	"fmt"
	"io"
	"strings"
)

// LineKind says how a line is displayed.
type LineKind int

const (
	LineParagraph LineKind = iota
	LineBullet
)

// Line is one display unit. A paragraph may contain a newline when its source
// line ended with a colon.
type Line struct {
	Kind LineKind
	Text string
}

// Parse splits text into paragraphs and bullets. A newline right after a colon
// stays inside the line, blank lines are dropped, and lines starting with "- "
// become bullets without the marker.
func Parse(text string) []Line {
	var out []Line
	for _, raw := range joinAfterColon(strings.Split(text, "\n")) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "- ") {
			out = append(out, Line{Kind: LineBullet, Text: line[2:]})
			continue
		}
		out = append(out, Line{Kind: LineParagraph, Text: line})
	}
	return out
}

func joinAfterColon(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if n := len(out); n > 0 && strings.HasSuffix(out[n-1], ":") {
			out[n-1] += "\n" + seg
			continue
		}
		out = append(out, seg)
	}
	return out
}

// Render writes lines as plain terminal text, prefixing bullets with "• ".
func Render(w io.Writer, lines []Line) error {
	for _, line := range lines {
		prefix := ""
		if line.Kind == LineBullet {
			prefix = "  • "
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", prefix, line.Text); err != nil {
			return err
		}
	}
	return nil
}

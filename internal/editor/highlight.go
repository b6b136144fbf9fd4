package editor

import (
	"regexp"
	"strconv"
	"strings"
)

// Marker locates a server error inside the submitted SQL. Line and Column are 1-based.
type Marker struct {
	Line   int
	Column int
}

var (
	lineRe     = regexp.MustCompile(`LINE (\d+): `)
	positionRe = regexp.MustCompile(`(?i)\bposition:? (\d+)`)
)

// ParseMarker extracts the error location from a PostgreSQL error message.
// It understands the "LINE n:" excerpt followed by a caret line, and falls back
// to a character position resolved against sql.
func ParseMarker(msg, sql string) (Marker, bool) {
	lines := strings.Split(msg, "\n")
	for i, l := range lines {
		loc := lineRe.FindStringSubmatchIndex(l)
		if loc == nil {
			continue
		}
		n, err := strconv.Atoi(l[loc[2]:loc[3]])
		if err != nil || n < 1 {
			continue
		}
		m := Marker{Line: n}
		if i+1 < len(lines) {
			if caret := strings.IndexByte(lines[i+1], '^'); caret >= loc[1] {
				m.Column = caret - loc[1] + 1
			}
		}
		return m, true
	}

	if sm := positionRe.FindStringSubmatch(msg); sm != nil {
		pos, err := strconv.Atoi(sm[1])
		if err == nil {
			return markerAt(sql, pos)
		}
	}
	return Marker{}, false
}

// markerAt converts a 1-based character offset into a line and column.
func markerAt(sql string, pos int) (Marker, bool) {
	runes := []rune(sql)
	if pos < 1 || pos > len(runes) {
		return Marker{}, false
	}
	m := Marker{Line: 1, Column: 1}
	for _, r := range runes[:pos-1] {
		if r == '\n' {
			m.Line++
			m.Column = 1
			continue
		}
		m.Column++
	}
	return m, true
}

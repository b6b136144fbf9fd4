package devserver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// formatDBError renders a PostgreSQL error the way psql does, with a
// "LINE n:" excerpt and a caret under the error position when one is known.
func formatDBError(stmt string, err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:  %s", pgErr.Severity, pgErr.Message)
	if pgErr.Position > 0 {
		if line, col, text, ok := locate(stmt, int(pgErr.Position)); ok {
			prefix := fmt.Sprintf("LINE %d: ", line)
			fmt.Fprintf(&b, "\n%s%s\n%s^", prefix, text, strings.Repeat(" ", len(prefix)+col-1))
		}
	}
	if pgErr.Detail != "" {
		fmt.Fprintf(&b, "\nDETAIL:  %s", pgErr.Detail)
	}
	if pgErr.Hint != "" {
		fmt.Fprintf(&b, "\nHINT:  %s", pgErr.Hint)
	}
	return b.String()
}

// locate maps a 1-based character position to its line number, column and line text.
func locate(stmt string, pos int) (line, col int, text string, ok bool) {
	runes := []rune(stmt)
	if pos < 1 || pos > len(runes)+1 {
		return 0, 0, "", false
	}
	line, start := 1, 0
	for i, r := range runes[:pos-1] {
		if r == '\n' {
			line++
			start = i + 1
		}
	}
	end := start
	for end < len(runes) && runes[end] != '\n' {
		end++
	}
	return line, pos - start, string(runes[start:end]), true
}

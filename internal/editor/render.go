package editor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"pgquery/cli/internal/backend"
)

// maxCellWidth truncates long values in the result grid.
const maxCellWidth = 60

// RenderResult formats a successful poll as a table followed by a row summary.
func RenderResult(data backend.PollData) (string, error) {
	rows, err := data.Rows()
	if err != nil {
		return "", fmt.Errorf("decode result rows: %w", err)
	}

	var b strings.Builder
	if len(data.ColInfo) > 0 {
		table := make(pterm.TableData, 0, len(rows)+1)
		header := make([]string, len(data.ColInfo))
		for i, c := range data.ColInfo {
			header[i] = c.Name
		}
		table = append(table, header)
		for _, r := range rows {
			line := make([]string, len(header))
			for i := range line {
				if i < len(r) {
					line[i] = formatCell(r[i])
				}
			}
			table = append(table, line)
		}
		out, err := pterm.DefaultTable.WithHasHeader().WithData(table).Srender()
		if err != nil {
			return "", err
		}
		b.WriteString(out)
		b.WriteString("\n")
	}

	b.WriteString(summary(data, len(rows)))
	if data.HasMoreRows {
		b.WriteString(" (more rows available)")
	}
	if msg := strings.TrimSpace(data.AdditionalMessages); msg != "" {
		b.WriteString("\n")
		b.WriteString(msg)
	}
	return b.String(), nil
}

func summary(data backend.PollData, n int) string {
	if len(data.ColInfo) > 0 {
		if n == 1 {
			return "(1 row)"
		}
		return fmt.Sprintf("(%d rows)", n)
	}
	return fmt.Sprintf("Query returned successfully, %d rows affected.", data.RowsAffected)
}

func formatCell(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		s = "[null]"
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = fmt.Sprint(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprint(t)
		} else {
			s = string(raw)
		}
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > maxCellWidth {
		s = string(r[:maxCellWidth-3]) + "..."
	}
	return s
}

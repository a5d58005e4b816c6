package scm

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// markdownTable renders a titled GitHub-flavoured table. It returns "" when
// there are no headers or rows.
func markdownTable(title string, headers []string, rows [][]any) string {
	if len(headers) == 0 || len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "\n### %s\n\n", title)
	}
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = markdownCell(v)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

func markdownCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case int:
		return humanize.Comma(int64(v))
	case int64:
		return humanize.Comma(v)
	case float64:
		return humanize.Commaf(v)
	case string:
		return strings.ReplaceAll(v, "|", `\|`)
	default:
		return strings.ReplaceAll(fmt.Sprint(v), "|", `\|`)
	}
}

// fieldValueTable renders label/value pairs as a two column table.
func fieldValueTable(title string, pairs [][2]string) string {
	rows := make([][]any, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []any{p[0], p[1]})
	}
	return markdownTable(title, []string{"Field", "Value"}, rows)
}

// money formats f with thousands separators and two decimals.
func money(f float64) string {
	return humanize.FormatFloat("#,###.##", f)
}

// quantity formats f with thousands separators and no decimals.
func quantity(f float64) string {
	return humanize.FormatFloat("#,###.", f)
}

// truncate shortens s to n runes followed by "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

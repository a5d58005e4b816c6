package oracle

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one report record keyed by its header column.
type Row map[string]string

// Rows parses the report data as comma-delimited CSV.
func (r *Report) Rows() ([]Row, error) {
	return ParseRows(r.Data, ',')
}

// RowsDelimited parses the report data with the given field delimiter.
func (r *Report) RowsDelimited(delim rune) ([]Row, error) {
	return ParseRows(r.Data, delim)
}

// ParseRows reads header-keyed rows. A leading byte order mark is dropped and
// header names and values are trimmed of spaces and stray quotes. Short rows
// leave the missing columns empty.
func ParseRows(data []byte, delim rune) ([]Row, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, tool.NewToolError(tool.ToolErrorCodeDecodeFailure, fmt.Sprintf("read report header: %v", err), false, err)
	}
	for i := range header {
		header[i] = cleanCell(header[i])
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, tool.NewToolError(tool.ToolErrorCodeDecodeFailure, fmt.Sprintf("read report row: %v", err), false, err)
		}
		if blankRecord(record) {
			continue
		}
		row := make(Row, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(record) {
				row[name] = cleanCell(record[i])
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.Trim(strings.TrimSpace(s), "\" ")
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// Package render prints query results as a text table, json or csv
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Format of the output
type Format string

// enum of formats
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// Printer writes results in the given format. Color is used by the table format only.
type Printer struct {
	Format Format
	Color  bool
}

// Print writes columns and rows to w
func (p Printer) Print(w io.Writer, columns []string, rows [][]any) error {
	switch p.Format {
	case FormatTable, "":
		return p.table(w, columns, rows)
	case FormatJSON:
		return p.json(w, columns, rows)
	case FormatCSV:
		return p.csv(w, columns, rows)
	default:
		return fmt.Errorf("unknown format %q", p.Format)
	}
}

const nullText = "NULL"

func (p Printer) table(w io.Writer, columns []string, rows [][]any) error {
	header := p.colorizer(color.FgHiCyan, color.Bold)
	null := p.colorizer(color.FgHiBlack)

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = utf8.RuneCountInString(c)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i := range columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			cells[r][i] = Text(v)
			if n := utf8.RuneCountInString(cells[r][i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	line := func(vals []string, paint func(i int, s string) string) error {
		parts := make([]string, len(vals))
		for i, v := range vals {
			s := v
			if i < len(vals)-1 {
				s += strings.Repeat(" ", widths[i]-utf8.RuneCountInString(v))
			}
			parts[i] = paint(i, s)
		}
		_, err := fmt.Fprintln(w, strings.Join(parts, "  "))
		return err
	}

	if err := line(columns, func(_ int, s string) string { return header(s) }); err != nil {
		return fmt.Errorf("can't write header: %w", err)
	}
	for r, vals := range cells {
		err := line(vals, func(i int, s string) string {
			if rows[r] != nil && i < len(rows[r]) && rows[r][i] == nil {
				return null(s)
			}
			return s
		})
		if err != nil {
			return fmt.Errorf("can't write row %d: %w", r, err)
		}
	}
	return nil
}

// json writes an array with an object per row, keys in the column order
func (p Printer) json(w io.Writer, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		_, err := io.WriteString(w, "[]\n")
		return err
	}
	var sb strings.Builder
	sb.WriteString("[\n")
	for r, row := range rows {
		sb.WriteString("  {")
		for i, c := range columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			k, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("can't marshal column %s: %w", c, err)
			}
			var v any
			if i < len(row) {
				v = row[i]
			}
			switch vv := v.(type) {
			case []byte:
				v = string(vv)
			case float64:
				if math.IsInf(vv, 0) || math.IsNaN(vv) {
					v = Text(vv) // not representable in json
				}
			}
			val, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("can't marshal %s of row %d: %w", c, r, err)
			}
			sb.Write(k)
			sb.WriteString(": ")
			sb.Write(val)
		}
		sb.WriteString("}")
		if r < len(rows)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("]\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func (p Printer) csv(w io.Writer, columns []string, rows [][]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("can't write csv header: %w", err)
	}
	for r, row := range rows {
		rec := make([]string, len(columns))
		for i := range columns {
			if i < len(row) && row[i] != nil {
				rec[i] = Text(row[i])
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("can't write csv row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (p Printer) colorizer(attrs ...color.Attribute) func(string) string {
	if !p.Color {
		return func(s string) string { return s }
	}
	c := color.New(attrs...)
	c.EnableColor()
	return func(s string) string { return c.Sprint(s) }
}

// Text is the text form of a result value, NULL for nil
func Text(v any) string {
	switch vv := v.(type) {
	case nil:
		return nullText
	case string:
		return vv
	case []byte:
		return string(vv)
	case int64:
		return strconv.FormatInt(vv, 10)
	case float64:
		return strconv.FormatFloat(vv, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(vv)
	case time.Time:
		return vv.Format(time.RFC3339)
	default:
		return fmt.Sprint(vv)
	}
}

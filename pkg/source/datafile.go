package source

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"gopkg.in/yaml.v3"

	"github.com/umputun/sqtab/pkg/vtable"
)

// ParquetRow is the row layout of parquet data files. A single file may keep rows of several tables,
// rows with empty TableName belong to any table reading the file.
type ParquetRow struct {
	TableName string `parquet:"name=table_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	DataJSON  string `parquet:"name=data_json, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Formats lists supported data file extensions
var Formats = []string{".yml", ".yaml", ".toml", ".json", ".csv", ".parquet"}

// ReadRows loads rows of the table from the data file, format is picked by the file extension.
// Every value is converted to its text form, the column's affinity is applied later, on fetch.
func ReadRows(table, fname string) ([]vtable.Row, error) {
	ext := strings.ToLower(filepath.Ext(fname))
	if ext == ".parquet" {
		return readParquet(table, fname)
	}

	data, err := os.ReadFile(fname) // nolint
	if err != nil {
		return nil, fmt.Errorf("can't read data file %s: %w", fname, err)
	}

	var recs []map[string]any
	switch ext {
	case ".yml", ".yaml":
		if err = yaml.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("can't unmarshal yaml data %s: %w", fname, err)
		}
	case ".toml":
		var doc struct {
			Rows []map[string]any `toml:"rows"`
		}
		if err = toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("can't unmarshal toml data %s: %w", fname, err)
		}
		recs = doc.Rows
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err = dec.Decode(&recs); err != nil {
			return nil, fmt.Errorf("can't unmarshal json data %s: %w", fname, err)
		}
	case ".csv":
		return readCSV(fname, data)
	default:
		return nil, fmt.Errorf("unsupported data file format %q of %s", ext, fname)
	}

	res := make([]vtable.Row, 0, len(recs))
	for _, rec := range recs {
		res = append(res, MakeRow(rec))
	}
	return res, nil
}

// readCSV reads rows with the first record used as column names
func readCSV(fname string, data []byte) ([]vtable.Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []vtable.Row{}, nil
		}
		return nil, fmt.Errorf("can't read csv header of %s: %w", fname, err)
	}
	res := []vtable.Row{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("can't read csv data %s: %w", fname, err)
		}
		row := make(vtable.Row, len(header))
		for i, name := range header {
			row[name] = rec[i]
		}
		res = append(res, row)
	}
	return res, nil
}

func readParquet(table, fname string) ([]vtable.Row, error) {
	fr, err := local.NewLocalFileReader(fname)
	if err != nil {
		return nil, fmt.Errorf("can't open parquet data %s: %w", fname, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(ParquetRow), 4)
	if err != nil {
		return nil, fmt.Errorf("can't make parquet reader for %s: %w", fname, err)
	}
	defer pr.ReadStop()

	prows := make([]ParquetRow, int(pr.GetNumRows()))
	if err = pr.Read(&prows); err != nil {
		return nil, fmt.Errorf("can't read parquet data %s: %w", fname, err)
	}

	res := make([]vtable.Row, 0, len(prows))
	for i, prow := range prows {
		if prow.TableName != "" && prow.TableName != table {
			continue
		}
		var rec map[string]any
		dec := json.NewDecoder(strings.NewReader(prow.DataJSON))
		dec.UseNumber()
		if err = dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("can't decode parquet row %d of %s: %w", i, fname, err)
		}
		res = append(res, MakeRow(rec))
	}
	return res, nil
}

// MakeRow converts a decoded record to a row with text values
func MakeRow(rec map[string]any) vtable.Row {
	row := make(vtable.Row, len(rec))
	for k, v := range rec {
		row[k] = cellString(v)
	}
	return row
}

// cellString makes the text form of a decoded value
func cellString(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case json.Number:
		return vv.String()
	case int:
		return strconv.Itoa(vv)
	case int64:
		return strconv.FormatInt(vv, 10)
	case uint64:
		return strconv.FormatUint(vv, 10)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case bool:
		if vv {
			return "1"
		}
		return "0"
	case time.Time:
		return vv.Format(time.RFC3339)
	default:
		return fmt.Sprint(vv)
	}
}

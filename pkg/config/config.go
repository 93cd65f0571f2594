// Package config loads table definitions from a yaml or toml file
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pkgz/fileutils"
	"github.com/go-pkgz/stringutils"
	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/umputun/sqtab/pkg/source"
	"github.com/umputun/sqtab/pkg/vtable"
)

// Config defines virtual tables
type Config struct {
	Concurrency int     `yaml:"concurrency" toml:"concurrency"` // max data files loaded at once
	Tables      []Table `yaml:"tables" toml:"tables"`           // list of tables
}

// Table defines a single table with rows set inline or in a data file, never both
type Table struct {
	Name    string           `yaml:"name" toml:"name"`       // name of table, mandatory
	Columns []Column         `yaml:"columns" toml:"columns"` // ordered columns, mandatory
	Rows    []map[string]any `yaml:"rows" toml:"rows"`       // inline rows
	File    string           `yaml:"file" toml:"file"`       // data file, relative to the config file location
}

// Column defines a column name and its type
type Column struct {
	Name string `yaml:"name" toml:"name"`
	Type string `yaml:"type" toml:"type"` // TEXT, INTEGER, BIGINT or DOUBLE
}

const defaultConcurrency = 4

// Load reads config from the file. Format is picked by the extension, yaml is the default.
// Relative data file paths are resolved against the config file directory.
func Load(fname string) (*Config, error) {
	log.Printf("[DEBUG] request to load config %q", fname)
	data, err := os.ReadFile(fname) // nolint
	if err != nil {
		return nil, fmt.Errorf("can't read config %s: %w", fname, err)
	}

	res := &Config{}
	if err = unmarshal(fname, data, res); err != nil {
		return nil, err
	}
	if res.Concurrency <= 0 {
		res.Concurrency = defaultConcurrency
	}

	dir := filepath.Dir(fname)
	for i, t := range res.Tables {
		if t.File != "" && !filepath.IsAbs(t.File) {
			res.Tables[i].File = filepath.Join(dir, t.File)
		}
	}

	if err = res.Validate(); err != nil {
		return nil, fmt.Errorf("config %s is invalid: %w", fname, err)
	}
	log.Printf("[INFO] config loaded with %d tables", len(res.Tables))
	return res, nil
}

func unmarshal(fname string, data []byte, res *Config) error {
	switch {
	case strings.HasSuffix(fname, ".toml"):
		if err := toml.Unmarshal(data, res); err != nil {
			return fmt.Errorf("can't unmarshal toml config %s: %w", fname, err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true) // strict mode, fail on unknown fields
		if err := dec.Decode(res); err != nil {
			return fmt.Errorf("can't unmarshal yaml config %s: %w", fname, err)
		}
	}
	return nil
}

// Validate checks all tables and reports every problem found:
// names are set and unique, columns are valid, rows come from a single place,
// data files exist and have a supported format.
func (c *Config) Validate() error {
	errs := new(multierror.Error)
	if len(c.Tables) == 0 {
		errs = multierror.Append(errs, errors.New("no tables defined"))
	}

	names := make(map[string]bool)
	for i, t := range c.Tables {
		if t.Name == "" {
			errs = multierror.Append(errs, fmt.Errorf("table #%d has no name", i))
			continue
		}
		if names[t.Name] {
			errs = multierror.Append(errs, fmt.Errorf("duplicate table name %q", t.Name))
		}
		names[t.Name] = true
		if t.Name == source.MetaTableName {
			errs = multierror.Append(errs, fmt.Errorf("table name %q is reserved", t.Name))
		}
		if err := t.validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("table %q rejected: %w", t.Name, err))
		}
	}
	return errs.ErrorOrNil()
}

func (t Table) validate() error {
	if _, err := t.Schema(); err != nil {
		return err
	}
	if t.File == "" {
		return nil
	}
	if len(t.Rows) > 0 {
		return errors.New("both rows and file set")
	}
	if ext := strings.ToLower(filepath.Ext(t.File)); !stringutils.Contains(ext, source.Formats) {
		return fmt.Errorf("unsupported data file format %q", ext)
	}
	if !fileutils.IsFile(t.File) {
		return fmt.Errorf("data file %s not found", t.File)
	}
	return nil
}

// Schema makes the validated column schema of the table
func (t Table) Schema() (vtable.ColumnSchema, error) {
	res := make(vtable.ColumnSchema, 0, len(t.Columns))
	for _, c := range t.Columns {
		aff, err := vtable.ParseAffinity(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		res = append(res, vtable.Column{Name: c.Name, Affinity: aff})
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// Source makes the table descriptor, static with inline rows or backed by the data file
func (t Table) Source() (*source.Static, error) {
	schema, err := t.Schema()
	if err != nil {
		return nil, fmt.Errorf("can't make schema of %s: %w", t.Name, err)
	}
	if t.File != "" {
		return source.NewFile(t.Name, schema, t.File), nil
	}
	rows := make([]vtable.Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		rows = append(rows, source.MakeRow(r))
	}
	return source.NewStatic(t.Name, schema, rows), nil
}

// Sources makes descriptors of all tables, in the config order
func (c *Config) Sources() ([]*source.Static, error) {
	res := make([]*source.Static, 0, len(c.Tables))
	for _, t := range c.Tables {
		s, err := t.Source()
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

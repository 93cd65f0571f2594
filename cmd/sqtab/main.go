package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/umputun/sqtab/pkg/config"
	"github.com/umputun/sqtab/pkg/engine"
	"github.com/umputun/sqtab/pkg/render"
	"github.com/umputun/sqtab/pkg/source"
	"github.com/umputun/sqtab/pkg/vtable"
)

type options struct {
	PositionalArgs struct {
		Query string `positional-arg-name:"query" description:"sql query, statements read from stdin if not set"`
	} `positional-args:"yes" positional-optional:"yes"`

	Config  string   `short:"c" long:"config" env:"SQTAB_CONFIG" description:"tables config file" default:"sqtab.yml"`
	Query   string   `short:"q" long:"query" description:"sql query"`
	DB      string   `long:"db" env:"SQTAB_DB" description:"sqlite database file, in-memory if not set"`
	Format  string   `short:"f" long:"format" env:"SQTAB_FORMAT" description:"output format" choice:"table" choice:"json" choice:"csv" default:"table"`
	Tables  []string `short:"t" long:"tables" env:"SQTAB_TABLES" env-delim:"," description:"attach only listed tables"`
	List    bool     `long:"list" description:"list attached tables"`
	NoColor bool     `long:"no-color" env:"SQTAB_NO_COLOR" description:"disable colorized output"`

	Version bool `long:"version" description:"show version"`
	Dbg     bool `long:"dbg" description:"debug mode"`
}

var revision = "latest"

func main() {
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		os.Exit(1)
	}
	if opts.Version {
		fmt.Printf("sqtab %s\n", revision)
		os.Exit(0)
	}
	setupLog(opts.Dbg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdin, os.Stdout, os.Stderr); err != nil {
		if opts.Dbg {
			log.Panicf("[ERROR] %v", err)
		}
		fmt.Fprintf(os.Stderr, "failed, %v\n", formatErrorString(err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	confFile, err := expandPath(opts.Config)
	if err != nil {
		return fmt.Errorf("can't expand config path %q: %w", opts.Config, err)
	}
	conf, err := config.Load(confFile)
	if err != nil {
		return fmt.Errorf("can't load config: %w", err)
	}

	reg, err := makeRegistry(ctx, conf)
	if err != nil {
		return err
	}

	dbFile, err := expandPath(opts.DB)
	if err != nil {
		return fmt.Errorf("can't expand db path %q: %w", opts.DB, err)
	}
	eng, err := engine.New(ctx, engine.Opts{DSN: dbFile, Registry: reg, Tables: tableNames(opts.Tables)})
	if eng == nil {
		return fmt.Errorf("can't start engine: %w", err)
	}
	if err != nil {
		log.Printf("[WARN] some tables not attached: %v", err)
	}
	defer func() {
		if e := eng.Close(); e != nil {
			log.Printf("[WARN] can't close engine: %v", e)
		}
	}()

	printer := render.Printer{Format: render.Format(opts.Format), Color: useColor(opts.NoColor, stdout)}

	if opts.List {
		rows := [][]any{}
		for _, name := range eng.Tables() {
			rows = append(rows, []any{name})
		}
		return printer.Print(stdout, []string{"table"}, rows)
	}

	query := opts.Query
	if query == "" {
		query = opts.PositionalArgs.Query
	}
	if query != "" {
		return execute(ctx, eng, printer, query, stdout, stderr)
	}
	return batch(ctx, eng, printer, stdin, stdout, stderr)
}

// makeRegistry registers config tables and the meta-table, data files are preloaded concurrently
func makeRegistry(ctx context.Context, conf *config.Config) (*vtable.Registry, error) {
	srcs, err := conf.Sources()
	if err != nil {
		return nil, fmt.Errorf("can't make tables: %w", err)
	}
	if err = source.LoadAll(ctx, srcs, conf.Concurrency); err != nil {
		return nil, fmt.Errorf("can't load tables: %w", err)
	}

	reg := vtable.NewRegistry()
	for _, s := range srcs {
		if err = reg.RegisterDescriptor(s); err != nil {
			return nil, fmt.Errorf("can't register table: %w", err)
		}
	}
	if err = reg.RegisterDescriptor(source.NewMeta(reg)); err != nil {
		return nil, fmt.Errorf("can't register meta table: %w", err)
	}
	return reg, nil
}

// tableNames splits comma-separated names. The meta-table is always added to a non-empty list.
func tableNames(tables []string) []string {
	res := []string{}
	for _, t := range tables {
		for _, name := range strings.Split(t, ",") {
			if name = strings.TrimSpace(name); name != "" {
				res = append(res, name)
			}
		}
	}
	if len(res) == 0 {
		return nil
	}
	for _, name := range res {
		if name == source.MetaTableName {
			return res
		}
	}
	return append(res, source.MetaTableName)
}

// execute runs a single query and prints the result
func execute(ctx context.Context, eng *engine.Engine, printer render.Printer, query string, stdout, stderr io.Writer) error {
	res, err := eng.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query %q failed: %w", query, err)
	}
	if err = printer.Print(stdout, res.Columns, res.Rows); err != nil {
		return fmt.Errorf("can't print result: %w", err)
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintf(stderr, "%d value(s) can't be converted to column type, first: %s\n", len(res.Warnings), res.Warnings[0])
	}
	return nil
}

// batch runs statements from r, one per line. Blank lines and "--" comments are skipped,
// a failed statement doesn't stop the batch.
func batch(ctx context.Context, eng *engine.Engine, printer render.Printer, r io.Reader, stdout, stderr io.Writer) error {
	errs := new(multierror.Error)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if count > 0 && printer.Format == render.FormatTable {
			fmt.Fprintln(stdout)
		}
		count++
		if err := execute(ctx, eng, printer, line, stdout, stderr); err != nil {
			log.Printf("[WARN] %v", err)
			errs = multierror.Append(errs, err)
		}
	}
	if err := scanner.Err(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("can't read statements: %w", err))
	}
	log.Printf("[DEBUG] batch completed, %d statements", count)
	return errs.ErrorOrNil()
}

// useColor allows colors unless disabled, for terminal output only
func useColor(noColor bool, w io.Writer) bool {
	if noColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		usr, err := user.Current()
		if err != nil {
			return "", err
		}
		return filepath.Join(usr.HomeDir, path[1:]), nil
	}
	return path, nil
}

// formatErrorString puts every error of a multi-error on its own line
func formatErrorString(input string) string {
	headerRe := regexp.MustCompile(`(.*: \d+ error\(s\) occurred:)`)
	headerMatch := headerRe.FindStringSubmatch(input)
	if len(headerMatch) == 0 {
		return input
	}

	errorsRe := regexp.MustCompile(`\[\d+] {([^}]+)}`)
	errorsMatches := errorsRe.FindAllStringSubmatch(input, -1)
	res := fmt.Sprintf("%s\n", strings.TrimSpace(headerMatch[1]))
	for i, match := range errorsMatches {
		res += fmt.Sprintf("   [%d] %s\n", i, strings.TrimSpace(match[1]))
	}
	return res
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)} // default to discard
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	lgr.SetupStdLogger(logOpts...)
}

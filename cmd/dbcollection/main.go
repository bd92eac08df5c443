// Command dbcollection inspects and reads converted dataset containers.
//
// Usage:
//
//	dbcollection [flags] info [set]
//	dbcollection [flags] list [set]
//	dbcollection [flags] size [set [field]]
//	dbcollection [flags] get set field [i ...]
//	dbcollection [flags] sample set field n
//
// The container is taken from -path, or looked up in the -catalog file by
// -name and -task. -path accepts a local directory or a file://, mem://,
// s3:// or gs:// URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/AvengerBruce000/dbcollection"
	"github.com/AvengerBruce000/dbcollection/loader"
)

type config struct {
	catalog     string
	path        string
	name        string
	task        string
	verbose     bool
	jsonLogs    bool
	asText      bool
	replace     bool
	seed        int64
	concurrency int
	rateLimit   int64
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "dbcollection:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var cfg config
	fs := flag.NewFlagSet("dbcollection", flag.ContinueOnError)
	fs.StringVar(&cfg.catalog, "catalog", defaultCatalog(), "catalog file")
	fs.StringVar(&cfg.path, "path", "", "container directory or bucket URL (overrides -catalog)")
	fs.StringVar(&cfg.name, "name", "", "dataset name")
	fs.StringVar(&cfg.task, "task", dbcollection.DefaultTask, "task name")
	fs.BoolVar(&cfg.verbose, "v", false, "log every read")
	fs.BoolVar(&cfg.jsonLogs, "json", false, "log as JSON")
	fs.BoolVar(&cfg.asText, "str", false, "decode rows as text")
	fs.BoolVar(&cfg.replace, "replace", false, "sample with replacement")
	fs.Int64Var(&cfg.seed, "seed", -1, "sample seed (negative for a random draw)")
	fs.IntVar(&cfg.concurrency, "concurrency", 4, "chunks fetched in parallel per read")
	fs.Int64Var(&cfg.rateLimit, "rate", 0, "max chunk bytes read per second (0 for no limit)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	dl, err := open(ctx, cfg, stdout)
	if err != nil {
		return err
	}
	defer dl.Close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "info":
		_, err = dl.Info(optional(rest, 0))
		return err
	case "list":
		return list(dl, rest, stdout)
	case "size":
		return size(dl, rest, stdout)
	case "get":
		return get(ctx, dl, cfg, rest, stdout)
	case "sample":
		return sample(ctx, dl, cfg, rest, stdout)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func defaultCatalog() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "dbcollection.json"
	}
	return filepath.Join(home, ".dbcollection", "catalog.json")
}

func newLogger(cfg config) *loader.Logger {
	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	if cfg.jsonLogs {
		return loader.NewJSONLogger(level)
	}
	return loader.NewTextLogger(level)
}

func open(ctx context.Context, cfg config, stdout io.Writer) (*loader.DataLoader, error) {
	opts := []loader.Option{
		loader.WithLogger(newLogger(cfg)),
		loader.WithOutput(stdout),
		loader.WithReadConcurrency(cfg.concurrency),
		loader.WithReadRateLimit(cfg.rateLimit),
	}
	if cfg.path != "" {
		name := cfg.name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(cfg.path), filepath.Ext(cfg.path))
		}
		return loader.New(ctx, name, cfg.task, filepath.Dir(cfg.path), cfg.path, opts...)
	}
	if cfg.name == "" {
		return nil, errors.New("either -path or -name is required")
	}
	catalog, err := dbcollection.LoadCatalog(cfg.catalog)
	if err != nil {
		return nil, err
	}
	return dbcollection.NewRegistry(catalog, opts...).Open(ctx, cfg.name, cfg.task)
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func list(dl *loader.DataLoader, args []string, w io.Writer) error {
	sets := dl.Sets()
	if set := optional(args, 0); set != "" {
		sets = []string{set}
	}
	for _, set := range sets {
		fields, err := dl.List(set)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", set, strings.Join(fields, ", "))
	}
	return nil
}

func size(dl *loader.DataLoader, args []string, w io.Writer) error {
	sets := dl.Sets()
	if set := optional(args, 0); set != "" {
		sets = []string{set}
	}
	for _, set := range sets {
		s, err := dl.Size(set, optional(args, 1))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %v\n", set, s)
	}
	return nil
}

func parseRows(args []string) (loader.Index, error) {
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", loader.ErrInvalidIndex, args[0])
		}
		return loader.Single(i), nil
	}
	rows := make(loader.Multi, len(args))
	for k, a := range args {
		i, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", loader.ErrInvalidIndex, a)
		}
		rows[k] = i
	}
	return rows, nil
}

func get(ctx context.Context, dl *loader.DataLoader, cfg config, args []string, w io.Writer) error {
	if len(args) < 2 {
		return errors.New("usage: get set field [i ...]")
	}
	idx, err := parseRows(args[2:])
	if err != nil {
		return err
	}
	res, err := dl.Fetch(ctx, loader.Query{Set: args[0], Field: args[1], Index: idx, AsText: cfg.asText})
	if err != nil {
		return err
	}
	if cfg.asText {
		for _, s := range res.Strings {
			fmt.Fprintln(w, s)
		}
		return nil
	}
	fmt.Fprintln(w, res.Data)
	return nil
}

func sample(ctx context.Context, dl *loader.DataLoader, cfg config, args []string, w io.Writer) error {
	if len(args) != 3 {
		return errors.New("usage: sample set field n")
	}
	n, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid sample size %q", args[2])
	}
	s, err := dl.Set(args[0])
	if err != nil {
		return err
	}
	field, err := s.Field(args[1])
	if err != nil {
		return err
	}

	var opts []loader.SampleOption
	if cfg.replace {
		opts = append(opts, loader.WithReplacement())
	}
	if cfg.seed >= 0 {
		opts = append(opts, loader.WithRandomState(uint64(cfg.seed)))
	}
	rows, err := field.Sample(ctx, n, opts...)
	if err != nil {
		return err
	}
	if cfg.asText {
		strs, err := rows.DecodeStrings()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, strings.Join(strs, "\n"))
		return nil
	}
	fmt.Fprintln(w, rows)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/eringen/pubfront"
)

type command struct {
	flags      *pflag.FlagSet
	configPath *string
}

func newCommand(name string) *command {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	return &command{
		flags:      fs,
		configPath: fs.StringP("config", "c", "", "config file (default ./pubfront.yml)"),
	}
}

// load parses args and reads the configuration.
func (cmd *command) load(args []string) (*Config, error) {
	if err := cmd.flags.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := loadConfig(*cmd.configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func newApp(cfg *Config) (*pubfront.App, error) {
	site, err := cfg.Site()
	if err != nil {
		return nil, err
	}
	return pubfront.New(site,
		pubfront.WithLogger(newLogger(cfg.LogLevel)),
		pubfront.WithStaticDir(cfg.StaticDir),
	), nil
}

func runServe(args []string) error {
	cmd := newCommand("serve")
	addr := cmd.flags.String("addr", "", "listen address, overrides ADDR")
	cfg, err := cmd.load(args)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Start(ctx)
}

func runBuild(args []string) error {
	cmd := newCommand("build")
	cfg, err := cmd.load(args)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	paths, err := app.Build(context.Background())
	if err != nil {
		return err
	}
	fmt.Println("/")
	for _, slug := range paths.Slugs() {
		fmt.Printf("/post/%s/\n", slug)
	}
	fmt.Printf("%d posts prerendered, fallback: %s\n", len(paths.Params), paths.Fallback)
	return nil
}

// openLocalStore opens the SQLite database for the maintenance commands.
func openLocalStore(cmd *command, args []string) (*pubfront.Store, []string, error) {
	cfg, err := cmd.load(args)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if !cfg.Local() {
		return nil, nil, errors.New("SANITY_PROJECT_ID is set; this command only works on the local database")
	}
	store, err := pubfront.NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return store, cmd.flags.Args(), nil
}

func runImport(args []string) error {
	store, rest, err := openLocalStore(newCommand("import"), args)
	if err != nil {
		return err
	}
	defer store.Close()
	if len(rest) != 1 {
		return errors.New("usage: pubfront import <file.ndjson>")
	}

	f, err := os.Open(rest[0])
	if err != nil {
		return err
	}
	defer f.Close()

	stats, err := store.ImportNDJSON(context.Background(), f)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d authors, %d posts, %d comments (%d skipped)\n",
		stats.Authors, stats.Posts, stats.Comments, stats.Skipped)
	return nil
}

func runApprove(args []string) error {
	store, rest, err := openLocalStore(newCommand("approve"), args)
	if err != nil {
		return err
	}
	defer store.Close()
	if len(rest) != 1 {
		return errors.New("usage: pubfront approve <comment-id>")
	}
	if err := store.ApproveComment(context.Background(), rest[0]); err != nil {
		return fmt.Errorf("approve %s: %w", rest[0], err)
	}
	fmt.Printf("approved %s\n", rest[0])
	return nil
}

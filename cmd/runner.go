package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wdx/internal/repositories"
	"github.com/desertthunder/wdx/internal/services"
	"github.com/desertthunder/wdx/internal/shared"
	"github.com/desertthunder/wdx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	publisher  services.Publisher
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	Publisher  services.Publisher
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		publisher:  opts.Publisher,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, generateCommand, artistsCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the runner's logger, used by the TUI to redirect logs to a file.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// openDatabase opens the configured SQLite database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// newEngine builds a discovery engine, persisting run bookkeeping when db is non-nil.
func (r *Runner) newEngine(db *sql.DB) *tasks.DiscoveryEngine {
	var playlists tasks.PlaylistStore
	var runs tasks.RunStore
	if db != nil {
		playlists = repositories.NewPlaylistRepository(db)
		runs = repositories.NewRunRepository(db)
	}
	return tasks.NewDiscoveryEngine(r.catalog, r.publisher, playlists, runs, r.logger)
}

// runOpts builds discovery run options from config, overridden by command flags.
func (r *Runner) runOpts(cmd *cli.Command) tasks.RunOpts {
	d := r.config.Discovery
	opts := tasks.RunOpts{
		Window:              time.Duration(d.WindowDays) * 24 * time.Hour,
		MaxRelatedPerArtist: d.MaxRelatedPerArtist,
		MaxArtists:          d.MaxArtists,
		Depth:               d.Depth,
		Workers:             d.Workers,
		StrictDates:         !d.MonthEndFallback,
	}

	if cmd == nil {
		return opts
	}

	if days := cmd.Int("window"); days > 0 {
		opts.Window = time.Duration(days) * 24 * time.Hour
	}
	if related := cmd.Int("related"); related > 0 {
		opts.MaxRelatedPerArtist = related
	}
	if max := cmd.Int("max-artists"); max > 0 {
		opts.MaxArtists = max
	}
	if depth := cmd.Int("depth"); depth > 0 {
		opts.Depth = depth
	}
	if workers := cmd.Int("workers"); workers > 0 {
		opts.Workers = workers
	}
	if cmd.Bool("strict-dates") {
		opts.StrictDates = true
	}
	if cmd.Bool("dry-run") {
		opts.DryRun = true
	}

	return opts
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

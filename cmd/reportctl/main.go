// Command reportctl files and inspects civic reports from the terminal. Each
// --profile is its own device namespace in the local store.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fardannozami/amchegoa/internal/app/usecase"
	"github.com/fardannozami/amchegoa/internal/config"
	"github.com/fardannozami/amchegoa/internal/infra/gemini"
	"github.com/fardannozami/amchegoa/internal/infra/openrouter"
	"github.com/fardannozami/amchegoa/internal/infra/sqlite"
	"github.com/fardannozami/amchegoa/internal/logging"
	"github.com/fardannozami/amchegoa/internal/rewards"
)

func main() {
	if err := newRootCmd(os.Stdout, buildVisionModel).Execute(); err != nil {
		os.Exit(1)
	}
}

type visionModelFactory func(ctx context.Context, cfg config.Config) (usecase.VisionModel, error)

func buildVisionModel(ctx context.Context, cfg config.Config) (usecase.VisionModel, error) {
	if cfg.ClassifierProvider == "gemini" {
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:    cfg.GeminiAPIKey,
			Model:     cfg.GeminiModel,
			MaxTokens: cfg.MaxTokens,
			BaseURL:   cfg.GeminiBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	c, err := openrouter.NewClient(openrouter.Config{
		APIKey:            cfg.OpenRouterAPIKey,
		Model:             cfg.OpenRouterModel,
		Endpoint:          cfg.OpenRouterEndpoint,
		Referer:           cfg.OpenRouterReferer,
		Title:             cfg.OpenRouterTitle,
		MaxTokens:         cfg.MaxTokens,
		RequestsPerSecond: cfg.ClassifierRPS,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// app holds what every subcommand needs. It is built in PersistentPreRunE.
type app struct {
	cfg       config.Config
	out       io.Writer
	log       *zap.Logger
	db        *sql.DB
	store     *sqlite.Store
	locations *sqlite.LocationRepository
	catalog   *rewards.Catalog
	namespace string
	newModel  visionModelFactory
}

func (a *app) open(ctx context.Context, dbPath, namespace string) error {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db
	a.store = sqlite.NewStore(db, a.log)
	if err := a.store.InitTable(ctx); err != nil {
		return fmt.Errorf("init local store: %w", err)
	}
	a.locations = sqlite.NewLocationRepository(db)
	if err := a.locations.InitTable(ctx); err != nil {
		return fmt.Errorf("init location table: %w", err)
	}
	catalog, err := rewards.Load(a.cfg.RewardsCatalog)
	if err != nil {
		return err
	}
	a.catalog = catalog
	a.namespace = namespace
	return nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func newRootCmd(out io.Writer, newModel visionModelFactory) *cobra.Command {
	a := &app{out: out, newModel: newModel}
	var dbPath, profile string

	root := &cobra.Command{
		Use:           "reportctl",
		Short:         "File civic issue reports for Goa from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.Load()
			log, err := logging.New(a.cfg.LogLevel)
			if err != nil {
				return err
			}
			a.log = log
			if dbPath == "" {
				dbPath = a.cfg.SQLitePath
			}
			return a.open(cmd.Context(), dbPath, profile)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database file (defaults to SQLITE_PATH)")
	root.PersistentFlags().StringVar(&profile, "profile", "default", "device namespace to act as")

	root.AddCommand(
		newSignUpCmd(a),
		newSignInCmd(a),
		newSignOutCmd(a),
		newProfileCmd(a),
		newSubmitCmd(a),
		newHistoryCmd(a),
		newRewardsCmd(a),
		newLeaderboardCmd(a),
		newResetCmd(a),
	)
	return root
}

package commands

import (
	"context"
	"fmt"
	"os"

	"premises-geocoder/internal/config"
	"premises-geocoder/internal/geocoder"
	"premises-geocoder/internal/repository"
	"premises-geocoder/internal/service"
	"premises-geocoder/internal/similarity"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "resolver",
	Short: "resolver clusters livestock market records into premises and locates each premises.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadConfig(configPath); err != nil {
			return err
		}
		if err := cfg.RequireStore(); err != nil {
			return err
		}

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("config: invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs", "Directory holding app.env.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("resolver failed")
		os.Exit(1)
	}
}

func openRepository(ctx context.Context) (*repository.Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DBSource)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot connect to db: %w", err)
	}
	repo := repository.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}

func newPremisesService(repo service.PremisesRepository) *service.PremisesService {
	thresholds := service.Thresholds{
		Address:  cfg.AddressThreshold,
		Name:     cfg.NameThreshold,
		NameOnly: cfg.NameOnlyThreshold,
	}
	return service.NewPremisesService(repo, similarity.NewTokenScorer(), thresholds, log.Logger)
}

func newGeonameService(repo service.GeonameRepository) (*service.GeonameService, error) {
	if err := cfg.RequireGeocoders(); err != nil {
		return nil, err
	}
	mapQuest := geocoder.NewMapQuestClient(cfg.MapQuestBaseURL, cfg.MapQuestKey, cfg.HTTPTimeout)
	geoNames := geocoder.NewGeoNamesClient(cfg.GeoNamesBaseURL, cfg.GeoNamesUser, cfg.GeoNamesMinInterval, cfg.HTTPTimeout)
	opts := service.GeonameOptions{MaxFuzzy: cfg.MaxFuzzy, ZipFuzzy: cfg.ZipFuzzy}
	return service.NewGeonameService(repo, mapQuest, geoNames, opts, log.Logger), nil
}

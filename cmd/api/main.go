package main

import (
	"context"

	"premises-geocoder/internal/config"
	"premises-geocoder/internal/handler"
	"premises-geocoder/internal/repository"
	"premises-geocoder/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	config, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	if err := config.RequireStore(); err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	if level, err := zerolog.ParseLevel(config.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	// Database connection
	conn, err := pgxpool.New(context.Background(), config.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer conn.Close()

	// Initialize layers
	repo := repository.NewRepository(conn)
	inspectionService := service.NewInspectionService(repo)

	premisesHandler := handler.NewPremisesHandler(inspectionService)
	statsHandler := handler.NewStatsHandler(inspectionService)

	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handler.NewRouter(premisesHandler, statsHandler)

	log.Info().Str("address", config.ServerAddress).Msg("serving inspection API")
	if err := r.Run(config.ServerAddress); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"premises-geocoder/internal/config"
	"premises-geocoder/internal/models"
	"premises-geocoder/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Column order of the market CSV, after a header row.
const (
	colSource = iota
	colSourceID
	colRow
	colName
	colAddress
	colPO
	colCity
	colState
	colZip
	colZipExt
	numColumns
)

func main() {
	file := flag.String("file", "", "Path to the CSV file to import")
	configPath := flag.String("config", "configs", "Directory holding app.env")
	flag.Parse()

	if *file == "" {
		log.Fatal().Msg("--file flag is required")
	}

	log.Info().Str("file", *file).Msg("starting import")

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open file")
	}
	defer f.Close()

	markets, err := parseCSV(f)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot parse CSV")
	}

	log.Info().Int("records", len(markets)).Msg("parsed markets")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	if err := cfg.RequireStore(); err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer pool.Close()

	repo := repository.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("cannot create schema")
	}

	before, err := repo.Stats(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot count markets")
	}

	n, err := repo.ImportMarkets(ctx, markets)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot insert markets")
	}

	// Verify data
	after, err := repo.Stats(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot count markets")
	}
	if after.Markets-before.Markets != len(markets) {
		log.Fatal().Int("expected", len(markets)).Int("got", after.Markets-before.Markets).Msg("record count mismatch")
	}

	log.Info().Int64("imported", n).Int("markets_without_premises", after.MarketsWithoutPremises).Msg("import finished")
}

func parseCSV(r io.Reader) ([]models.Market, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = numColumns
	reader.TrimLeadingSpace = true

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var markets []models.Market
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		source := models.SourceType(strings.ToLower(record[colSource]))
		if !source.Valid() {
			return nil, fmt.Errorf("line %d: unknown source %q", line, record[colSource])
		}

		var row int64
		if record[colRow] != "" {
			if row, err = strconv.ParseInt(record[colRow], 10, 64); err != nil || row <= 0 {
				return nil, fmt.Errorf("line %d: invalid row %q", line, record[colRow])
			}
		}

		state := strings.ToUpper(record[colState])
		if state != "" && !models.IsStateCode(state) {
			return nil, fmt.Errorf("line %d: unknown state %q", line, record[colState])
		}

		markets = append(markets, models.Market{
			Source:   source,
			SourceID: record[colSourceID],
			Row:      row,
			Name:     record[colName],
			Address:  record[colAddress],
			PO:       record[colPO],
			City:     record[colCity],
			State:    state,
			Zip:      record[colZip],
			ZipExt:   record[colZipExt],
		})
	}

	return markets, nil
}

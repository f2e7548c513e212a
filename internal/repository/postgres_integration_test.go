//go:build integration

package repository_test

import (
	"context"
	"testing"
	"time"

	"premises-geocoder/internal/models"
	"premises-geocoder/internal/repository"
	"premises-geocoder/internal/service"
	"premises-geocoder/internal/similarity"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	ctx := context.Background()

	// Start PostgreSQL container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
	}

	postgresC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		postgresC.Terminate(ctx)
	})

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)

	port, err := postgresC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := "postgres://testuser:testpass@" + host + ":" + port.Port() + "/testdb?sslmode=disable"

	// Connect to database
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})

	return pool
}

func seed(t *testing.T, pool *pgxpool.Pool, markets ...models.Market) *repository.Repository {
	t.Helper()
	ctx := context.Background()

	_, err := pool.Exec(ctx, `DROP TABLE IF EXISTS market, geoname, premises CASCADE`)
	require.NoError(t, err)

	repo := repository.NewRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	// Idempotent
	require.NoError(t, repo.EnsureSchema(ctx))

	n, err := repo.ImportMarkets(ctx, markets)
	require.NoError(t, err)
	require.Equal(t, int64(len(markets)), n)
	return repo
}

var fixture = []models.Market{
	{Source: models.SourceLMA, SourceID: "L-1", Name: "Hays Livestock Market", Address: "123 Main St", City: "Hays", State: "KS", Zip: "67601"},
	{Source: models.SourceGIPSA, Name: "Hays Sale Company", Address: "123 Main Street", City: "Hays", State: "KS"},
	{Source: models.SourceAMS, Row: 7, Name: "Hays Sale Barn", PO: "PO Box 12", City: "Hays", State: "KS"},
	{Source: models.SourceAMS, Row: 7, City: "Hays", State: "KS"},
	{Source: models.SourceLMA, Name: "Dodge City Livestock Auction", PO: "PO Box 1", City: "Dodge City", State: "KS"},
	{Source: models.SourceLMA, Name: "Platte Valley Auction", City: "Kearney", State: "NE"},
}

func TestRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDatabase(t)
	ctx := context.Background()

	t.Run("markets round trip with missing values", func(t *testing.T) {
		repo := seed(t, pool, fixture...)

		m, err := repo.NextUnresolvedMarket(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, models.Market{
			ID: 1, Source: models.SourceLMA, SourceID: "L-1", Name: "Hays Livestock Market",
			Address: "123 Main St", City: "Hays", State: "KS", Zip: "67601",
		}, *m)

		m, err = repo.NextUnresolvedMarket(ctx, 6)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("find candidates", func(t *testing.T) {
		repo := seed(t, pool, fixture...)

		tests := []struct {
			name     string
			query    models.MarketQuery
			expected []int64
		}{
			{
				name:     "same city",
				query:    models.MarketQuery{State: "KS", City: "Hays", ByCity: true, Exclude: []int64{1}},
				expected: []int64{2, 3, 4},
			},
			{
				name:     "street address only",
				query:    models.MarketQuery{State: "KS", City: "Hays", ByCity: true, Address: models.Present},
				expected: []int64{1, 2},
			},
			{
				name:     "box address without street address across the state",
				query:    models.MarketQuery{State: "KS", Address: models.Absent, PO: models.Present},
				expected: []int64{3, 5},
			},
			{
				name:  "other state",
				query: models.MarketQuery{State: "CO"},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				markets, err := repo.FindCandidates(ctx, tt.query)
				require.NoError(t, err)

				var ids []int64
				for _, m := range markets {
					ids = append(ids, m.ID)
				}
				assert.Equal(t, tt.expected, ids)
			})
		}
	})

	t.Run("row group", func(t *testing.T) {
		repo := seed(t, pool, fixture...)

		m, err := repo.FindRowGroupMatch(ctx, models.SourceAMS, 7, []int64{3})
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, int64(4), m.ID)

		m, err = repo.FindRowGroupMatch(ctx, models.SourceAPHIS, 7, nil)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("assign premises", func(t *testing.T) {
		repo := seed(t, pool, fixture...)

		id, err := repo.AssignPremises(ctx, nil, []int64{1, 2})
		require.NoError(t, err)

		same, err := repo.FindSamePremises(ctx, []int64{2})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, same)

		_, err = repo.AssignPremises(ctx, nil, []int64{2, 3})
		assert.ErrorIs(t, err, repository.ErrAlreadyAssigned)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Premises, "conflicting chain must not leave a premises behind")
		assert.Equal(t, 4, stats.MarketsWithoutPremises)

		adopted, err := repo.AssignPremises(ctx, &id, []int64{3})
		require.NoError(t, err)
		assert.Equal(t, id, adopted)

		premises, err := repo.GetPremises(ctx, id)
		require.NoError(t, err)
		assert.Len(t, premises.Markets, 3)
		assert.Nil(t, premises.Geoname)

		_, err = repo.GetPremises(ctx, id+100)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("geoname transaction rolls back", func(t *testing.T) {
		repo := seed(t, pool, fixture...)
		id, err := repo.AssignPremises(ctx, nil, []int64{1})
		require.NoError(t, err)

		err = repo.WithinTx(ctx, func(tx repository.GeonameTx) error {
			g := &models.Geoname{GeonameID: 4273837, AdminCode1: "KS", AdminCode2: "051"}
			require.NoError(t, tx.CreateGeoname(ctx, g))
			require.NoError(t, tx.SetPremisesGeoname(ctx, id, g.ID))
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Geonames)
		assert.Equal(t, 1, stats.PremisesWithoutGeoname)

		fuzzy := 0.4
		err = repo.WithinTx(ctx, func(tx repository.GeonameTx) error {
			g := &models.Geoname{GeonameID: 4273837, AdminCode1: "KS", AdminCode2: "051", Fuzzy: &fuzzy}
			if err := tx.CreateGeoname(ctx, g); err != nil {
				return err
			}
			p, err := tx.LockPremises(ctx, id)
			if err != nil {
				return err
			}
			assert.Nil(t, p.GeonameID)
			if err := tx.SetGeonamePremises(ctx, g.ID, id); err != nil {
				return err
			}
			return tx.SetPremisesGeoname(ctx, id, g.ID)
		})
		require.NoError(t, err)

		premises, err := repo.GetPremises(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, premises.Geoname)
		assert.Equal(t, int64(4273837), premises.Geoname.GeonameID)
		require.NotNil(t, premises.Geoname.Fuzzy)
		assert.InDelta(t, 0.4, *premises.Geoname.Fuzzy, 1e-9)
		assert.Equal(t, &id, premises.Geoname.PremisesID)

		remaining, err := repo.PremisesWithoutGeoname(ctx)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("premises assignment end to end", func(t *testing.T) {
		repo := seed(t, pool, fixture...)
		svc := service.NewPremisesService(repo, similarity.NewTokenScorer(), service.DefaultThresholds(), zerolog.Nop())

		summary, err := svc.AssignPremises(ctx)
		require.NoError(t, err)
		assert.Equal(t, 6, summary.Markets)

		same, err := repo.FindSamePremises(ctx, []int64{1})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, same)

		same, err = repo.FindSamePremises(ctx, []int64{3})
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 4}, same)

		summary, err = svc.AssignPremises(ctx)
		require.NoError(t, err)
		assert.Equal(t, service.PremisesSummary{}, summary)
	})
}

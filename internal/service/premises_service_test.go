package service

import (
	"context"
	"testing"

	"premises-geocoder/internal/models"
	"premises-geocoder/internal/repository"
	"premises-geocoder/internal/similarity"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedScorer scores every pair the same.
type fixedScorer float64

func (f fixedScorer) Score(string, string) float64 { return float64(f) }

func newPremisesService(repo PremisesRepository, scorer similarity.Scorer) *PremisesService {
	return NewPremisesService(repo, scorer, DefaultThresholds(), zerolog.Nop())
}

func premisesOf(t *testing.T, repo *repository.MemoryRepository, id int64) int64 {
	t.Helper()
	m, ok := repo.Market(id)
	require.True(t, ok)
	require.NotNil(t, m.PremisesID, "market %d has no premises", id)
	return *m.PremisesID
}

func ptr(v int64) *int64 { return &v }

func TestPremisesService_AssignPremises_AddressDuplicates(t *testing.T) {
	repo := repository.NewMemoryRepository(
		models.Market{Source: models.SourceLMA, Name: "Hays Livestock Market", Address: "123 Main St", City: "Hays", State: "KS"},
		models.Market{Source: models.SourceGIPSA, Name: "Hays Sale Company", Address: "123 Main Street", City: "Hays", State: "KS"},
	)
	svc := newPremisesService(repo, similarity.NewTokenScorer())

	summary, err := svc.AssignPremises(context.Background())
	require.NoError(t, err)

	assert.Equal(t, premisesOf(t, repo, 1), premisesOf(t, repo, 2))
	assert.Equal(t, PremisesSummary{Chains: 1, Markets: 2, PremisesCreated: 1}, summary)

	// Converged: a second pass has nothing to do.
	summary, err = svc.AssignPremises(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PremisesSummary{}, summary)
}

func TestPremisesService_AssignPremises_ChainIsTransitive(t *testing.T) {
	repo := repository.NewMemoryRepository(
		models.Market{Source: models.SourceAMS, Row: 7, Name: "Hays Sale Barn", City: "Hays", State: "KS"},
		models.Market{Source: models.SourceAMS, Row: 7, PO: "PO Box 12", City: "Hays", State: "KS"},
		models.Market{Source: models.SourceLMA, Name: "Sale Barn", PO: "PO Box 12", City: "Hays", State: "KS"},
		models.Market{Source: models.SourceLMA, Name: "Platte Valley Auction", City: "Kearney", State: "NE"},
	)
	svc := newPremisesService(repo, similarity.NewTokenScorer())

	summary, err := svc.AssignPremises(context.Background())
	require.NoError(t, err)

	a := premisesOf(t, repo, 1)
	assert.Equal(t, a, premisesOf(t, repo, 2))
	assert.Equal(t, a, premisesOf(t, repo, 3))
	assert.NotEqual(t, a, premisesOf(t, repo, 4))
	assert.Equal(t, 2, summary.PremisesCreated)
	assert.Equal(t, 4, summary.Markets)
}

func TestPremisesService_AssignPremises_AdoptsExistingPremises(t *testing.T) {
	repo := repository.NewMemoryRepository(
		models.Market{ID: 1, Source: models.SourceLMA, Address: "500 Elm St", City: "Abilene", State: "KS", PremisesID: ptr(9)},
		models.Market{ID: 2, Source: models.SourceGIPSA, Address: "500 Elm Street", City: "Abilene", State: "KS"},
	)
	svc := newPremisesService(repo, similarity.NewTokenScorer())

	summary, err := svc.AssignPremises(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(9), premisesOf(t, repo, 2))
	assert.Equal(t, PremisesSummary{Chains: 1, Markets: 1, PremisesAdopted: 1}, summary)
}

func TestPremisesService_NextMatch(t *testing.T) {
	tests := []struct {
		name     string
		markets  []models.Market
		scorer   similarity.Scorer
		expected int64
	}{
		{
			name: "row group of the same source",
			markets: []models.Market{
				{Source: models.SourceAPHIS, Row: 3, Name: "A", City: "Hays", State: "KS"},
				{Source: models.SourceAPHIS, Row: 3, Name: "B", City: "Ogallala", State: "NE"},
			},
			expected: 2,
		},
		{
			name: "row group never crosses sources",
			markets: []models.Market{
				{Source: models.SourceAMS, Row: 3, Name: "Alpha", City: "Hays", State: "KS"},
				{Source: models.SourceAPHIS, Row: 3, Name: "Omega", City: "Ogallala", State: "NE"},
			},
		},
		{
			name: "box address wins over street address",
			markets: []models.Market{
				{Source: models.SourceLMA, Address: "123 Main St", PO: "PO Box 9", City: "Hays", State: "KS"},
				{Source: models.SourceGIPSA, Address: "123 Main Street", City: "Hays", State: "KS"},
				{Source: models.SourceAMS, PO: "PO Box 9", City: "Hays", State: "KS"},
			},
			expected: 3,
		},
		{
			name: "score at the address threshold does not match",
			markets: []models.Market{
				{Source: models.SourceLMA, Address: "10 Oak St", City: "Hays", State: "KS"},
				{Source: models.SourceGIPSA, Address: "12 Oak St", City: "Hays", State: "KS"},
			},
			scorer: fixedScorer(4),
		},
		{
			name: "score above the address threshold matches",
			markets: []models.Market{
				{Source: models.SourceLMA, Address: "10 Oak St", City: "Hays", State: "KS"},
				{Source: models.SourceGIPSA, Address: "12 Oak St", City: "Hays", State: "KS"},
			},
			scorer:   fixedScorer(4.01),
			expected: 2,
		},
		{
			name: "highest score wins",
			markets: []models.Market{
				{Source: models.SourceLMA, Name: "Fort Scott Livestock Market", City: "Fort Scott", State: "KS"},
				{Source: models.SourceGIPSA, Name: "Scott Sale Barn", City: "Fort Scott", State: "KS"},
				{Source: models.SourceAMS, Name: "Fort Scott Livestock", City: "Fort Scott", State: "KS"},
			},
			expected: 3,
		},
		{
			name: "shared house number on another street does not match",
			markets: []models.Market{
				{Source: models.SourceLMA, Address: "123 Main St", City: "Hays", State: "KS"},
				{Source: models.SourceGIPSA, Address: "123 Oak Ave", City: "Hays", State: "KS"},
			},
		},
		{
			name: "city must agree for fuzzy rules",
			markets: []models.Market{
				{Source: models.SourceLMA, Address: "123 Main St", City: "Hays", State: "KS"},
				{Source: models.SourceGIPSA, Address: "123 Main Street", City: "Russell", State: "KS"},
			},
		},
		{
			name: "no signal takes any market in the same city",
			markets: []models.Market{
				{Source: models.SourceLMA, City: "Hays", State: "KS"},
				{Source: models.SourceGIPSA, City: "Salina", State: "KS"},
				{Source: models.SourceAMS, Name: "Hays Sale Barn", City: "Hays", State: "KS"},
			},
			expected: 3,
		},
		{
			name: "no signal and no city",
			markets: []models.Market{
				{Source: models.SourceLMA, State: "KS"},
				{Source: models.SourceGIPSA, State: "KS"},
			},
		},
		{
			name: "street address matched to box address by name across the state",
			markets: []models.Market{
				{Source: models.SourceLMA, Name: "Dodge City Livestock Auction", Address: "100 Trail St", City: "Dodge City", State: "KS"},
				{Source: models.SourceGIPSA, Name: "Dodge City Livestock Auction Inc", PO: "PO Box 1", City: "Wright", State: "KS"},
			},
			expected: 2,
		},
		{
			name: "cross-state name match needs opposite representation",
			markets: []models.Market{
				{Source: models.SourceLMA, Name: "Dodge City Livestock Auction", Address: "100 Trail St", City: "Dodge City", State: "KS"},
				{Source: models.SourceGIPSA, Name: "Dodge City Livestock Auction Inc", Address: "1 Trail St", PO: "PO Box 1", City: "Wright", State: "KS"},
			},
		},
		{
			name: "cross-state name match uses the stricter threshold",
			markets: []models.Market{
				{Source: models.SourceLMA, Name: "Wright Livestock Auction", Address: "100 Trail St", City: "Dodge City", State: "KS"},
				{Source: models.SourceGIPSA, Name: "Wright Livestock Auction", PO: "PO Box 1", City: "Wright", State: "KS"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryRepository(tt.markets...)
			scorer := tt.scorer
			if scorer == nil {
				scorer = similarity.NewTokenScorer()
			}
			svc := newPremisesService(repo, scorer)

			start, _ := repo.Market(1)
			match, err := svc.NextMatch(context.Background(), start, []models.Market{start})
			require.NoError(t, err)

			if tt.expected == 0 {
				assert.Nil(t, match)
				return
			}
			require.NotNil(t, match)
			assert.Equal(t, tt.expected, match.ID)
		})
	}
}

func TestPremisesService_NextMatch_NeverReturnsExcluded(t *testing.T) {
	// Market 2 carries a different box address, so the box rule rules it out
	// and market 3 goes with it through their shared premises. Both would
	// otherwise match on street address.
	repo := repository.NewMemoryRepository(
		models.Market{ID: 1, Source: models.SourceLMA, Address: "10 Oak St", PO: "PO Box 1", City: "Hays", State: "KS"},
		models.Market{ID: 2, Source: models.SourceGIPSA, Address: "10 Oak Street", PO: "PO Box 2", City: "Hays", State: "KS", PremisesID: ptr(4)},
		models.Market{ID: 3, Source: models.SourceAMS, Address: "10 Oak St", City: "Hays", State: "KS", PremisesID: ptr(4)},
	)
	svc := newPremisesService(repo, similarity.NewTokenScorer())

	start, _ := repo.Market(1)
	match, err := svc.NextMatch(context.Background(), start, []models.Market{start})
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestPremisesService_NextMatch_UsesWholeChain(t *testing.T) {
	// The current market has no address, but an earlier one in the chain does.
	repo := repository.NewMemoryRepository(
		models.Market{ID: 1, Source: models.SourceLMA, Address: "77 Stockyard Rd", City: "Ogallala", State: "NE"},
		models.Market{ID: 2, Source: models.SourceAMS, Name: "Ogallala Livestock Auction", City: "Ogallala", State: "NE"},
		models.Market{ID: 3, Source: models.SourceGIPSA, Address: "77 Stockyard Road", City: "Ogallala", State: "NE"},
	)
	svc := newPremisesService(repo, similarity.NewTokenScorer())

	first, _ := repo.Market(1)
	second, _ := repo.Market(2)
	match, err := svc.NextMatch(context.Background(), second, []models.Market{first, second})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, int64(3), match.ID)
}

func TestNewMatchContext(t *testing.T) {
	chain := []models.Market{
		{ID: 1, Name: "A", Address: "1 Main St"},
		{ID: 2, Name: "A", PO: "PO Box 1"},
		{ID: 3, Name: "B"},
	}
	mc := newMatchContext(chain[2], chain)

	assert.Equal(t, []string{"A", "B"}, mc.names)
	assert.Equal(t, []string{"1 Main St"}, mc.addresses)
	assert.Equal(t, []string{"PO Box 1"}, mc.pos)
	assert.Equal(t, []int64{1, 2, 3}, mc.excluded())

	mc.add(3, 5, 4, 5)
	assert.Equal(t, []int64{1, 2, 3, 5, 4}, mc.excluded())
}

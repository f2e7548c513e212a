package service

import (
	"context"
	"errors"
	"fmt"

	"premises-geocoder/internal/models"
	"premises-geocoder/internal/repository"
	"premises-geocoder/internal/similarity"

	"github.com/rs/zerolog"
)

// PremisesRepository is the record store used to cluster markets into premises.
type PremisesRepository interface {
	NextUnresolvedMarket(ctx context.Context, afterID int64) (*models.Market, error)
	FindRowGroupMatch(ctx context.Context, source models.SourceType, row int64, exclude []int64) (*models.Market, error)
	FindCandidates(ctx context.Context, q models.MarketQuery) ([]models.Market, error)
	FindSamePremises(ctx context.Context, ids []int64) ([]int64, error)
	AssignPremises(ctx context.Context, premisesID *int64, marketIDs []int64) (int64, error)
}

// Thresholds are the relevance scores a candidate must exceed to count as a duplicate.
// They are calibrated to the scale of the configured similarity.Scorer.
type Thresholds struct {
	Address  float64
	Name     float64
	NameOnly float64
}

// DefaultThresholds returns the thresholds calibrated for similarity.TokenScorer.
func DefaultThresholds() Thresholds {
	return Thresholds{Address: 4, Name: 5, NameOnly: 10}
}

// PremisesSummary counts the outcome of one Stage-1 pass.
type PremisesSummary struct {
	Chains          int `json:"chains"`
	Markets         int `json:"markets"`
	PremisesCreated int `json:"premises_created"`
	PremisesAdopted int `json:"premises_adopted"`
	Conflicts       int `json:"conflicts"`
}

// PremisesService clusters duplicate markets into premises.
type PremisesService struct {
	repo       PremisesRepository
	scorer     similarity.Scorer
	thresholds Thresholds
	log        zerolog.Logger
}

// NewPremisesService creates a new premises service
func NewPremisesService(repo PremisesRepository, scorer similarity.Scorer, thresholds Thresholds, logger zerolog.Logger) *PremisesService {
	return &PremisesService{repo: repo, scorer: scorer, thresholds: thresholds, log: logger}
}

// AssignPremises walks every market without a premises, grows a chain of
// duplicates from it and commits the chain onto one premises. Each chain is
// its own transaction, so an interrupted run can simply be started again.
func (s *PremisesService) AssignPremises(ctx context.Context) (PremisesSummary, error) {
	var summary PremisesSummary
	var cursor int64
	for {
		market, err := s.repo.NextUnresolvedMarket(ctx, cursor)
		if err != nil {
			return summary, fmt.Errorf("service: failed to fetch next market: %w", err)
		}
		if market == nil {
			break
		}
		cursor = market.ID

		chain, adopted, err := s.BuildChain(ctx, *market)
		if err != nil {
			return summary, err
		}

		ids := make([]int64, len(chain))
		for i, m := range chain {
			ids[i] = m.ID
		}

		premisesID, err := s.repo.AssignPremises(ctx, adopted, ids)
		if errors.Is(err, repository.ErrAlreadyAssigned) {
			s.log.Warn().Int64("market_id", market.ID).Ints64("chain", ids).Msg("market in chain was assigned concurrently; chain skipped")
			summary.Conflicts++
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("service: failed to commit chain: %w", err)
		}

		summary.Chains++
		summary.Markets += len(chain)
		if adopted != nil {
			summary.PremisesAdopted++
		} else {
			summary.PremisesCreated++
		}
		s.log.Debug().Int64("premises_id", premisesID).Ints64("chain", ids).Bool("adopted", adopted != nil).Msg("chain committed")
	}

	s.log.Info().
		Int("chains", summary.Chains).
		Int("markets", summary.Markets).
		Int("premises_created", summary.PremisesCreated).
		Int("premises_adopted", summary.PremisesAdopted).
		Int("conflicts", summary.Conflicts).
		Msg("premises assignment finished")
	return summary, nil
}

// BuildChain grows a chain of duplicates from start. Growth stops when no
// further match exists, or when the match already sits on a premises; in the
// latter case that premises is returned for the whole chain to adopt.
func (s *PremisesService) BuildChain(ctx context.Context, start models.Market) ([]models.Market, *int64, error) {
	chain := []models.Market{start}
	current := start
	for {
		match, err := s.NextMatch(ctx, current, chain)
		if err != nil {
			return nil, nil, err
		}
		if match == nil {
			return chain, nil, nil
		}
		if match.PremisesID != nil {
			return chain, match.PremisesID, nil
		}
		chain = append(chain, *match)
		current = *match
	}
}

// NextMatch returns the best duplicate of market outside chain, or nil. The
// rules below are tried in order and the first hit wins.
func (s *PremisesService) NextMatch(ctx context.Context, market models.Market, chain []models.Market) (*models.Market, error) {
	mc := newMatchContext(market, chain)

	// Rows split during import are certainly duplicates.
	if row, ok := market.RowGroup(); ok {
		match, err := s.repo.FindRowGroupMatch(ctx, market.Source, row, mc.excluded())
		if err != nil {
			return nil, fmt.Errorf("service: failed to find row group match: %w", err)
		}
		if match != nil {
			return match, nil
		}
	}

	hasCity := market.City != ""

	if len(mc.pos) > 0 && hasCity {
		candidates, err := s.candidates(ctx, mc, true)
		if err != nil {
			return nil, err
		}
		match := firstEqual(candidates, mc.pos, poOf)
		if err := s.exclude(ctx, mc, candidates, poOf); err != nil {
			return nil, err
		}
		if match != nil {
			return match, nil
		}
	}

	if len(mc.addresses) > 0 && hasCity {
		candidates, err := s.candidates(ctx, mc, true)
		if err != nil {
			return nil, err
		}
		match := s.bestScore(mc.addresses, candidates, addressOf, s.thresholds.Address)
		if err := s.exclude(ctx, mc, candidates, addressOf); err != nil {
			return nil, err
		}
		if match != nil {
			return match, nil
		}
	}

	if len(mc.names) > 0 && hasCity {
		candidates, err := s.candidates(ctx, mc, true)
		if err != nil {
			return nil, err
		}
		match := s.bestScore(mc.names, candidates, nameOf, s.thresholds.Name)
		if err := s.exclude(ctx, mc, candidates, nameOf); err != nil {
			return nil, err
		}
		if match != nil {
			return match, nil
		}
	}

	if mc.noSignal() {
		if !hasCity {
			return nil, nil
		}
		// Nothing to tell the remaining markets apart by.
		candidates, err := s.candidates(ctx, mc, true)
		if err != nil || len(candidates) == 0 {
			return nil, err
		}
		return &candidates[0], nil
	}

	if len(mc.names) == 0 {
		return nil, nil
	}

	// A market listed by street address in one source and by box address in
	// another: match on name alone across the state, with a stricter threshold.
	q := mc.query(false)
	switch {
	case len(mc.addresses) > 0 && len(mc.pos) == 0:
		q.Address, q.PO = models.Absent, models.Present
	case len(mc.pos) > 0 && len(mc.addresses) == 0:
		q.Address, q.PO = models.Present, models.Absent
	default:
		return nil, nil
	}
	candidates, err := s.repo.FindCandidates(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service: failed to find candidates: %w", err)
	}
	return s.bestScore(mc.names, candidates, nameOf, s.thresholds.NameOnly), nil
}

func (s *PremisesService) candidates(ctx context.Context, mc *matchContext, byCity bool) ([]models.Market, error) {
	candidates, err := s.repo.FindCandidates(ctx, mc.query(byCity))
	if err != nil {
		return nil, fmt.Errorf("service: failed to find candidates: %w", err)
	}
	return candidates, nil
}

// exclude rules out every candidate carrying field, and every market already
// on the same premises as anything excluded.
func (s *PremisesService) exclude(ctx context.Context, mc *matchContext, candidates []models.Market, field func(models.Market) string) error {
	for _, c := range candidates {
		if field(c) != "" {
			mc.add(c.ID)
		}
	}
	same, err := s.repo.FindSamePremises(ctx, mc.excluded())
	if err != nil {
		return fmt.Errorf("service: failed to find markets on excluded premises: %w", err)
	}
	mc.add(same...)
	return nil
}

// bestScore tries each known value in chain order and returns the highest
// scoring candidate above threshold for the first value that has one.
func (s *PremisesService) bestScore(known []string, candidates []models.Market, field func(models.Market) string, threshold float64) *models.Market {
	for _, value := range known {
		var best *models.Market
		var bestScore float64
		for i := range candidates {
			text := field(candidates[i])
			if text == "" {
				continue
			}
			score := s.scorer.Score(value, text)
			if score > threshold && (best == nil || score > bestScore) {
				best, bestScore = &candidates[i], score
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

func firstEqual(candidates []models.Market, known []string, field func(models.Market) string) *models.Market {
	for i := range candidates {
		v := field(candidates[i])
		if v == "" {
			continue
		}
		for _, k := range known {
			if v == k {
				return &candidates[i]
			}
		}
	}
	return nil
}

func nameOf(m models.Market) string    { return m.Name }
func addressOf(m models.Market) string { return m.Address }
func poOf(m models.Market) string      { return m.PO }

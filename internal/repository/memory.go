package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"premises-geocoder/internal/models"
)

type memoryState struct {
	markets  []models.Market // id order
	premises map[int64]models.Premises
	geonames []models.Geoname // id order

	nextPremises int64
	nextGeoname  int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		markets:      slices.Clone(s.markets),
		premises:     make(map[int64]models.Premises, len(s.premises)),
		geonames:     slices.Clone(s.geonames),
		nextPremises: s.nextPremises,
		nextGeoname:  s.nextGeoname,
	}
	for id, p := range s.premises {
		c.premises[id] = p
	}
	return c
}

// MemoryRepository keeps markets, premises and geonames in memory with the
// same semantics as the PostgreSQL store. Transactions work on a copy that
// replaces the state only on commit.
type MemoryRepository struct {
	mu    sync.Mutex
	state *memoryState
}

// NewMemoryRepository returns a store seeded with markets. Ids are assigned
// in order when zero; premises referenced by the markets are created.
func NewMemoryRepository(markets ...models.Market) *MemoryRepository {
	r := &MemoryRepository{state: &memoryState{premises: map[int64]models.Premises{}}}
	var next int64
	for _, m := range markets {
		if m.ID == 0 {
			m.ID = next + 1
		}
		next = max(next, m.ID)
		if m.PremisesID != nil {
			r.state.premises[*m.PremisesID] = models.Premises{ID: *m.PremisesID}
			r.state.nextPremises = max(r.state.nextPremises, *m.PremisesID)
		}
		r.state.markets = append(r.state.markets, m)
	}
	slices.SortFunc(r.state.markets, func(a, b models.Market) int { return cmp.Compare(a.ID, b.ID) })
	return r
}

// Market returns a copy of a market by id.
func (r *MemoryRepository) Market(id int64) (models.Market, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.state.marketIndex(id)
	if i < 0 {
		return models.Market{}, false
	}
	return r.state.markets[i], true
}

func (s *memoryState) marketIndex(id int64) int {
	return slices.IndexFunc(s.markets, func(m models.Market) bool { return m.ID == id })
}

func (r *MemoryRepository) NextUnresolvedMarket(_ context.Context, afterID int64) (*models.Market, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.state.markets {
		if m.PremisesID == nil && m.ID > afterID {
			return &m, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindRowGroupMatch(_ context.Context, source models.SourceType, row int64, exclude []int64) (*models.Market, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.state.markets {
		if m.Source == source && m.Row == row && !slices.Contains(exclude, m.ID) {
			return &m, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindCandidates(_ context.Context, q models.MarketQuery) ([]models.Market, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Market
	for _, m := range r.state.markets {
		if q.Match(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepository) FindSamePremises(_ context.Context, ids []int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	premises := map[int64]bool{}
	for _, m := range r.state.markets {
		if m.PremisesID != nil && slices.Contains(ids, m.ID) {
			premises[*m.PremisesID] = true
		}
	}
	var out []int64
	for _, m := range r.state.markets {
		if m.PremisesID != nil && premises[*m.PremisesID] {
			out = append(out, m.ID)
		}
	}
	return out, nil
}

func (r *MemoryRepository) AssignPremises(_ context.Context, premisesID *int64, marketIDs []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state.clone()

	var id int64
	if premisesID != nil {
		id = *premisesID
	} else {
		s.nextPremises++
		id = s.nextPremises
		s.premises[id] = models.Premises{ID: id}
	}

	for _, mid := range marketIDs {
		i := s.marketIndex(mid)
		if i < 0 || s.markets[i].PremisesID != nil {
			return 0, ErrAlreadyAssigned
		}
		s.markets[i].PremisesID = &id
	}

	r.state = s
	return id, nil
}

func (r *MemoryRepository) PremisesWithoutGeoname(_ context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[int64]bool{}
	var out []int64
	for _, m := range r.state.markets {
		if m.PremisesID == nil || seen[*m.PremisesID] {
			continue
		}
		seen[*m.PremisesID] = true
		if r.state.premises[*m.PremisesID].GeonameID == nil {
			out = append(out, *m.PremisesID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (r *MemoryRepository) MarketsOfPremises(_ context.Context, premisesID int64) ([]models.Market, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.marketsOf(premisesID), nil
}

func (s *memoryState) marketsOf(premisesID int64) []models.Market {
	var out []models.Market
	for _, m := range s.markets {
		if m.PremisesID != nil && *m.PremisesID == premisesID {
			out = append(out, m)
		}
	}
	return out
}

func (r *MemoryRepository) WithinTx(_ context.Context, fn func(tx GeonameTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryGeonameTx{s: r.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	r.state = tx.s
	return nil
}

func (r *MemoryRepository) GetPremises(_ context.Context, id int64) (*models.Premises, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.state.premises[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.GeonameID != nil {
		if i := r.state.geonameIndex(*p.GeonameID); i >= 0 {
			g := r.state.geonames[i]
			p.Geoname = &g
		}
	}
	p.Markets = r.state.marketsOf(id)
	return &p, nil
}

func (r *MemoryRepository) Stats(_ context.Context) (models.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := models.Stats{
		Markets:  len(r.state.markets),
		Premises: len(r.state.premises),
		Geonames: len(r.state.geonames),
	}
	for _, m := range r.state.markets {
		if m.PremisesID == nil {
			s.MarketsWithoutPremises++
		}
	}
	for _, p := range r.state.premises {
		if p.GeonameID == nil {
			s.PremisesWithoutGeoname++
		}
	}
	return s, nil
}

func (s *memoryState) geonameIndex(id int64) int {
	return slices.IndexFunc(s.geonames, func(g models.Geoname) bool { return g.ID == id })
}

type memoryGeonameTx struct {
	s *memoryState
}

func (t *memoryGeonameTx) FindGeonameByExternalID(_ context.Context, geonameID int64) (*models.Geoname, error) {
	for _, g := range t.s.geonames {
		if g.GeonameID == geonameID {
			return &g, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryGeonameTx) CreateGeoname(_ context.Context, g *models.Geoname) error {
	t.s.nextGeoname++
	g.ID = t.s.nextGeoname
	t.s.geonames = append(t.s.geonames, *g)
	return nil
}

func (t *memoryGeonameTx) LockPremises(_ context.Context, premisesID int64) (*models.Premises, error) {
	p, ok := t.s.premises[premisesID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memoryGeonameTx) SetPremisesGeoname(_ context.Context, premisesID, geonameID int64) error {
	p, ok := t.s.premises[premisesID]
	if !ok {
		return ErrNotFound
	}
	p.GeonameID = &geonameID
	t.s.premises[premisesID] = p
	return nil
}

func (t *memoryGeonameTx) SetGeonamePremises(_ context.Context, geonameID, premisesID int64) error {
	i := t.s.geonameIndex(geonameID)
	if i < 0 {
		return ErrNotFound
	}
	t.s.geonames[i].PremisesID = &premisesID
	return nil
}

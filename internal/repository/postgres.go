package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"premises-geocoder/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const marketColumns = `
	id,
	source,
	coalesce(source_id, ''),
	coalesce(row_group, 0),
	coalesce(name, ''),
	coalesce(address, ''),
	coalesce(po, ''),
	coalesce(city, ''),
	coalesce(state, ''),
	coalesce(zip, ''),
	coalesce(zip_ext, ''),
	premises_id`

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the PostgreSQL record store for markets, premises and geonames.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the tables if they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("repository: failed to create schema: %w", err)
	}
	return nil
}

// NextUnresolvedMarket returns the lowest-id market without a premises whose id is above afterID.
// It returns nil when there is none left.
func (r *Repository) NextUnresolvedMarket(ctx context.Context, afterID int64) (*models.Market, error) {
	sql := `SELECT` + marketColumns + `
		FROM market
		WHERE premises_id IS NULL AND id > $1
		ORDER BY id
		LIMIT 1`

	m, err := scanMarket(r.db.QueryRow(ctx, sql, afterID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to fetch unresolved market: %w", err)
	}
	return m, nil
}

// FindRowGroupMatch returns the first market of the same source and import row group not in exclude.
func (r *Repository) FindRowGroupMatch(ctx context.Context, source models.SourceType, row int64, exclude []int64) (*models.Market, error) {
	sql := `SELECT` + marketColumns + `
		FROM market
		WHERE source = $1 AND row_group = $2 AND NOT (id = ANY($3))
		ORDER BY id
		LIMIT 1`

	m, err := scanMarket(r.db.QueryRow(ctx, sql, string(source), row, nonNil(exclude)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to fetch row group match: %w", err)
	}
	return m, nil
}

// FindCandidates returns the markets matching q in id order.
func (r *Repository) FindCandidates(ctx context.Context, q models.MarketQuery) ([]models.Market, error) {
	args := []any{nonNil(q.Exclude), q.State}
	conds := []string{"NOT (id = ANY($1))", "coalesce(state, '') = $2"}
	if q.ByCity {
		args = append(args, q.City)
		conds = append(conds, fmt.Sprintf("coalesce(city, '') = $%d", len(args)))
	}
	conds = appendPresence(conds, "address", q.Address)
	conds = appendPresence(conds, "po", q.PO)

	sql := `SELECT` + marketColumns + `
		FROM market
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY id`

	return queryMarkets(ctx, r.db, sql, args...)
}

// FindSamePremises returns the ids of every market sharing a premises with any market in ids.
func (r *Repository) FindSamePremises(ctx context.Context, ids []int64) ([]int64, error) {
	sql := `
		SELECT DISTINCT other.id
		FROM market other
		JOIN market m ON m.premises_id = other.premises_id
		WHERE m.id = ANY($1)
		ORDER BY other.id`

	rows, err := r.db.Query(ctx, sql, nonNil(ids))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute same premises query: %w", err)
	}
	same, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan same premises: %w", err)
	}
	return same, nil
}

// AssignPremises puts every market in marketIDs on premisesID, creating a new
// premises when premisesID is nil, in one transaction. It fails with
// ErrAlreadyAssigned, and changes nothing, if any market already has a premises.
func (r *Repository) AssignPremises(ctx context.Context, premisesID *int64, marketIDs []int64) (int64, error) {
	var id int64
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if premisesID != nil {
			id = *premisesID
		} else if err := tx.QueryRow(ctx, `INSERT INTO premises DEFAULT VALUES RETURNING id`).Scan(&id); err != nil {
			return fmt.Errorf("repository: failed to create premises: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE market SET premises_id = $1
			WHERE id = ANY($2) AND premises_id IS NULL`, id, nonNil(marketIDs))
		if err != nil {
			return fmt.Errorf("repository: failed to assign premises: %w", err)
		}
		if tag.RowsAffected() != int64(len(marketIDs)) {
			return ErrAlreadyAssigned
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// PremisesWithoutGeoname returns the ids of premises that have markets but no geoname.
func (r *Repository) PremisesWithoutGeoname(ctx context.Context) ([]int64, error) {
	sql := `
		SELECT p.id
		FROM premises p
		JOIN market m ON m.premises_id = p.id
		WHERE p.geoname_id IS NULL
		GROUP BY p.id
		ORDER BY p.id`

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute premises query: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan premises: %w", err)
	}
	return ids, nil
}

// MarketsOfPremises returns the markets on a premises in id order.
func (r *Repository) MarketsOfPremises(ctx context.Context, premisesID int64) ([]models.Market, error) {
	sql := `SELECT` + marketColumns + `
		FROM market
		WHERE premises_id = $1
		ORDER BY id`

	return queryMarkets(ctx, r.db, sql, premisesID)
}

// WithinTx runs fn in a transaction, committing when fn returns nil and rolling back otherwise.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx GeonameTx) error) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&pgGeonameTx{q: tx})
	})
}

// GetPremises returns a premises with its geoname and markets.
func (r *Repository) GetPremises(ctx context.Context, id int64) (*models.Premises, error) {
	p := models.Premises{ID: id}
	err := r.db.QueryRow(ctx, `SELECT geoname_id FROM premises WHERE id = $1`, id).Scan(&p.GeonameID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to fetch premises: %w", err)
	}

	if p.GeonameID != nil {
		g, err := scanGeoname(r.db.QueryRow(ctx, `SELECT`+geonameColumns+` FROM geoname WHERE id = $1`, *p.GeonameID))
		if err != nil {
			return nil, fmt.Errorf("repository: failed to fetch geoname: %w", err)
		}
		p.Geoname = g
	}

	p.Markets, err = r.MarketsOfPremises(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Stats counts outstanding work.
func (r *Repository) Stats(ctx context.Context) (models.Stats, error) {
	sql := `
		SELECT
			(SELECT count(*) FROM market),
			(SELECT count(*) FROM market WHERE premises_id IS NULL),
			(SELECT count(*) FROM premises),
			(SELECT count(*) FROM premises WHERE geoname_id IS NULL),
			(SELECT count(*) FROM geoname)`

	var s models.Stats
	err := r.db.QueryRow(ctx, sql).Scan(
		&s.Markets,
		&s.MarketsWithoutPremises,
		&s.Premises,
		&s.PremisesWithoutGeoname,
		&s.Geonames,
	)
	if err != nil {
		return s, fmt.Errorf("repository: failed to count rows: %w", err)
	}
	return s, nil
}

// ImportMarkets bulk-loads markets with COPY. Ids and premises are left to the database.
func (r *Repository) ImportMarkets(ctx context.Context, markets []models.Market) (int64, error) {
	n, err := r.db.CopyFrom(
		ctx,
		pgx.Identifier{"market"},
		[]string{"source", "source_id", "row_group", "name", "address", "po", "city", "state", "zip", "zip_ext"},
		pgx.CopyFromSlice(len(markets), func(i int) ([]any, error) {
			m := markets[i]
			var row any
			if g, ok := m.RowGroup(); ok {
				row = g
			}
			return []any{
				string(m.Source),
				nullable(m.SourceID),
				row,
				nullable(m.Name),
				nullable(m.Address),
				nullable(m.PO),
				nullable(m.City),
				nullable(m.State),
				nullable(m.Zip),
				nullable(m.ZipExt),
			}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("repository: failed to copy markets: %w", err)
	}
	return n, nil
}

const geonameColumns = `
	id,
	geoname_id,
	coalesce(admin_code1, ''),
	coalesce(admin_code2, ''),
	fuzzy::float8,
	premises_id`

type pgGeonameTx struct {
	q querier
}

func (t *pgGeonameTx) FindGeonameByExternalID(ctx context.Context, geonameID int64) (*models.Geoname, error) {
	g, err := scanGeoname(t.q.QueryRow(ctx, `SELECT`+geonameColumns+`
		FROM geoname
		WHERE geoname_id = $1
		ORDER BY id
		LIMIT 1`, geonameID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to fetch geoname: %w", err)
	}
	return g, nil
}

func (t *pgGeonameTx) CreateGeoname(ctx context.Context, g *models.Geoname) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO geoname (geoname_id, admin_code1, admin_code2, fuzzy, premises_id)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
		RETURNING id`,
		g.GeonameID, g.AdminCode1, g.AdminCode2, g.Fuzzy, g.PremisesID,
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to create geoname: %w", err)
	}
	return nil
}

func (t *pgGeonameTx) LockPremises(ctx context.Context, premisesID int64) (*models.Premises, error) {
	p := models.Premises{ID: premisesID}
	err := t.q.QueryRow(ctx, `SELECT geoname_id FROM premises WHERE id = $1 FOR UPDATE`, premisesID).Scan(&p.GeonameID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to lock premises: %w", err)
	}
	return &p, nil
}

func (t *pgGeonameTx) SetPremisesGeoname(ctx context.Context, premisesID, geonameID int64) error {
	if _, err := t.q.Exec(ctx, `UPDATE premises SET geoname_id = $2 WHERE id = $1`, premisesID, geonameID); err != nil {
		return fmt.Errorf("repository: failed to set premises geoname: %w", err)
	}
	return nil
}

func (t *pgGeonameTx) SetGeonamePremises(ctx context.Context, geonameID, premisesID int64) error {
	if _, err := t.q.Exec(ctx, `UPDATE geoname SET premises_id = $2 WHERE id = $1`, geonameID, premisesID); err != nil {
		return fmt.Errorf("repository: failed to set geoname premises: %w", err)
	}
	return nil
}

func scanMarket(row pgx.Row) (*models.Market, error) {
	var m models.Market
	var source string
	err := row.Scan(
		&m.ID,
		&source,
		&m.SourceID,
		&m.Row,
		&m.Name,
		&m.Address,
		&m.PO,
		&m.City,
		&m.State,
		&m.Zip,
		&m.ZipExt,
		&m.PremisesID,
	)
	if err != nil {
		return nil, err
	}
	m.Source = models.SourceType(source)
	return &m, nil
}

func scanGeoname(row pgx.Row) (*models.Geoname, error) {
	var g models.Geoname
	err := row.Scan(
		&g.ID,
		&g.GeonameID,
		&g.AdminCode1,
		&g.AdminCode2,
		&g.Fuzzy,
		&g.PremisesID,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func queryMarkets(ctx context.Context, q querier, sql string, args ...any) ([]models.Market, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute market query: %w", err)
	}
	defer rows.Close()

	var markets []models.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan market: %w", err)
		}
		markets = append(markets, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}

	return markets, nil
}

func appendPresence(conds []string, column string, p models.Presence) []string {
	switch p {
	case models.Present:
		return append(conds, fmt.Sprintf("coalesce(%s, '') <> ''", column))
	case models.Absent:
		return append(conds, fmt.Sprintf("coalesce(%s, '') = ''", column))
	}
	return conds
}

// nonNil keeps pgx from encoding an empty exclusion list as NULL.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

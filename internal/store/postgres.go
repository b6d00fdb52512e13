package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/safebites/safebites-api/internal/db"
	"github.com/safebites/safebites-api/internal/geo"
	"github.com/safebites/safebites-api/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const selectRecordColumns = `place_id, name, address, city, latitude, longitude, hours, types,
	price_level, rating, reviews, relevant_count, average_safety_rating,
	ai_safety_score, ai_summary, wise_bites_score, community_count,
	community_mean, dedicated_gf, score_version, last_updated`

// preparedStatements lists the hot-path queries prepared on each new
// connection.
var preparedStatements = map[string]string{
	"get_restaurant": `SELECT ` + selectRecordColumns + ` FROM restaurants WHERE place_id = $1`,
	"upsert_restaurant": `INSERT INTO restaurants (` + selectRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (place_id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			hours = EXCLUDED.hours,
			types = EXCLUDED.types,
			price_level = EXCLUDED.price_level,
			rating = EXCLUDED.rating,
			reviews = EXCLUDED.reviews,
			relevant_count = EXCLUDED.relevant_count,
			average_safety_rating = EXCLUDED.average_safety_rating,
			ai_safety_score = EXCLUDED.ai_safety_score,
			ai_summary = EXCLUDED.ai_summary,
			wise_bites_score = EXCLUDED.wise_bites_score,
			community_count = EXCLUDED.community_count,
			community_mean = EXCLUDED.community_mean,
			dedicated_gf = EXCLUDED.dedicated_gf,
			score_version = EXCLUDED.score_version,
			last_updated = EXCLUDED.last_updated`,
	"list_community_reports": `SELECT r.id, r.place_id, r.rating, r.felt_safe, r.dedicated_gf,
			r.comment, COALESCE(p.trust_tier, 'standard'), COALESCE(p.sensitivity, ''), r.created_at
		FROM community_reports r
		LEFT JOIN profiles p ON p.user_id = r.user_id
		WHERE r.place_id = $1
		ORDER BY r.created_at DESC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// newPostgresWithPool wires an existing pool; used by tests with pgxmock.
func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS restaurants (
	place_id              TEXT PRIMARY KEY,
	name                  TEXT NOT NULL DEFAULT 'Unknown',
	address               TEXT NOT NULL DEFAULT '',
	city                  TEXT NOT NULL DEFAULT '',
	latitude              DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude             DOUBLE PRECISION NOT NULL DEFAULT 0,
	hours                 JSONB,
	types                 JSONB,
	price_level           TEXT NOT NULL DEFAULT '',
	rating                DOUBLE PRECISION NOT NULL DEFAULT 0,
	reviews               JSONB,
	relevant_count        INTEGER NOT NULL DEFAULT 0,
	average_safety_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
	ai_safety_score       DOUBLE PRECISION,
	ai_summary            TEXT NOT NULL DEFAULT '',
	wise_bites_score      DOUBLE PRECISION,
	community_count       INTEGER NOT NULL DEFAULT 0,
	community_mean        DOUBLE PRECISION NOT NULL DEFAULT 0,
	dedicated_gf          BOOLEAN NOT NULL DEFAULT false,
	score_version         INTEGER NOT NULL DEFAULT 0,
	last_updated          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_restaurants_last_updated ON restaurants(last_updated);
CREATE INDEX IF NOT EXISTS idx_restaurants_coords ON restaurants(latitude, longitude);

CREATE TABLE IF NOT EXISTS profiles (
	user_id     TEXT PRIMARY KEY,
	trust_tier  TEXT NOT NULL DEFAULT 'standard',
	sensitivity TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS community_reports (
	id           TEXT PRIMARY KEY,
	place_id     TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
	felt_safe    BOOLEAN NOT NULL DEFAULT true,
	dedicated_gf BOOLEAN NOT NULL DEFAULT false,
	comment      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_community_reports_place_id ON community_reports(place_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, placeID string) (*model.RestaurantRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectRecordColumns+` FROM restaurants WHERE place_id = $1`,
		placeID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s", placeID)
	}
	return rec, nil
}

func (s *PostgresStore) GetMany(ctx context.Context, placeIDs []string) (map[string]*model.RestaurantRecord, error) {
	out := make(map[string]*model.RestaurantRecord, len(placeIDs))
	if len(placeIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectRecordColumns+` FROM restaurants WHERE place_id = ANY($1)`,
		placeIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get many")
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out[rec.PlaceID] = rec
	}
	return out, eris.Wrap(rows.Err(), "postgres: get many rows")
}

func (s *PostgresStore) Upsert(ctx context.Context, rec *model.RestaurantRecord) error {
	hoursJSON, typesJSON, reviewsJSON, err := marshalRecordJSON(rec)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, preparedStatements["upsert_restaurant"],
		rec.PlaceID, rec.Name, rec.Address, rec.City, rec.Latitude, rec.Longitude,
		hoursJSON, typesJSON, rec.PriceLevel, rec.Rating, reviewsJSON,
		rec.RelevantCount, rec.AvgSafetyRating, rec.OracleScore, rec.OracleSummary,
		rec.WiseBitesScore, rec.CommunityCount, rec.CommunityMean, rec.DedicatedGF,
		rec.ScoreVersion, rec.LastUpdated,
	)
	return eris.Wrapf(err, "postgres: upsert %s", rec.PlaceID)
}

func (s *PostgresStore) UpdateFields(ctx context.Context, placeID string, patch FieldPatch) error {
	if patch.Empty() {
		return nil
	}

	set := make([]string, 0, 6)
	args := []any{placeID}
	idx := 2

	add := func(col string, val any) {
		set = append(set, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if patch.Latitude != nil {
		add("latitude", *patch.Latitude)
	}
	if patch.Longitude != nil {
		add("longitude", *patch.Longitude)
	}
	if len(patch.Hours) > 0 {
		j, err := json.Marshal(patch.Hours)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal hours")
		}
		add("hours", j)
	}
	if len(patch.Types) > 0 {
		j, err := json.Marshal(patch.Types)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal types")
		}
		add("types", j)
	}
	if patch.PriceLevel != nil {
		add("price_level", *patch.PriceLevel)
	}
	if patch.Rating != nil {
		add("rating", *patch.Rating)
	}

	query := "UPDATE restaurants SET "
	for i, clause := range set {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += " WHERE place_id = $1"

	_, err := s.pool.Exec(ctx, query, args...)
	return eris.Wrapf(err, "postgres: update fields %s", placeID)
}

func (s *PostgresStore) QueryNearby(ctx context.Context, lat, lng, radiusMiles float64) ([]NearbyRecord, error) {
	// Coarse bounding box in SQL, exact haversine filter in Go. One degree
	// of latitude is ~69 miles.
	dLat := radiusMiles / 69.0
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	dLng := radiusMiles / (69.0 * cosLat)

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectRecordColumns+` FROM restaurants
		WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4
		AND NOT (latitude = 0 AND longitude = 0)`,
		lat-dLat, lat+dLat, lng-dLng, lng+dLng,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query nearby")
	}
	defer rows.Close()

	var out []NearbyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan nearby")
		}
		miles, ok := geo.Distance(lat, lng, rec.Latitude, rec.Longitude)
		if !ok || miles > radiusMiles {
			continue
		}
		out = append(out, NearbyRecord{Record: *rec, Miles: miles})
	}
	return out, eris.Wrap(rows.Err(), "postgres: nearby rows")
}

func (s *PostgresStore) ListCommunityReports(ctx context.Context, placeID string) ([]model.CommunityReport, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_community_reports"], placeID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list reports %s", placeID)
	}
	defer rows.Close()

	var out []model.CommunityReport
	for rows.Next() {
		var rep model.CommunityReport
		var tier string
		if err := rows.Scan(&rep.ID, &rep.PlaceID, &rep.Rating, &rep.FeltSafe,
			&rep.DedicatedGF, &rep.Comment, &tier, &rep.Sensitivity, &rep.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		rep.Tier = model.TrustTier(tier)
		if rep.Tier != model.TierPremium {
			rep.Tier = model.TierStandard
		}
		out = append(out, rep)
	}
	return out, eris.Wrap(rows.Err(), "postgres: report rows")
}

func (s *PostgresStore) AddCommunityReport(ctx context.Context, rep *model.CommunityReport) error {
	rep.ID = uuid.New().String()
	rep.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO community_reports (id, place_id, user_id, rating, felt_safe, dedicated_gf, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rep.ID, rep.PlaceID, rep.UserID, rep.Rating, rep.FeltSafe, rep.DedicatedGF, rep.Comment, rep.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: add report %s", rep.PlaceID)
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one restaurants row in selectRecordColumns order.
func scanRecord(row rowScanner) (*model.RestaurantRecord, error) {
	var rec model.RestaurantRecord
	var hoursJSON, typesJSON, reviewsJSON []byte

	err := row.Scan(
		&rec.PlaceID, &rec.Name, &rec.Address, &rec.City,
		&rec.Latitude, &rec.Longitude, &hoursJSON, &typesJSON,
		&rec.PriceLevel, &rec.Rating, &reviewsJSON,
		&rec.RelevantCount, &rec.AvgSafetyRating,
		&rec.OracleScore, &rec.OracleSummary, &rec.WiseBitesScore,
		&rec.CommunityCount, &rec.CommunityMean, &rec.DedicatedGF,
		&rec.ScoreVersion, &rec.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalRecordJSON(&rec, hoursJSON, typesJSON, reviewsJSON); err != nil {
		return nil, err
	}
	return &rec, nil
}

func marshalRecordJSON(rec *model.RestaurantRecord) (hours, types, reviews []byte, err error) {
	if hours, err = json.Marshal(rec.Hours); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal hours")
	}
	if types, err = json.Marshal(rec.Types); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal types")
	}
	if reviews, err = json.Marshal(rec.Reviews); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal reviews")
	}
	return hours, types, reviews, nil
}

func unmarshalRecordJSON(rec *model.RestaurantRecord, hours, types, reviews []byte) error {
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &rec.Hours); err != nil {
			return eris.Wrap(err, "store: unmarshal hours")
		}
	}
	if len(types) > 0 {
		if err := json.Unmarshal(types, &rec.Types); err != nil {
			return eris.Wrap(err, "store: unmarshal types")
		}
	}
	if len(reviews) > 0 {
		if err := json.Unmarshal(reviews, &rec.Reviews); err != nil {
			return eris.Wrap(err, "store: unmarshal reviews")
		}
	}
	return nil
}

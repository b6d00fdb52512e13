package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/safebites/safebites-api/internal/geo"
	"github.com/safebites/safebites-api/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for
// local development and tests; production runs on postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS restaurants (
	place_id              TEXT PRIMARY KEY,
	name                  TEXT NOT NULL DEFAULT 'Unknown',
	address               TEXT NOT NULL DEFAULT '',
	city                  TEXT NOT NULL DEFAULT '',
	latitude              REAL NOT NULL DEFAULT 0,
	longitude             REAL NOT NULL DEFAULT 0,
	hours                 TEXT,
	types                 TEXT,
	price_level           TEXT NOT NULL DEFAULT '',
	rating                REAL NOT NULL DEFAULT 0,
	reviews               TEXT,
	relevant_count        INTEGER NOT NULL DEFAULT 0,
	average_safety_rating REAL NOT NULL DEFAULT 0,
	ai_safety_score       REAL,
	ai_summary            TEXT NOT NULL DEFAULT '',
	wise_bites_score      REAL,
	community_count       INTEGER NOT NULL DEFAULT 0,
	community_mean        REAL NOT NULL DEFAULT 0,
	dedicated_gf          INTEGER NOT NULL DEFAULT 0,
	score_version         INTEGER NOT NULL DEFAULT 0,
	last_updated          DATETIME NOT NULL DEFAULT (datetime('now'))
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
	rating       REAL NOT NULL DEFAULT 0,
	felt_safe    INTEGER NOT NULL DEFAULT 1,
	dedicated_gf INTEGER NOT NULL DEFAULT 0,
	comment      TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_community_reports_place_id ON community_reports(place_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, placeID string) (*model.RestaurantRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectRecordColumns+` FROM restaurants WHERE place_id = ?`,
		placeID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s", placeID)
	}
	return rec, nil
}

func (s *SQLiteStore) GetMany(ctx context.Context, placeIDs []string) (map[string]*model.RestaurantRecord, error) {
	out := make(map[string]*model.RestaurantRecord, len(placeIDs))
	if len(placeIDs) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(placeIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(placeIDs))
	for i, id := range placeIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectRecordColumns+` FROM restaurants WHERE place_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get many")
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out[rec.PlaceID] = rec
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get many rows")
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec *model.RestaurantRecord) error {
	hoursJSON, typesJSON, reviewsJSON, err := marshalRecordJSON(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO restaurants (`+selectRecordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (place_id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			city = excluded.city,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			hours = excluded.hours,
			types = excluded.types,
			price_level = excluded.price_level,
			rating = excluded.rating,
			reviews = excluded.reviews,
			relevant_count = excluded.relevant_count,
			average_safety_rating = excluded.average_safety_rating,
			ai_safety_score = excluded.ai_safety_score,
			ai_summary = excluded.ai_summary,
			wise_bites_score = excluded.wise_bites_score,
			community_count = excluded.community_count,
			community_mean = excluded.community_mean,
			dedicated_gf = excluded.dedicated_gf,
			score_version = excluded.score_version,
			last_updated = excluded.last_updated`,
		rec.PlaceID, rec.Name, rec.Address, rec.City, rec.Latitude, rec.Longitude,
		string(hoursJSON), string(typesJSON), rec.PriceLevel, rec.Rating, string(reviewsJSON),
		rec.RelevantCount, rec.AvgSafetyRating, rec.OracleScore, rec.OracleSummary,
		rec.WiseBitesScore, rec.CommunityCount, rec.CommunityMean, rec.DedicatedGF,
		rec.ScoreVersion, rec.LastUpdated,
	)
	return eris.Wrapf(err, "sqlite: upsert %s", rec.PlaceID)
}

func (s *SQLiteStore) UpdateFields(ctx context.Context, placeID string, patch FieldPatch) error {
	if patch.Empty() {
		return nil
	}

	var set []string
	var args []any
	add := func(col string, val any) {
		set = append(set, fmt.Sprintf("%s = ?", col))
		args = append(args, val)
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
			return eris.Wrap(err, "sqlite: marshal hours")
		}
		add("hours", string(j))
	}
	if len(patch.Types) > 0 {
		j, err := json.Marshal(patch.Types)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal types")
		}
		add("types", string(j))
	}
	if patch.PriceLevel != nil {
		add("price_level", *patch.PriceLevel)
	}
	if patch.Rating != nil {
		add("rating", *patch.Rating)
	}

	args = append(args, placeID)
	_, err := s.db.ExecContext(ctx,
		"UPDATE restaurants SET "+strings.Join(set, ", ")+" WHERE place_id = ?",
		args...,
	)
	return eris.Wrapf(err, "sqlite: update fields %s", placeID)
}

func (s *SQLiteStore) QueryNearby(ctx context.Context, lat, lng, radiusMiles float64) ([]NearbyRecord, error) {
	dLat := radiusMiles / 69.0
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	dLng := radiusMiles / (69.0 * cosLat)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectRecordColumns+` FROM restaurants
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
		AND NOT (latitude = 0 AND longitude = 0)`,
		lat-dLat, lat+dLat, lng-dLng, lng+dLng,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query nearby")
	}
	defer rows.Close()

	var out []NearbyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan nearby")
		}
		miles, ok := geo.Distance(lat, lng, rec.Latitude, rec.Longitude)
		if !ok || miles > radiusMiles {
			continue
		}
		out = append(out, NearbyRecord{Record: *rec, Miles: miles})
	}
	return out, eris.Wrap(rows.Err(), "sqlite: nearby rows")
}

func (s *SQLiteStore) ListCommunityReports(ctx context.Context, placeID string) ([]model.CommunityReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.place_id, r.rating, r.felt_safe, r.dedicated_gf,
			r.comment, COALESCE(p.trust_tier, 'standard'), COALESCE(p.sensitivity, ''), r.created_at
		FROM community_reports r
		LEFT JOIN profiles p ON p.user_id = r.user_id
		WHERE r.place_id = ?
		ORDER BY r.created_at DESC`,
		placeID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list reports %s", placeID)
	}
	defer rows.Close()

	var out []model.CommunityReport
	for rows.Next() {
		var rep model.CommunityReport
		var tier string
		if err := rows.Scan(&rep.ID, &rep.PlaceID, &rep.Rating, &rep.FeltSafe,
			&rep.DedicatedGF, &rep.Comment, &tier, &rep.Sensitivity, &rep.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		rep.Tier = model.TrustTier(tier)
		if rep.Tier != model.TierPremium {
			rep.Tier = model.TierStandard
		}
		out = append(out, rep)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: report rows")
}

func (s *SQLiteStore) AddCommunityReport(ctx context.Context, rep *model.CommunityReport) error {
	rep.ID = uuid.New().String()
	rep.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO community_reports (id, place_id, user_id, rating, felt_safe, dedicated_gf, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.PlaceID, rep.UserID, rep.Rating, rep.FeltSafe, rep.DedicatedGF, rep.Comment, rep.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: add report %s", rep.PlaceID)
}

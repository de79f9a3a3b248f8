package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
)

const backendSQLite = "sqlite"

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// record is the bun model for the restaurants table.
type record struct {
	bun.BaseModel `bun:"table:restaurants,alias:r"`

	Name       string  `bun:"name,pk"`
	Cuisine    string  `bun:"cuisine,notnull"`
	Region     string  `bun:"region,notnull"`
	Rating     float64 `bun:"rating,notnull,default:0"`
	NumRatings int     `bun:"num_ratings,notnull,default:0"`
}

func toRecord(r restaurant.Restaurant) *record {
	return &record{
		Name:       r.Name,
		Cuisine:    r.Cuisine,
		Region:     r.Region,
		Rating:     r.Rating,
		NumRatings: r.NumRatings,
	}
}

func (rec *record) restaurant() restaurant.Restaurant {
	return restaurant.Restaurant{
		Name:       rec.Name,
		Cuisine:    rec.Cuisine,
		Region:     rec.Region,
		Rating:     rec.Rating,
		NumRatings: rec.NumRatings,
	}
}

// SQLiteConfig holds SQLite store configuration.
type SQLiteConfig struct {
	// Path is the database file, or MemoryPath.
	Path string

	// BusyTimeout is how long a statement waits on a locked database.
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns a configuration for the given database file.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:        path,
		BusyTimeout: 5 * time.Second,
	}
}

func (c SQLiteConfig) dsn() string {
	ms := c.BusyTimeout.Milliseconds()
	if c.Path == MemoryPath {
		return fmt.Sprintf("file::memory:?_busy_timeout=%d", ms)
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", c.Path, ms)
}

// SQLite is a Store backed by a SQLite database.
type SQLite struct {
	db *bun.DB
}

// NewSQLite opens the database and creates the restaurants table if needed.
func NewSQLite(ctx context.Context, cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	sqldb, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases alive.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.NewCreateTable().Model((*record)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create restaurants table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Get returns the record for name or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, name string) (r restaurant.Restaurant, err error) {
	defer func(start time.Time) { observe(backendSQLite, "get", start, err) }(time.Now())

	rec, err := s.get(ctx, name)
	if err != nil {
		return restaurant.Restaurant{}, err
	}
	return rec.restaurant(), nil
}

func (s *SQLite) get(ctx context.Context, name string) (*record, error) {
	rec := new(record)
	err := s.db.NewSelect().Model(rec).Where("name = ?", name).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select restaurant: %w", err)
	}
	return rec, nil
}

// Put writes r unconditionally.
func (s *SQLite) Put(ctx context.Context, r restaurant.Restaurant) (err error) {
	defer func(start time.Time) { observe(backendSQLite, "put", start, err) }(time.Now())

	_, err = s.db.NewInsert().
		Model(toRecord(r)).
		On("CONFLICT (name) DO UPDATE").
		Set("cuisine = EXCLUDED.cuisine").
		Set("region = EXCLUDED.region").
		Set("rating = EXCLUDED.rating").
		Set("num_ratings = EXCLUDED.num_ratings").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert restaurant: %w", err)
	}
	return nil
}

// UpdateRating sets rating and num_ratings where the stored count still
// equals u.ExpectedNumRatings.
func (s *SQLite) UpdateRating(ctx context.Context, name string, u RatingUpdate) (r restaurant.Restaurant, err error) {
	defer func(start time.Time) { observe(backendSQLite, "update", start, err) }(time.Now())

	res, err := s.db.NewUpdate().
		Model((*record)(nil)).
		Set("rating = ?", u.Rating).
		Set("num_ratings = ?", u.NumRatings).
		Where("name = ?", name).
		Where("num_ratings = ?", u.ExpectedNumRatings).
		Exec(ctx)
	if err != nil {
		return restaurant.Restaurant{}, fmt.Errorf("update rating: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return restaurant.Restaurant{}, fmt.Errorf("update rating: %w", err)
	}

	rec, err := s.get(ctx, name)
	if err != nil {
		return restaurant.Restaurant{}, err
	}
	if affected == 0 {
		return restaurant.Restaurant{}, ErrConflict
	}
	return rec.restaurant(), nil
}

// Delete removes the record for name or returns ErrNotFound.
func (s *SQLite) Delete(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { observe(backendSQLite, "delete", start, err) }(time.Now())

	res, err := s.db.NewDelete().Model((*record)(nil)).Where("name = ?", name).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete restaurant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete restaurant: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Scan returns every record matching f.
func (s *SQLite) Scan(ctx context.Context, f Filter) (out []restaurant.Restaurant, err error) {
	defer func(start time.Time) { observe(backendSQLite, "scan", start, err) }(time.Now())

	var recs []record
	q := s.db.NewSelect().Model(&recs)
	if f.Cuisine != "" {
		q = q.Where("cuisine = ?", f.Cuisine)
	}
	if f.Region != "" {
		q = q.Where("region = ?", f.Region)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan restaurants: %w", err)
	}

	out = make([]restaurant.Restaurant, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].restaurant())
	}
	return out, nil
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

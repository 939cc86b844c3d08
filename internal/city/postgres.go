package city

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource loads gazetteer records from the cities table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a new PostgreSQL gazetteer source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Load reads every city. Aliases are stored as a text array.
func (s *PostgresSource) Load(ctx context.Context) ([]Record, error) {
	query := `
		SELECT name, state, country, lat, lng, aliases, population
		FROM cities
		ORDER BY name, state
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r          Record
			aliases    []string
			population *int32
		)
		if err := rows.Scan(
			&r.Name,
			&r.State,
			&r.Country,
			&r.Coordinate.Lat,
			&r.Coordinate.Lng,
			&aliases,
			&population,
		); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}

		r.Name = strings.TrimSpace(r.Name)
		r.Aliases = aliases
		if population != nil {
			p := int(*population)
			r.Population = &p
		}
		if err := r.Coordinate.Validate(); err != nil {
			return nil, fmt.Errorf("city %q: %w", r.Name, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cities: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// RecordSource provides gazetteer records.
type RecordSource interface {
	Load(ctx context.Context) ([]Record, error)
}

// LoadGazetteer loads records from src and indexes them.
func LoadGazetteer(ctx context.Context, src RecordSource) (*Gazetteer, error) {
	records, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewGazetteer(records), nil
}

package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/example/donor-finder/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const donorColumns = `id, name, blood_type, city, contact, age, available, last_donation, lat, lng, distance_label, created_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an already opened handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// Migrate applies the embedded schema files in name order. Every file is idempotent.
func (p *PostgresStore) Migrate(ctx context.Context) ([]string, error) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	applied := make([]string, 0, len(names))
	for _, name := range names {
		b, err := migrations.ReadFile(name)
		if err != nil {
			return applied, err
		}
		if _, err := p.db.ExecContext(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("migration %s: %w", name, err)
		}
		applied = append(applied, strings.TrimPrefix(name, "migrations/"))
	}
	return applied, nil
}

func (p *PostgresStore) CreateDonor(ctx context.Context, d *models.Donor) error {
	prepare(d)
	_, err := p.db.ExecContext(ctx, `INSERT INTO donors(`+donorColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		d.ID, d.Name, string(d.BloodType), d.City, d.Contact, nullInt(d.Age), d.Available, d.LastDonation,
		nullFloat(d.Lat), nullFloat(d.Lng), d.DistanceLabel, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert donor: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListDonors(ctx context.Context, f models.DonorFilter) ([]models.Donor, error) {
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	query, args := buildListQuery(f)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list donors: %w", err)
	}
	return scanDonors(rows)
}

func (p *PostgresStore) GetDonors(ctx context.Context, ids []string) ([]models.Donor, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+donorColumns+` FROM donors WHERE id = ANY($1::uuid[])`, pq.Array(valid))
	if err != nil {
		return nil, fmt.Errorf("get donors: %w", err)
	}
	found, err := scanDonors(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Donor, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}
	out := make([]models.Donor, 0, len(found))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresStore) Close() error { return p.db.Close() }

// buildListQuery expects a normalized filter.
func buildListQuery(f models.DonorFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + donorColumns + ` FROM donors WHERE 1=1`)
	args := make([]any, 0, 3)
	if f.BloodType != "" {
		args = append(args, string(f.BloodType))
		fmt.Fprintf(&b, " AND blood_type = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		fmt.Fprintf(&b, " AND (city ILIKE $%d OR name ILIKE $%d)", len(args), len(args))
	}
	args = append(args, f.Limit)
	fmt.Fprintf(&b, " ORDER BY available DESC, created_at DESC, id DESC LIMIT $%d", len(args))
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func scanDonors(rows *sql.Rows) ([]models.Donor, error) {
	defer rows.Close()
	var out []models.Donor
	for rows.Next() {
		var (
			d        models.Donor
			bt       string
			age      sql.NullInt64
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&d.ID, &d.Name, &bt, &d.City, &d.Contact, &age, &d.Available, &d.LastDonation, &lat, &lng, &d.DistanceLabel, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		d.BloodType = models.BloodType(bt)
		if age.Valid {
			v := int(age.Int64)
			d.Age = &v
		}
		if lat.Valid && lng.Valid {
			d.Lat, d.Lng = &lat.Float64, &lng.Float64
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donors: %w", err)
	}
	return out, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

//go:build integration

package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/example/donor-finder/internal/models"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	store     *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("donors"),
		tcpostgres.WithUsername("donors"),
		tcpostgres.WithPassword("donors"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	store, err := NewPostgresStore(ctx, dsn)
	s.Require().NoError(err)
	s.store = store

	applied, err := s.store.Migrate(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"001_create_donors.sql"}, applied)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.store.db.ExecContext(context.Background(), "TRUNCATE donors")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	_, err := s.store.Migrate(context.Background())
	s.NoError(err)
}

func (s *PostgresStoreSuite) TestListMatchesMemoryOrdering() {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := Seed(ctx, s.store, base)
	s.Require().NoError(err)

	got, err := s.store.ListDonors(ctx, models.DonorFilter{})
	s.Require().NoError(err)
	s.Equal([]string{"Arjun Nair", "Sneha Reddy", "Priya Patel", "Rahul Verma", "Ananya Sharma", "Vikram Singh"}, names(got))

	got, err = s.store.ListDonors(ctx, models.DonorFilter{Search: "MUMBAI", BloodType: models.ONeg})
	s.Require().NoError(err)
	s.Equal([]string{"Vikram Singh"}, names(got))

	got, err = s.store.ListDonors(ctx, models.DonorFilter{Limit: 2})
	s.Require().NoError(err)
	s.Len(got, 2)
}

func (s *PostgresStoreSuite) TestNullableFieldsRoundTrip() {
	ctx := context.Background()
	d := &models.Donor{Name: "No Position", BloodType: models.BNeg, City: "Goa", Contact: models.DefaultContact,
		Available: true, LastDonation: models.DefaultLastDonation, DistanceLabel: models.DefaultDistanceLabel}
	s.Require().NoError(s.store.CreateDonor(ctx, d))

	got, err := s.store.GetDonors(ctx, []string{d.ID, "not-a-uuid"})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Nil(got[0].Age)
	s.Nil(got[0].Lat)
	s.Nil(got[0].Lng)
	s.False(got[0].HasPosition())
}

func (s *PostgresStoreSuite) TestZeroCoordinatesAreStored() {
	ctx := context.Background()
	zero := 0.0
	d := &models.Donor{Name: "Null Island", BloodType: models.APos, City: "Atlantic", Contact: models.DefaultContact,
		Available: true, LastDonation: models.DefaultLastDonation, DistanceLabel: models.DefaultDistanceLabel, Lat: &zero, Lng: &zero}
	s.Require().NoError(s.store.CreateDonor(ctx, d))

	got, err := s.store.GetDonors(ctx, []string{d.ID})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.True(got[0].HasPosition())
	s.Zero(*got[0].Lat)
}

func (s *PostgresStoreSuite) TestCheckConstraintRejectsHalfPosition() {
	lat := 19.0
	_, err := s.store.db.ExecContext(context.Background(),
		`INSERT INTO donors(id, name, blood_type, city, lat) VALUES (gen_random_uuid(), 'x', 'O+', 'y', $1)`, sql.NullFloat64{Float64: lat, Valid: true})
	s.Error(err)
}

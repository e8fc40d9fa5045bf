package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/example/donor-finder/internal/models"
)

type seedDonor struct {
	name, city, contact, lastDonation string
	bloodType                         models.BloodType
	available                         bool
	age                               int
	lat, lng                          float64
}

var seedDonors = []seedDonor{
	{"Ananya Sharma", "Mumbai", "+91 9876543210", "3 months ago", models.OPos, true, 25, 19.0760, 72.8777},
	{"Rahul Verma", "Mumbai", "+91 9123456780", "6 months ago", models.APos, true, 30, 19.0820, 72.8810},
	{"Priya Patel", "Thane", "+91 9988776655", "4 months ago", models.BPos, true, 28, 19.2183, 72.9781},
	{"Vikram Singh", "Navi Mumbai", "+91 8877665544", "2 months ago", models.ONeg, false, 35, 19.0330, 73.0297},
	{"Sneha Reddy", "Mumbai", "+91 7766554433", "5 months ago", models.ABPos, true, 24, 19.0500, 72.8900},
	{"Arjun Nair", "Pune", "+91 6655443322", "1 month ago", models.ANeg, true, 29, 18.5204, 73.8567},
}

// SeedDonors builds the demo donors around Mumbai, Thane, Navi Mumbai and Pune.
// Registration times increase in list order.
func SeedDonors(base time.Time) []models.Donor {
	out := make([]models.Donor, 0, len(seedDonors))
	for i, s := range seedDonors {
		age, lat, lng := s.age, s.lat, s.lng
		out = append(out, models.Donor{
			Name:          s.name,
			BloodType:     s.bloodType,
			City:          s.city,
			Contact:       s.contact,
			Age:           &age,
			Available:     s.available,
			LastDonation:  s.lastDonation,
			Lat:           &lat,
			Lng:           &lng,
			DistanceLabel: models.DefaultDistanceLabel,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		})
	}
	return out
}

// Seed stores the demo donors and returns them with their assigned ids.
func Seed(ctx context.Context, store DonorStore, base time.Time) ([]models.Donor, error) {
	donors := SeedDonors(base)
	for i := range donors {
		if err := store.CreateDonor(ctx, &donors[i]); err != nil {
			return donors[:i], fmt.Errorf("seed %s: %w", donors[i].Name, err)
		}
	}
	return donors, nil
}

// SeedIfEmpty seeds only a store that holds no donors yet, so restarts against a
// persistent backend do not duplicate the demo rows.
func SeedIfEmpty(ctx context.Context, store DonorStore, base time.Time) ([]models.Donor, error) {
	existing, err := store.ListDonors(ctx, models.DonorFilter{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("check existing donors: %w", err)
	}
	if len(existing) > 0 {
		return nil, nil
	}
	return Seed(ctx, store, base)
}

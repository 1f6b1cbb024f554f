package store

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Demo transaction categories with a typical monthly amount. Each seeded
// customer gets the full list, jittered slightly so histories differ.
var seedCategories = []struct {
	description string
	amount      float64
}{
	{"Rent Payment", -1200},
	{"WiFi Bill", -60},
	{"Car Insurance", -150},
	{"Health Insurance", -200},
	{"Water Bill", -30},
	{"Gas Station", -50},
	{"Groceries", -100},
	{"Dining Out", -80},
	{"Movie Night", -40},
	{"Gym Membership", -45},
}

var seedFirstNames = []string{
	"Avery", "Jordan", "Morgan", "Casey", "Riley", "Quinn", "Harper",
	"Rowan", "Emerson", "Sage", "Dana", "Jules", "Marlow", "Reese",
}

var seedLastNames = []string{
	"Collins", "Hayes", "Brennan", "Okafor", "Ishida", "Marsh", "Delgado",
	"Novak", "Whitfield", "Osei", "Lindqvist", "Ferraro", "Bauer", "Calder",
}

// Seed wipes the store and loads a deterministic demo dataset of n
// customers with ten transactions each. The first customer is fixed
// (phone 555-0100, ZIP 12345, balance 1523.47) so walkthroughs and tests
// have a known account to verify against.
func (s *SQLiteStore) Seed(ctx context.Context, n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("seed count must be at least 1")
	}

	for _, table := range []string{"transactions", "customers", "leads"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return 0, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sqlite_sequence"); err != nil {
		log.Warn().Err(err).Msg("could not reset autoincrement sequences")
	}

	rng := rand.New(rand.NewSource(42))

	first := &Customer{
		FirstName:     "Avery",
		LastName:      "Collins",
		Phone:         "555-0100",
		Email:         "avery.collins@example.com",
		ZipCode:       "12345",
		AccountNumber: "MB00000001",
		Balance:       decimal.RequireFromString("1523.47"),
	}
	if err := s.seedCustomer(ctx, first, rng); err != nil {
		return 0, err
	}

	count := 1
	for i := 1; i < n; i++ {
		c := &Customer{
			FirstName:     seedFirstNames[rng.Intn(len(seedFirstNames))],
			LastName:      seedLastNames[rng.Intn(len(seedLastNames))],
			Phone:         fmt.Sprintf("555-%04d", 101+rng.Intn(8899)),
			ZipCode:       fmt.Sprintf("%05d", 10000+rng.Intn(89999)),
			AccountNumber: fmt.Sprintf("MB%08d", i+1),
			Balance:       decimal.NewFromFloat(5000 + rng.Float64()*15000).Round(2),
		}
		c.Email = fmt.Sprintf("%s.%s%d@example.com", c.FirstName, c.LastName, i)
		if err := s.seedCustomer(ctx, c, rng); err != nil {
			return count, err
		}
		count++
	}

	log.Info().Int("customers", count).Msg("seeded demo customer data")
	return count, nil
}

func (s *SQLiteStore) seedCustomer(ctx context.Context, c *Customer, rng *rand.Rand) error {
	if err := s.insertCustomer(ctx, c); err != nil {
		return err
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	running := c.Balance
	for _, cat := range seedCategories {
		amount := decimal.NewFromFloat(cat.amount + rng.Float64()*10 - 5).Round(2)
		running = running.Add(amount)
		t := &Transaction{
			CustomerID:     c.ID,
			Date:           date,
			Description:    cat.description,
			Amount:         amount,
			RunningBalance: running,
		}
		if err := s.insertTransaction(ctx, t); err != nil {
			return err
		}
		date = date.AddDate(0, 0, -(1 + rng.Intn(5)))
	}
	return nil
}

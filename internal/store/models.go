package store

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID            int64           `json:"id"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email"`
	ZipCode       string          `json:"zip_code"`
	AccountNumber string          `json:"-"` // Never expose in JSON responses
	Balance       decimal.Decimal `json:"balance"`
}

type Transaction struct {
	ID             int64           `json:"id"`
	CustomerID     int64           `json:"customer_id"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// Lead is a prospective customer's captured contact information.
type Lead struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

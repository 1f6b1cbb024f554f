package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a lookup matches no row. The controller
// translates it into a conversational re-prompt; it is never fatal.
var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS customers (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        first_name TEXT NOT NULL,
        last_name TEXT NOT NULL,
        phone TEXT NOT NULL,
        email TEXT NOT NULL,
        zip_code TEXT NOT NULL,
        account_number TEXT NOT NULL,
        balance TEXT NOT NULL -- decimal string, exact currency
    );

    CREATE INDEX IF NOT EXISTS idx_customers_phone_zip ON customers (phone, zip_code);

    CREATE TABLE IF NOT EXISTS transactions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        customer_id INTEGER NOT NULL,
        date DATETIME NOT NULL,
        description TEXT NOT NULL,
        amount TEXT NOT NULL,
        running_balance TEXT NOT NULL,
        FOREIGN KEY (customer_id) REFERENCES customers (id)
    );

    CREATE INDEX IF NOT EXISTS idx_transactions_customer_date ON transactions (customer_id, date);

    CREATE TABLE IF NOT EXISTS leads (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        phone TEXT NOT NULL,
        email TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// LookupCustomer finds a customer by exact phone and ZIP match. When the
// pair matches more than one row (a seed-data anomaly) the lowest id wins,
// so repeated lookups always bind the same profile.
func (s *SQLiteStore) LookupCustomer(ctx context.Context, phone, zip string) (*Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, phone, email, zip_code, account_number, balance
         FROM customers WHERE phone = ? AND zip_code = ?
         ORDER BY id ASC LIMIT 1`, phone, zip)
	return scanCustomer(row)
}

// GetCustomer fetches a customer by identifier.
func (s *SQLiteStore) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, phone, email, zip_code, account_number, balance
         FROM customers WHERE id = ?`, customerID)
	return scanCustomer(row)
}

func scanCustomer(row *sql.Row) (*Customer, error) {
	var c Customer
	var balance string
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.ZipCode, &c.AccountNumber, &balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}
	c.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balance, err)
	}
	return &c, nil
}

// GetBalance returns the customer's current balance.
func (s *SQLiteStore) GetBalance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	var balance string
	err := s.db.QueryRowContext(ctx, "SELECT balance FROM customers WHERE id = ?", customerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to query balance: %w", err)
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q: %w", balance, err)
	}
	return d, nil
}

// GetRecentTransactions returns up to limit transactions for the customer,
// newest first. A customer with no history gets an empty slice, not an error.
func (s *SQLiteStore) GetRecentTransactions(ctx context.Context, customerID int64, limit int) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, date, description, amount, running_balance
         FROM transactions WHERE customer_id = ?
         ORDER BY date DESC, id DESC LIMIT ?`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txns := []Transaction{}
	for rows.Next() {
		var t Transaction
		var amount, running string
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.Date, &t.Description, &amount, &running); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
		}
		if t.RunningBalance, err = decimal.NewFromString(running); err != nil {
			return nil, fmt.Errorf("failed to parse running balance %q: %w", running, err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// CreateLead persists a captured lead.
func (s *SQLiteStore) CreateLead(ctx context.Context, lead *Lead) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO leads (name, phone, email) VALUES (?, ?, ?)",
		lead.Name, lead.Phone, lead.Email)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	lead.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) insertCustomer(ctx context.Context, c *Customer) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (first_name, last_name, phone, email, zip_code, account_number, balance)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.FirstName, c.LastName, c.Phone, c.Email, c.ZipCode, c.AccountNumber, c.Balance.StringFixed(2))
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) insertTransaction(ctx context.Context, t *Transaction) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (customer_id, date, description, amount, running_balance)
         VALUES (?, ?, ?, ?, ?)`,
		t.CustomerID, t.Date, t.Description, t.Amount.StringFixed(2), t.RunningBalance.StringFixed(2))
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

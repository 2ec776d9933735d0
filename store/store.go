// Package store persists ETHANI users and their activity reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Points awarded per activity.
const (
	SupplyReportPoints     = 10
	WasteProcessedPoints   = 20
	DeliveryCompletePoints = 15
)

// EnergyCreditsPerKg is the conversion rate for processed waste.
const EnergyCreditsPerKg = 0.5

var (
	// ErrPhoneExists is returned when registering an already-known phone.
	ErrPhoneExists = errors.New("phone number already registered")
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
)

// Roles accepted at registration.
var Roles = []string{
	"farmer",
	"livestock_farmer",
	"distributor",
	"buyer",
	"investor",
	"circular_economy",
	"learner",
}

// DeliveryStatuses lists the valid delivery lifecycle states.
var DeliveryStatuses = []string{"pending", "in_transit", "completed"}

// User is a registered participant. Phone is the unique identifier.
type User struct {
	ID         int64  `json:"id"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name"`
	NationalID string `json:"national_id,omitempty"`
	Location   string `json:"location"`
	Role       string `json:"role"`
	CreatedAt  string `json:"created_at"`
	Points     int    `json:"points"`
	IsActive   bool   `json:"is_active"`
}

// SupplyReport is a farmer's report of available supply in a region.
type SupplyReport struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	Region       string `json:"region"`
	FoodCategory string `json:"food_category"`
	SupplyUnits  int    `json:"supply_units"`
	Timestamp    string `json:"timestamp"`
	FarmerName   string `json:"farmer_name,omitempty"`
}

// WasteRecord tracks processed waste and the energy credits it earned.
type WasteRecord struct {
	ID               int64   `json:"id"`
	UserID           int64   `json:"user_id"`
	WasteType        string  `json:"waste_type"`
	QuantityKg       float64 `json:"quantity_kg"`
	ProcessingMethod string  `json:"processing_method"`
	EnergyCredits    float64 `json:"energy_credits"`
	Timestamp        string  `json:"timestamp"`
}

// Delivery is a distributor's transport order.
type Delivery struct {
	ID              int64   `json:"id"`
	DistributorID   int64   `json:"distributor_id"`
	Origin          string  `json:"origin_location"`
	Destination     string  `json:"destination_location"`
	FoodCategory    string  `json:"food_category"`
	Quantity        int     `json:"quantity"`
	Status          string  `json:"status"`
	CompletedAt     *string `json:"completed_at"`
	Timestamp       string  `json:"timestamp"`
	DistributorName string  `json:"distributor_name,omitempty"`
}

// RegionalMetrics aggregates recent supply activity for a region.
type RegionalMetrics struct {
	Region             string         `json:"region"`
	FarmerCount        int            `json:"farmer_count"`
	SuppliesByCategory map[string]int `json:"supplies_by_category"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phone TEXT UNIQUE NOT NULL,
		email TEXT,
		name TEXT NOT NULL,
		national_id TEXT,
		location TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		points INTEGER DEFAULT 0,
		is_active BOOLEAN DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS supply_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		region TEXT NOT NULL,
		food_category TEXT NOT NULL,
		supply_units INTEGER NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS waste_tracking (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		waste_type TEXT NOT NULL,
		quantity_kg REAL NOT NULL,
		processing_method TEXT,
		energy_credits REAL DEFAULT 0,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS deliveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		distributor_id INTEGER NOT NULL,
		origin_location TEXT NOT NULL,
		destination_location TEXT NOT NULL,
		food_category TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		status TEXT DEFAULT 'pending',
		completed_at TIMESTAMP,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (distributor_id) REFERENCES users(id)
	)`,
}

// Open opens (and if necessary initializes) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RegisterUser inserts a new user and returns the stored record.
// A duplicate phone number yields ErrPhoneExists.
func (s *Store) RegisterUser(ctx context.Context, phone, name, email, nationalID, location, role string) (*User, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (phone, name, email, national_id, location, role)
		VALUES (?, ?, ?, ?, ?, ?)`,
		phone, name, nullable(email), nullable(nationalID), location, role)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrPhoneExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByPhone returns the active user with the given phone number.
func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		userColumns+` FROM users WHERE phone = ? AND is_active = 1`, phone)
	return scanUser(row)
}

// GetUserByID returns the active user with the given id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		userColumns+` FROM users WHERE id = ? AND is_active = 1`, id)
	return scanUser(row)
}

// UsersByRole lists active users with the given role.
func (s *Store) UsersByRole(ctx context.Context, role string) ([]User, error) {
	return s.queryUsers(ctx, userColumns+` FROM users WHERE role = ? AND is_active = 1`, role)
}

// UsersByLocation lists active users in the given location.
func (s *Store) UsersByLocation(ctx context.Context, location string) ([]User, error) {
	return s.queryUsers(ctx, userColumns+` FROM users WHERE location = ? AND is_active = 1`, location)
}

// AddPoints awards points to a user.
func (s *Store) AddPoints(ctx context.Context, userID int64, points int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET points = points + ? WHERE id = ?`, points, userID)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return nil
}

// RecordSupply stores a farmer's supply report and awards reporting points.
func (s *Store) RecordSupply(ctx context.Context, userID int64, region, foodCategory string, supplyUnits int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO supply_reports (user_id, region, food_category, supply_units)
		VALUES (?, ?, ?, ?)`,
		userID, region, foodCategory, supplyUnits)
	if err != nil {
		return fmt.Errorf("record supply: %w", err)
	}
	return s.AddPoints(ctx, userID, SupplyReportPoints)
}

// SupplyByRegion lists all supply reports for a region, newest first,
// annotated with the reporting farmer's name.
func (s *Store) SupplyByRegion(ctx context.Context, region string) ([]SupplyReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sr.id, sr.user_id, sr.region, sr.food_category, sr.supply_units, sr.timestamp, u.name
		FROM supply_reports sr
		JOIN users u ON sr.user_id = u.id
		WHERE sr.region = ?
		ORDER BY sr.timestamp DESC, sr.id DESC`, region)
	if err != nil {
		return nil, fmt.Errorf("supply by region: %w", err)
	}
	defer rows.Close()

	reports := make([]SupplyReport, 0)
	for rows.Next() {
		var r SupplyReport
		if err := rows.Scan(&r.ID, &r.UserID, &r.Region, &r.FoodCategory, &r.SupplyUnits, &r.Timestamp, &r.FarmerName); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// RecordWaste stores a waste processing report, computes energy credits and
// awards processing points. Returns the credits earned.
func (s *Store) RecordWaste(ctx context.Context, userID int64, wasteType string, quantityKg float64, processingMethod string) (float64, error) {
	credits := quantityKg * EnergyCreditsPerKg
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO waste_tracking (user_id, waste_type, quantity_kg, processing_method, energy_credits)
		VALUES (?, ?, ?, ?, ?)`,
		userID, wasteType, quantityKg, processingMethod, credits)
	if err != nil {
		return 0, fmt.Errorf("record waste: %w", err)
	}
	if err := s.AddPoints(ctx, userID, WasteProcessedPoints); err != nil {
		return 0, err
	}
	return credits, nil
}

// WasteByUser lists a user's waste records, newest first.
func (s *Store) WasteByUser(ctx context.Context, userID int64) ([]WasteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, waste_type, quantity_kg, processing_method, energy_credits, timestamp
		FROM waste_tracking WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("waste by user: %w", err)
	}
	defer rows.Close()

	records := make([]WasteRecord, 0)
	for rows.Next() {
		var r WasteRecord
		var method sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.WasteType, &r.QuantityKg, &method, &r.EnergyCredits, &r.Timestamp); err != nil {
			return nil, err
		}
		r.ProcessingMethod = method.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// CreateDelivery stores a new pending delivery order and returns its id.
func (s *Store) CreateDelivery(ctx context.Context, distributorID int64, origin, destination, foodCategory string, quantity int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (distributor_id, origin_location, destination_location, food_category, quantity)
		VALUES (?, ?, ?, ?, ?)`,
		distributorID, origin, destination, foodCategory, quantity)
	if err != nil {
		return 0, fmt.Errorf("create delivery: %w", err)
	}
	return res.LastInsertId()
}

// CompleteDelivery marks a delivery completed and awards the distributor.
func (s *Store) CompleteDelivery(ctx context.Context, deliveryID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE deliveries SET status = 'completed', completed_at = CURRENT_TIMESTAMP
		WHERE id = ?`, deliveryID)
	if err != nil {
		return fmt.Errorf("complete delivery: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	var distributorID int64
	err = s.db.QueryRowContext(ctx,
		`SELECT distributor_id FROM deliveries WHERE id = ?`, deliveryID).Scan(&distributorID)
	if err != nil {
		return fmt.Errorf("lookup distributor: %w", err)
	}
	return s.AddPoints(ctx, distributorID, DeliveryCompletePoints)
}

// DeliveriesByStatus lists deliveries in a lifecycle state, newest first,
// annotated with the distributor's name.
func (s *Store) DeliveriesByStatus(ctx context.Context, status string) ([]Delivery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.distributor_id, d.origin_location, d.destination_location,
		       d.food_category, d.quantity, d.status, d.completed_at, d.timestamp, u.name
		FROM deliveries d
		JOIN users u ON d.distributor_id = u.id
		WHERE d.status = ?
		ORDER BY d.timestamp DESC, d.id DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("deliveries by status: %w", err)
	}
	defer rows.Close()

	deliveries := make([]Delivery, 0)
	for rows.Next() {
		var d Delivery
		var completedAt sql.NullString
		if err := rows.Scan(&d.ID, &d.DistributorID, &d.Origin, &d.Destination,
			&d.FoodCategory, &d.Quantity, &d.Status, &completedAt, &d.Timestamp, &d.DistributorName); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			d.CompletedAt = &completedAt.String
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// RegionalMetrics aggregates distinct reporting farmers and the last seven
// days of supply per food category for a region.
func (s *Store) RegionalMetrics(ctx context.Context, region string) (*RegionalMetrics, error) {
	var farmerCount int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT user_id) FROM supply_reports WHERE region = ?`,
		region).Scan(&farmerCount)
	if err != nil {
		return nil, fmt.Errorf("farmer count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT food_category, SUM(supply_units)
		FROM supply_reports
		WHERE region = ? AND timestamp > datetime('now', '-7 days')
		GROUP BY food_category`, region)
	if err != nil {
		return nil, fmt.Errorf("supply sums: %w", err)
	}
	defer rows.Close()

	supplies := make(map[string]int)
	for rows.Next() {
		var category string
		var total int
		if err := rows.Scan(&category, &total); err != nil {
			return nil, err
		}
		supplies[category] = total
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &RegionalMetrics{
		Region:             region,
		FarmerCount:        farmerCount,
		SuppliesByCategory: supplies,
	}, nil
}

const userColumns = `SELECT id, phone, email, name, national_id, location, role, created_at, points, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var email, nationalID sql.NullString
	err := row.Scan(&u.ID, &u.Phone, &email, &u.Name, &nationalID, &u.Location, &u.Role, &u.CreatedAt, &u.Points, &u.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Email = email.String
	u.NationalID = nationalID.String
	return &u, nil
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

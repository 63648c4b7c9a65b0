package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/roster/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// busyTimeoutMS is how long a connection waits on a locked database before
// giving up. The audit sinks write concurrently with request handlers.
const busyTimeoutMS = 5000

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Open database connection
	db, err := sqlx.Open("sqlite3", withParams(dsn))
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// Every connection to an in-memory database gets its own empty schema,
	// so the pool must never grow past one.
	if isMemoryDSN(dsn) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// withParams appends the driver options every connection needs.
func withParams(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=" + strconv.Itoa(busyTimeoutMS)
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Employee Operations
// =============================================================================

// employeeRow represents an employee row in the database.
type employeeRow struct {
	ID         int64  `db:"id"`
	Name       string `db:"name"`
	Age        int    `db:"age"`
	Position   string `db:"position"`
	Department string `db:"department"`
}

const employeeColumns = `id, name, age, position, department`

func (s *SQLiteStore) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees ORDER BY id`

	var rows []employeeRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, NewStoreError("ListEmployees", "employee", "", err.Error(), err)
	}

	employees := make([]domain.Employee, 0, len(rows))
	for _, row := range rows {
		employees = append(employees, rowToEmployee(row))
	}

	return employees, nil
}

func (s *SQLiteStore) GetEmployee(ctx context.Context, id int64) (*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = ?`

	var row employeeRow
	err := s.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetEmployee", "employee", formatID(id), "employee not found", ErrNotFound)
		}
		return nil, NewStoreError("GetEmployee", "employee", formatID(id), err.Error(), err)
	}

	employee := rowToEmployee(row)
	return &employee, nil
}

// CreateEmployee inserts the employee and sets its ID to the one assigned by
// the database.
func (s *SQLiteStore) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	query := `
		INSERT INTO employees (name, age, position, department)
		VALUES (:name, :age, :position, :department)`

	result, err := s.db.NamedExecContext(ctx, query, employeeToRow(employee))
	if err != nil {
		return NewStoreError("CreateEmployee", "employee", "", err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("CreateEmployee", "employee", "", "failed to read assigned id", err)
	}
	employee.ID = id

	return nil
}

func (s *SQLiteStore) UpdateEmployee(ctx context.Context, employee *domain.Employee) error {
	query := `
		UPDATE employees SET
			name = :name,
			age = :age,
			position = :position,
			department = :department
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, query, employeeToRow(employee))
	if err != nil {
		return NewStoreError("UpdateEmployee", "employee", formatID(employee.ID), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateEmployee", "employee", formatID(employee.ID), "employee not found", ErrNotFound)
	}

	return nil
}

func (s *SQLiteStore) DeleteEmployee(ctx context.Context, id int64) error {
	query := `DELETE FROM employees WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return NewStoreError("DeleteEmployee", "employee", formatID(id), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteEmployee", "employee", formatID(id), "employee not found", ErrNotFound)
	}

	return nil
}

// =============================================================================
// Audit Trail Operations
// =============================================================================

// activityRow represents a row of the logs table.
type activityRow struct {
	ID          int64  `db:"id"`
	Action      string `db:"action"`
	Description string `db:"description"`
	CreatedAt   string `db:"created_at"`
}

// trackingRow represents a row of the api_tracking table.
type trackingRow struct {
	ID         int64  `db:"id"`
	Endpoint   string `db:"api_endpoint"`
	Request    string `db:"request"`
	Response   string `db:"response"`
	StatusCode int    `db:"status_code"`
	RequestID  string `db:"request_id"`
	CreatedAt  string `db:"created_at"`
}

func (s *SQLiteStore) AppendActivity(ctx context.Context, entry *domain.ActivityEntry) error {
	query := `INSERT INTO logs (action, description) VALUES (?, ?)`

	result, err := s.db.ExecContext(ctx, query, entry.Action, entry.Description)
	if err != nil {
		return NewStoreError("AppendActivity", "log", "", err.Error(), err)
	}
	entry.ID, _ = result.LastInsertId()

	return nil
}

func (s *SQLiteStore) AppendTracking(ctx context.Context, entry *domain.TrackingEntry) error {
	query := `
		INSERT INTO api_tracking (api_endpoint, request, response, status_code, request_id)
		VALUES (:api_endpoint, :request, :response, :status_code, :request_id)`

	row := map[string]any{
		"api_endpoint": entry.Endpoint,
		"request":      entry.Request,
		"response":     entry.Response,
		"status_code":  entry.StatusCode,
		"request_id":   entry.RequestID,
	}

	result, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("AppendTracking", "api_tracking", "", err.Error(), err)
	}
	entry.ID, _ = result.LastInsertId()

	return nil
}

// RecentActivity returns the newest activity entries, newest first.
func (s *SQLiteStore) RecentActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	query := `SELECT id, action, description, created_at FROM logs ORDER BY id DESC LIMIT ?`

	var rows []activityRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, NewStoreError("RecentActivity", "log", "", err.Error(), err)
	}

	entries := make([]domain.ActivityEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.ActivityEntry{
			ID:          row.ID,
			Action:      row.Action,
			Description: row.Description,
			CreatedAt:   parseTimestamp(row.CreatedAt),
		})
	}

	return entries, nil
}

// RecentTracking returns the newest tracking entries, newest first.
func (s *SQLiteStore) RecentTracking(ctx context.Context, limit int) ([]domain.TrackingEntry, error) {
	query := `
		SELECT id, api_endpoint, request, response, status_code, request_id, created_at
		FROM api_tracking ORDER BY id DESC LIMIT ?`

	var rows []trackingRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, NewStoreError("RecentTracking", "api_tracking", "", err.Error(), err)
	}

	entries := make([]domain.TrackingEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.TrackingEntry{
			ID:         row.ID,
			Endpoint:   row.Endpoint,
			Request:    row.Request,
			Response:   row.Response,
			StatusCode: row.StatusCode,
			RequestID:  row.RequestID,
			CreatedAt:  parseTimestamp(row.CreatedAt),
		})
	}

	return entries, nil
}

// CountActivity returns the number of rows in the logs table.
func (s *SQLiteStore) CountActivity(ctx context.Context) (int, error) {
	return s.count(ctx, "CountActivity", "logs")
}

// CountTracking returns the number of rows in the api_tracking table.
func (s *SQLiteStore) CountTracking(ctx context.Context) (int, error) {
	return s.count(ctx, "CountTracking", "api_tracking")
}

// count is only ever called with the constant table names above.
func (s *SQLiteStore) count(ctx context.Context, op, table string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table); err != nil {
		return 0, NewStoreError(op, table, "", err.Error(), err)
	}
	return n, nil
}

// =============================================================================
// Row Conversion Functions
// =============================================================================

func rowToEmployee(row employeeRow) domain.Employee {
	return domain.Employee{
		ID:         row.ID,
		Name:       row.Name,
		Age:        row.Age,
		Position:   row.Position,
		Department: row.Department,
	}
}

func employeeToRow(e *domain.Employee) employeeRow {
	return employeeRow{
		ID:         e.ID,
		Name:       e.Name,
		Age:        e.Age,
		Position:   e.Position,
		Department: e.Department,
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// timestampLayouts covers CURRENT_TIMESTAMP text and the driver's own
// formatting of DATETIME columns.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

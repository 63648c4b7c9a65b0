package store

import (
	"context"

	"github.com/artpar/roster/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for Roster entities.
//
// Every mutation is a single statement. The audit tables are append-only and
// are written independently of the employee table.
type Store interface {
	// Employee operations
	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	GetEmployee(ctx context.Context, id int64) (*domain.Employee, error)
	CreateEmployee(ctx context.Context, employee *domain.Employee) error
	UpdateEmployee(ctx context.Context, employee *domain.Employee) error
	DeleteEmployee(ctx context.Context, id int64) error

	// Audit trail (append-only)
	AppendActivity(ctx context.Context, entry *domain.ActivityEntry) error
	AppendTracking(ctx context.Context, entry *domain.TrackingEntry) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// AuditReader reads the audit trails back for operators. The request path
// never reads them.
type AuditReader interface {
	RecentActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error)
	RecentTracking(ctx context.Context, limit int) ([]domain.TrackingEntry, error)
	CountActivity(ctx context.Context) (int, error)
	CountTracking(ctx context.Context) (int, error)
}

var (
	_ Store       = (*SQLiteStore)(nil)
	_ AuditReader = (*SQLiteStore)(nil)
)

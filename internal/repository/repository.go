package repository

import (
	"context"
	"errors"
	"time"

	"ecordtopo/internal/domain"
	"ecordtopo/internal/srconfig"
)

// ErrNotFound is returned when a ledger record does not exist.
var ErrNotFound = errors.New("not found")

// DomainRecord describes one deployed CO/EE pair.
type DomainRecord struct {
	ID          int
	Spines      int
	Leaves      int
	Hosts       int
	Controllers []string
	VLANs       []int
	State       domain.State
	UpdatedAt   time.Time
}

// Transition is one recorded lifecycle step.
type Transition struct {
	DomainID int
	From     domain.State
	To       domain.State
	At       time.Time
}

// DocumentRecord is a stored segment-routing document.
type DocumentRecord struct {
	DomainID   int
	Document   *srconfig.Document
	ExportedAt time.Time
}

// Ledger defines the interface for deployment history access
type Ledger interface {
	// Write operations
	UpsertDomain(ctx context.Context, rec DomainRecord) error
	RecordTransition(ctx context.Context, t Transition) error
	SaveDocument(ctx context.Context, domainID int, doc *srconfig.Document, at time.Time) error

	// Read operations
	GetDomain(ctx context.Context, id int) (*DomainRecord, error)
	ListDomains(ctx context.Context) ([]DomainRecord, error)
	Transitions(ctx context.Context, domainID int) ([]Transition, error)
	LatestDocument(ctx context.Context, domainID int) (*DocumentRecord, error)

	// Close releases resources
	Close() error
}

package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ecordtopo/internal/codec"
	"ecordtopo/internal/domain"
	"ecordtopo/internal/repository"
	"ecordtopo/internal/srconfig"
)

// Ledger implements repository.Ledger using SQLite
type Ledger struct {
	db *sql.DB
}

var _ repository.Ledger = (*Ledger)(nil)

// New opens (or creates) the ledger at dbPath. ":memory:" gives a private
// in-memory ledger.
func New(dbPath string) (*Ledger, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" a single database and serializes writers
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return l, nil
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS domains (
		id INTEGER PRIMARY KEY,
		spines INTEGER NOT NULL,
		leaves INTEGER NOT NULL,
		hosts INTEGER NOT NULL,
		controllers JSON NOT NULL,
		vlans JSON NOT NULL,
		state TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain_id INTEGER NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		at DATETIME NOT NULL,
		FOREIGN KEY (domain_id) REFERENCES domains(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain_id INTEGER NOT NULL,
		data JSON NOT NULL,
		exported_at DATETIME NOT NULL,
		FOREIGN KEY (domain_id) REFERENCES domains(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_transitions_domain ON transitions(domain_id);
	CREATE INDEX IF NOT EXISTS idx_documents_domain ON documents(domain_id);
	`

	_, err := l.db.Exec(schema)
	return err
}

// UpsertDomain inserts or replaces a domain record
func (l *Ledger) UpsertDomain(ctx context.Context, rec repository.DomainRecord) error {
	controllers, err := marshalJSONField(rec.Controllers)
	if err != nil {
		return err
	}
	vlans, err := marshalJSONField(rec.VLANs)
	if err != nil {
		return err
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO domains (id, spines, leaves, hosts, controllers, vlans, state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			spines = excluded.spines,
			leaves = excluded.leaves,
			hosts = excluded.hosts,
			controllers = excluded.controllers,
			vlans = excluded.vlans,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, rec.ID, rec.Spines, rec.Leaves, rec.Hosts, controllers, vlans, string(rec.State), updated)
	if err != nil {
		return fmt.Errorf("failed to upsert domain %d: %w", rec.ID, err)
	}
	return nil
}

// RecordTransition appends a lifecycle step and updates the domain state
func (l *Ledger) RecordTransition(ctx context.Context, t repository.Transition) error {
	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE domains SET state = ?, updated_at = ? WHERE id = ?`,
		string(t.To), at, t.DomainID)
	if err != nil {
		return fmt.Errorf("failed to update domain state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("domain %d: %w", t.DomainID, repository.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transitions (domain_id, from_state, to_state, at) VALUES (?, ?, ?, ?)
	`, t.DomainID, string(t.From), string(t.To), at); err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}

	return tx.Commit()
}

// SaveDocument stores an exported document
func (l *Ledger) SaveDocument(ctx context.Context, domainID int, doc *srconfig.Document, at time.Time) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("document for domain %d: %w", domainID, err)
	}
	var buf bytes.Buffer
	if err := codec.NewJSONCodec().Export(doc, &buf); err != nil {
		return err
	}
	data := buf.String()
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO documents (domain_id, data, exported_at) VALUES (?, ?, ?)
	`, domainID, data, at); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// GetDomain loads one domain record
func (l *Ledger) GetDomain(ctx context.Context, id int) (*repository.DomainRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, spines, leaves, hosts, controllers, vlans, state, updated_at
		FROM domains WHERE id = ?
	`, id)
	rec, err := scanDomain(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("domain %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListDomains returns every domain ordered by id
func (l *Ledger) ListDomains(ctx context.Context) ([]repository.DomainRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, spines, leaves, hosts, controllers, vlans, state, updated_at
		FROM domains ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query domains: %w", err)
	}
	defer rows.Close()

	var out []repository.DomainRecord
	for rows.Next() {
		rec, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating domains: %w", err)
	}
	return out, nil
}

// Transitions returns the lifecycle history of a domain, oldest first
func (l *Ledger) Transitions(ctx context.Context, domainID int) ([]repository.Transition, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT domain_id, from_state, to_state, at
		FROM transitions WHERE domain_id = ? ORDER BY id
	`, domainID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []repository.Transition
	for rows.Next() {
		var (
			t        repository.Transition
			from, to string
		)
		if err := rows.Scan(&t.DomainID, &from, &to, &t.At); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.From, t.To = domain.State(from), domain.State(to)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}
	return out, nil
}

// LatestDocument returns the most recently stored document of a domain
func (l *Ledger) LatestDocument(ctx context.Context, domainID int) (*repository.DocumentRecord, error) {
	var (
		data string
		at   time.Time
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT data, exported_at FROM documents
		WHERE domain_id = ? ORDER BY id DESC LIMIT 1
	`, domainID).Scan(&data, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document for domain %d: %w", domainID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	doc, err := codec.NewJSONCodec().Parse(strings.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("stored document for domain %d: %w", domainID, err)
	}
	return &repository.DocumentRecord{DomainID: domainID, Document: doc, ExportedAt: at}, nil
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}

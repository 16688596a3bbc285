package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ecordtopo/internal/domain"
	"ecordtopo/internal/repository"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDomain reads one domains row
func scanDomain(s rowScanner) (*repository.DomainRecord, error) {
	var (
		rec                repository.DomainRecord
		controllers, vlans sql.NullString
		state              string
		updated            sql.NullTime
	)
	if err := s.Scan(&rec.ID, &rec.Spines, &rec.Leaves, &rec.Hosts, &controllers, &vlans, &state, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan domain: %w", err)
	}
	if err := unmarshalJSONField(controllers, &rec.Controllers); err != nil {
		return nil, err
	}
	if err := unmarshalJSONField(vlans, &rec.VLANs); err != nil {
		return nil, err
	}
	rec.State = domain.State(state)
	rec.UpdatedAt = nullToTime(updated)
	return &rec, nil
}

// nullToTime converts sql.NullTime to time.Time (zero when NULL)
func nullToTime(nt sql.NullTime) time.Time {
	if nt.Valid {
		return nt.Time
	}
	return time.Time{}
}

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target interface{}) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON field: %w", err)
	}
	return nil
}

// marshalJSONField marshals value to a JSON string, storing nil slices as []
func marshalJSONField(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON field: %w", err)
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}

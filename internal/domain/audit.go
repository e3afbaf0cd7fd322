package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type EntityType string

const (
	EntityOrder   EntityType = "order"
	EntityProduct EntityType = "product"
	EntitySystem  EntityType = "system"
)

type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
	AuditExport AuditAction = "export"
	AuditLogin  AuditAction = "login"
	AuditLogout AuditAction = "logout"
)

// Snapshot holds the changed or relevant fields of an entity, stored as JSON.
type Snapshot map[string]any

func (s Snapshot) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Snapshot) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("snapshot: unsupported source %T", src)
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*s = m
	return nil
}

// AuditEntry is immutable once written.
type AuditEntry struct {
	ID         int64       `db:"id" json:"id"`
	EntityType EntityType  `db:"entity_type" json:"entity_type"`
	EntityID   *int64      `db:"entity_id" json:"entity_id,omitempty"`
	Action     AuditAction `db:"action" json:"action"`
	OldValues  Snapshot    `db:"old_values" json:"old_values,omitempty"`
	NewValues  Snapshot    `db:"new_values" json:"new_values,omitempty"`
	ActorID    int64       `db:"actor_id" json:"actor_id"`
	ActorEmail string      `db:"actor_email" json:"actor_email"`
	ActorRole  Role        `db:"actor_role" json:"actor_role"`
	IPAddress  string      `db:"ip_address" json:"ip_address"`
	Details    string      `db:"details" json:"details"`
	CreatedAt  time.Time   `db:"created_at" json:"timestamp"`
}

// EntityRef returns a pointer suitable for AuditEntry.EntityID.
func EntityRef(id int64) *int64 { return &id }

// Package models provides data model definitions for BarManager Pro sync.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*u = UUID(v)
	case string:
		*u = UUID(v)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// EntityType identifies a domain entity kind known to the sync engine.
type EntityType string

const (
	EntityBranch        EntityType = "branch"
	EntityCategory      EntityType = "category"
	EntitySupplier      EntityType = "supplier"
	EntityCustomer      EntityType = "customer"
	EntityProduct       EntityType = "product"
	EntityInventoryItem EntityType = "inventory_item"
	EntitySale          EntityType = "sale"
	EntityPurchase      EntityType = "purchase"
	EntityCashBox       EntityType = "cash_box"
	EntityDebt          EntityType = "debt"
	EntitySaleItem      EntityType = "sale_item"
	EntityPurchaseItem  EntityType = "purchase_item"
	EntityPayment       EntityType = "payment"
	EntityDebtPayment   EntityType = "debt_payment"
)

// Operation is the kind of mutation recorded for an entity.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Entity is a locally stored domain row. The payload is the entity's full
// JSON document; the sync engine never interprets it beyond version and
// timestamp comparison.
type Entity struct {
	EntityType EntityType      `db:"entity_type" json:"entity_type"`
	ID         UUID            `db:"id" json:"id"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	Version    int64           `db:"version" json:"version"`
	UpdatedAt  int64           `db:"updated_at" json:"updated_at"`
	IsActive   bool            `db:"is_active" json:"is_active"`
}

// TableName returns the table name for Entity.
func (Entity) TableName() string {
	return "entities"
}

// UpdatedAtTime returns UpdatedAt as time.Time.
func (e *Entity) UpdatedAtTime() time.Time {
	return time.Unix(e.UpdatedAt, 0)
}

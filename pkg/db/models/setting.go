package models

import (
	"encoding/json"
	"time"
)

// Setting stores one admin-managed configuration document per type.
// Rows are replaced wholesale on update; readers fall back to package
// defaults when a row is absent.
type Setting struct {
	Type      string          `gorm:"type:text;primaryKey" json:"type"`
	Data      json.RawMessage `gorm:"type:jsonb;column:data;not null" json:"data"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

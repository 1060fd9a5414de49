// Package model defines the regions, projects, locations and per-user scope
// state exchanged with the region backend.
package model

import (
	"encoding/json"
	"time"
)

// Entity holds the fields shared by every scope entity.
type Entity struct {
	ID        ID              `json:"id"`
	Key       string          `json:"key"`
	Name      string          `json:"name"`
	Geojson   json.RawMessage `json:"geojson,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Deleted   *time.Time      `json:"deleted,omitempty"`
	CreatedAt *time.Time      `json:"createDate,omitempty"`
	UpdatedAt *time.Time      `json:"updateDate,omitempty"`
}

// IsDeleted reports whether the entity was soft-deleted.
func (e Entity) IsDeleted() bool { return e.Deleted != nil }

// Region is a named geographic area a user can scope to.
type Region struct {
	Entity
}

// Project groups regions and locations owned by a user.
type Project struct {
	Entity
	User    *Ref  `json:"user,omitempty"`
	Regions []Ref `json:"regions,omitempty"`
}

// Location is a point or area of interest inside a region.
type Location struct {
	Entity
}

// SearchLocation is a saved location search.
type SearchLocation struct {
	Entity
	Identification json.RawMessage `json:"identification,omitempty"`
}

// User is the authenticated account that owns a UserState.
type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

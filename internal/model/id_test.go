package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want ID
		ok   bool
	}{
		{"string", "abc", "abc", true},
		{"blank string", "  ", "", false},
		{"float integral", float64(12), "12", true},
		{"int", 5, "5", true},
		{"int64", int64(9), "9", true},
		{"json number", json.Number("42"), "42", true},
		{"id", ID("x"), "x", true},
		{"nil", nil, "", false},
		{"object", map[string]any{"id": 1}, "", false},
		{"bool", true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := IDOf(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestID_UnmarshalJSON(t *testing.T) {
	var r Ref
	require.NoError(t, json.Unmarshal([]byte(`{"id": 17}`), &r))
	assert.Equal(t, ID("17"), r.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id": "r-17"}`), &r))
	assert.Equal(t, ID("r-17"), r.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id": null}`), &r))
	assert.True(t, r.ID.Empty())

	assert.Error(t, json.Unmarshal([]byte(`{"id": true}`), &r))
}

func TestAssociation_EncodeDecode(t *testing.T) {
	rec := map[string]any{
		"region":   map[string]any{"id": float64(1), "name": "X"},
		"activity": map[string]any{"isActive": true},
	}
	a := DecodeAssociation("region", rec)

	id, ok := a.EntityID()
	require.True(t, ok)
	assert.Equal(t, ID("1"), id)
	assert.NotContains(t, a.State, "region")

	enc := a.Encode("region")
	assert.Equal(t, rec, enc)

	// Encoding copies, so mutating the output leaves the association alone.
	enc["activity"].(map[string]any)["isActive"] = false
	assert.Equal(t, true, a.State["activity"].(map[string]any)["isActive"])
}

func TestAssociation_MissingEntity(t *testing.T) {
	a := DecodeAssociation("region", map[string]any{"region": "1"})
	_, ok := a.EntityID()
	assert.False(t, ok)
}

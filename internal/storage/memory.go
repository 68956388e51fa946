package storage

import (
	"context"

	"dof_filter/internal/dof"
	"dof_filter/internal/filter"
	"dof_filter/internal/geo"
)

// MemoryStore serves obstacles parsed from a DOF file held in memory.
type MemoryStore struct {
	index *filter.Index
	byID  map[string]int // OAS-number -> position in index.Records()
}

// NewMemoryStore indexes records for bounds queries and ID lookups.
func NewMemoryStore(records []dof.Record) *MemoryStore {
	ix := filter.NewIndex(records)
	byID := make(map[string]int, ix.Len())
	for i, r := range ix.Records() {
		// Later lines win, matching the replace-on-import behaviour of the SQL stores.
		byID[r.ID()] = i
	}
	return &MemoryStore{index: ix, byID: byID}
}

// ObstaclesInBounds returns the records positioned inside b, in file order.
func (m *MemoryStore) ObstaclesInBounds(_ context.Context, b geo.Bounds) ([]dof.Record, error) {
	return m.index.InBounds(b), nil
}

// GetObstacle returns the obstacle with the given OAS code and number, or
// nil if there is none.
func (m *MemoryStore) GetObstacle(_ context.Context, oasCode, number string) (*dof.Record, error) {
	i, ok := m.byID[dof.Record{OASCode: oasCode, ObstacleNumber: number}.ID()]
	if !ok {
		return nil, nil
	}
	r := m.index.Records()[i]
	return &r, nil
}

// Index exposes the spatial index for direct filtering.
func (m *MemoryStore) Index() *filter.Index {
	return m.index
}

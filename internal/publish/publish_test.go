package publish

import (
	"encoding/json"
	"testing"
	"time"

	"dof_filter/internal/dof"
	"dof_filter/internal/filter"
)

func TestNewMessage(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rep := filter.Report{
		ID:        "run-1",
		CreatedAt: created,
		Config:    filter.DefaultConfig(),
		Samples:   3,
		Matches: []filter.Match{
			{Record: dof.Record{OASCode: "06", ObstacleNumber: "000001"}},
			{Record: dof.Record{OASCode: "06", ObstacleNumber: "000042"}},
		},
	}

	msg := NewMessage(rep)
	if msg.ID != "run-1" || msg.Count != 2 || msg.Samples != 3 {
		t.Errorf("got %+v", msg)
	}
	if msg.RadiusDeg != 0.5 || msg.AltitudeDeltaFt != 500 {
		t.Errorf("config = %v, %v", msg.RadiusDeg, msg.AltitudeDeltaFt)
	}
	if len(msg.Obstacles) != 2 || msg.Obstacles[1] != "06-000042" {
		t.Errorf("Obstacles = %v", msg.Obstacles)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["created_at"] != "2024-05-01T12:00:00Z" {
		t.Errorf("created_at = %v", decoded["created_at"])
	}
}

func TestNewMessageEmpty(t *testing.T) {
	msg := NewMessage(filter.Report{ID: "run-2"})
	if msg.Count != 0 || msg.Obstacles == nil {
		t.Errorf("got %+v, want empty non-nil obstacle list", msg)
	}
}

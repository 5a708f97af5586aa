package enrich

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"amenity/internal/models"
	"amenity/pkg/geo"
)

type pipelineItem struct {
	mu      sync.Mutex
	Results map[string]any
}

func newPipelineItem() *pipelineItem {
	return &pipelineItem{Results: make(map[string]any)}
}

func stepAddValue(key string, val any) Step[pipelineItem] {
	return func(_ context.Context, item *pipelineItem) error {
		item.mu.Lock()
		defer item.mu.Unlock()
		item.Results[key] = val
		return nil
	}
}

func stepError(_ context.Context, _ *pipelineItem) error {
	return errors.New("mock step failed")
}

func TestPipeline_Process(t *testing.T) {
	tests := []struct {
		name     string
		stages   []Stage[pipelineItem]
		expected map[string]any
	}{
		{
			name:     "single step",
			stages:   []Stage[pipelineItem]{NewStage(stepAddValue("foo", "bar"))},
			expected: map[string]any{"foo": "bar"},
		},
		{
			name: "two steps in one stage",
			stages: []Stage[pipelineItem]{
				NewStage(stepAddValue("x", 1), stepAddValue("y", 2)),
			},
			expected: map[string]any{"x": 1, "y": 2},
		},
		{
			name: "later stage overwrites earlier",
			stages: []Stage[pipelineItem]{
				NewStage(stepAddValue("a", "first")),
				NewStage(stepAddValue("a", "second")),
			},
			expected: map[string]any{"a": "second"},
		},
		{
			name: "step error does not break pipeline",
			stages: []Stage[pipelineItem]{
				NewStage(stepError),
				NewStage(stepAddValue("ok", true)),
			},
			expected: map[string]any{"ok": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			item := newPipelineItem()
			NewPipeline(tt.stages...).ProcessAll(ctx, []*pipelineItem{item})

			if len(item.Results) != len(tt.expected) {
				t.Fatalf("got %+v, expected %+v", item.Results, tt.expected)
			}
			for k, v := range tt.expected {
				if item.Results[k] != v {
					t.Errorf("Results[%q] = %v, expected %v", k, item.Results[k], v)
				}
			}
		})
	}
}

func TestPipeline_CanceledContextSkipsSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	item := newPipelineItem()
	NewPipeline(NewStage(stepAddValue("ran", true))).ProcessAll(ctx, []*pipelineItem{item})

	if len(item.Results) != 0 {
		t.Fatalf("expected no steps to run, got %+v", item.Results)
	}
}

func TestRecords(t *testing.T) {
	center := geo.Coordinates{Lat: 51.5, Lon: -0.09}
	records := []*models.AmenityRecord{
		{Name: "Café  Nero", Latitude: 51.5, Longitude: -0.09},
		{Name: " ", Latitude: 51.51, Longitude: -0.09},
	}

	Records(center).ProcessAll(context.Background(), records)

	if records[0].Name != "Café  Nero" {
		t.Errorf("name = %q, want it unchanged", records[0].Name)
	}
	if records[0].DistanceMeters != 0 {
		t.Errorf("distance = %v, want 0", records[0].DistanceMeters)
	}
	if records[1].Name != " " {
		t.Errorf("name = %q, want it unchanged", records[1].Name)
	}
	if math.Abs(records[1].DistanceMeters-1112) > 5 {
		t.Errorf("distance = %v, want ~1112 m", records[1].DistanceMeters)
	}
}

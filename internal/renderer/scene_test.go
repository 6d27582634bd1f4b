package renderer

import (
	"strings"
	"testing"

	"GopherPBR/internal/gpu/soft"
)

func TestStaticSceneBucketsByMaterial(t *testing.T) {
	solid := &Material{Name: "solid"}
	glass := &Material{Name: "glass", Transparent: true}
	s := NewStaticScene()
	s.Add(DrawItem{Material: glass})
	s.Add(DrawItem{Material: solid})
	s.Add(DrawItem{Material: glass})
	i := s.Add(DrawItem{Material: solid})

	opaque, transparent := s.Collect()
	if len(opaque) != 2 || len(transparent) != 2 {
		t.Fatalf("expected 2+2 items, got %d+%d", len(opaque), len(transparent))
	}

	s.Item(i).Material = glass
	opaque, transparent = s.Collect()
	if len(opaque) != 1 || len(transparent) != 3 {
		t.Fatalf("edit not reflected: %d+%d", len(opaque), len(transparent))
	}
	if s.Len() != 4 {
		t.Errorf("expected 4 items, got %d", s.Len())
	}
}

func TestNewMeshValidates(t *testing.T) {
	dev := soft.New(soft.WithWorkers(1))
	defer dev.Destroy()

	if _, err := NewMesh(dev, "short", make([]float32, 13), nil); err == nil || !strings.Contains(err.Error(), "whole number") {
		t.Errorf("expected a stride error, got %v", err)
	}
	if _, err := NewMesh(dev, "bad index", make([]float32, 24), []uint32{0, 1, 2}); err == nil || !strings.Contains(err.Error(), "outside") {
		t.Errorf("expected an index range error, got %v", err)
	}
	m, err := NewMesh(dev, "ok", make([]float32, 36), []uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("NewMesh failed: %v", err)
	}
	defer m.Destroy()
	if m.IndexCount != 3 || m.Vertices.Desc().Size != 36*4 || m.Indices.Desc().Size != 12 {
		t.Errorf("unexpected mesh %+v", m)
	}
}

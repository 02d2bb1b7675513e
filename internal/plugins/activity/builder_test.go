package activity

import (
	"context"
	"testing"
)

func TestBuilder_AccumulatesAcrossCallbacks(t *testing.T) {
	// One hook sees the old value, a later one the new.
	b := NewBuilder("Content Updated")
	b.Property("status", "contents", "draft")
	b.PropertyChange("status", "contents", "draft", "publish")
	b.Meta("trigger", "autosave")
	b.Meta("trigger", "manual")

	in := b.Input()
	if len(in.Properties) != 1 {
		t.Fatalf("expected 1 property, got %d", len(in.Properties))
	}
	p := in.Properties[0]
	if !p.NewValueSet || p.NewValue != "publish" {
		t.Errorf("later property call must overwrite, got %+v", p)
	}
	if len(in.Metas) != 1 || in.Metas[0].Value != "manual" {
		t.Errorf("later meta call must overwrite, got %+v", in.Metas)
	}
}

func TestBuilder_SeparateBuildersDoNotLeak(t *testing.T) {
	a := NewBuilder("Content Updated").Property("title", "contents", "A")
	b := NewBuilder("Content Updated").Property("title", "contents", "B")

	if a.Input().Properties[0].Value != "A" || b.Input().Properties[0].Value != "B" {
		t.Error("builders must be independent accumulators")
	}
}

func TestBuilder_RecordFlowsThroughService(t *testing.T) {
	svc := newTestService(&mockEventRepo{}, &mockActorSource{actor: trackedEditor},
		&mockRoles{roles: []string{"editor"}}, nil)

	ev, err := NewBuilder("Settings Changed").
		Network(Network{IP: "10.0.0.9"}).
		PropertyChange("posts_per_page", "options", int64(1), int64(2)).
		Record(context.Background(), svc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}

	p, ok := ev.Properties.Get("posts_per_page")
	if !ok || p.NewValue != int64(2) {
		t.Errorf("expected accumulated change on the event, got %+v", p)
	}
	if ev.Network.IP != "10.0.0.9" {
		t.Errorf("unexpected network %+v", ev.Network)
	}
}

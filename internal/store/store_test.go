package store

import (
	"testing"

	"github.com/LukeyBoyy/MedusaGuard/internal/model"
)

func TestSetGet(t *testing.T) {
	Init()

	if _, ok := Get("missing"); ok {
		t.Fatal("expected miss for unknown id")
	}

	Set("c1", model.CampaignRecord{ID: "c1", Status: model.StatusRunning})
	rec, ok := Get("c1")
	if !ok || rec.Status != model.StatusRunning {
		t.Fatalf("got %+v, ok=%v", rec, ok)
	}
}

func TestSetStatus(t *testing.T) {
	Init()

	SetStatus("missing", model.StatusDone) // no-op

	Set("c1", model.CampaignRecord{ID: "c1", Status: model.StatusRunning})
	SetStatus("c1", model.StatusStopped)

	rec, _ := Get("c1")
	if rec.Status != model.StatusStopped {
		t.Fatalf("status = %q, want stopped", rec.Status)
	}
}

func TestAppendLine(t *testing.T) {
	Init()

	Set("c1", model.CampaignRecord{ID: "c1"})
	AppendLine("c1", "scan started")
	AppendLine("c1", "scan finished")

	rec, _ := Get("c1")
	if len(rec.Lines) != 2 || rec.Lines[1] != "scan finished" {
		t.Fatalf("lines = %v", rec.Lines)
	}
}

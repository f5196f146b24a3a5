package entity_test

import (
	"testing"

	"comfy-worker/internal/entity"
)

func TestParseJobPayload_Envelope(t *testing.T) {
	payload := []byte(`{
		"id": "req-42",
		"input": {
			"workflow": {"3": {"class_type": "KSampler"}},
			"images": [{"name": "in.png", "image": "aGVsbG8="}]
		}
	}`)

	req, err := entity.ParseJobPayload(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ID != "req-42" {
		t.Fatalf("expected envelope id, got %q", req.ID)
	}
	if len(req.Workflow) == 0 {
		t.Fatal("workflow not carried over from input")
	}
	if len(req.Images) != 1 || req.Images[0].Name != "in.png" {
		t.Fatalf("images not carried over: %+v", req.Images)
	}
}

func TestParseJobPayload_Flat(t *testing.T) {
	payload := []byte(`{"id": "req-7", "workflow": {"3": {"class_type": "KSampler"}}}`)

	req, err := entity.ParseJobPayload(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ID != "req-7" {
		t.Fatalf("expected flat id, got %q", req.ID)
	}
	if len(req.Workflow) == 0 {
		t.Fatal("workflow missing from flat payload")
	}
}

func TestParseJobPayload_NullInputFallsBackToFlat(t *testing.T) {
	payload := []byte(`{"input": null, "workflow": {"3": {}}}`)

	req, err := entity.ParseJobPayload(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Workflow) == 0 {
		t.Fatal("workflow missing")
	}
}

func TestParseJobPayload_Invalid(t *testing.T) {
	for _, payload := range []string{"", "   ", "{not json", `"just a string"`} {
		if _, err := entity.ParseJobPayload([]byte(payload)); err == nil {
			t.Fatalf("expected error for payload %q", payload)
		}
	}
}

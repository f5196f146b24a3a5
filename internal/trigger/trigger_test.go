package trigger

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"comfy-worker/internal/entity"
)

func TestRegistry_Prepare(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	t.Run("unsupported service", func(t *testing.T) {
		_, err := reg.Prepare(&entity.TriggerSpec{Service: "carrier-pigeon"})
		if err == nil {
			t.Fatal("expected error for unknown service")
		}
	})

	t.Run("postgres missing fields", func(t *testing.T) {
		_, err := reg.Prepare(&entity.TriggerSpec{Service: "postgres", Table: "jobs"})
		if err == nil {
			t.Fatal("expected error for incomplete postgres spec")
		}
	})

	t.Run("postgres missing dsn env", func(t *testing.T) {
		spec := &entity.TriggerSpec{
			Service:     "postgres",
			KeyPrefix:   "TRIGTEST_",
			Table:       "jobs",
			IDField:     "id",
			OutputField: "output",
			ID:          "row-1",
		}
		_, err := reg.Prepare(spec)
		if err == nil {
			t.Fatal("expected error without TRIGTEST_DATABASE_URL")
		}
	})

	t.Run("postgres prepared", func(t *testing.T) {
		t.Setenv("TRIGTEST_DATABASE_URL", "postgres://u:p@localhost:5432/db")
		spec := &entity.TriggerSpec{
			Service:     "postgres",
			KeyPrefix:   "TRIGTEST_",
			Table:       "jobs",
			IDField:     "id",
			OutputField: "output",
			ID:          "row-1",
		}
		trig, err := reg.Prepare(spec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if trig == nil {
			t.Fatal("expected a trigger")
		}
	})

	t.Run("webhook bad url", func(t *testing.T) {
		_, err := reg.Prepare(&entity.TriggerSpec{Service: "webhook", URL: "ftp://host/x"})
		if err == nil {
			t.Fatal("expected error for non-http url")
		}
	})
}

func TestWebhookTrigger_Fire(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	t.Run("delivers output", func(t *testing.T) {
		var body string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			body = string(raw)
		}))
		defer srv.Close()

		trig, err := reg.Prepare(&entity.TriggerSpec{Service: "webhook", URL: srv.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := trig.Fire(context.Background(), `["https://bucket/out.png"]`); err != nil {
			t.Fatalf("fire: %v", err)
		}
		if body != `["https://bucket/out.png"]` {
			t.Fatalf("unexpected webhook body: %q", body)
		}
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		trig, err := reg.Prepare(&entity.TriggerSpec{Service: "webhook", URL: srv.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := trig.Fire(context.Background(), "[]"); err == nil {
			t.Fatal("expected error for 502 response")
		}
	})
}

package httptransport_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"comfy-worker/internal/entity"
	"comfy-worker/internal/service"
	httptransport "comfy-worker/internal/transport/http"
)

type fakeRunner struct {
	calls   int
	lastReq *entity.JobRequest
	result  *entity.JobResult
}

func (r *fakeRunner) Run(ctx context.Context, req *entity.JobRequest) *entity.JobResult {
	r.calls++
	r.lastReq = req
	res := *r.result
	if req != nil && req.ID != "" {
		res.JobID = req.ID
	}
	return &res
}

type fakePinger struct {
	err error
}

func (p *fakePinger) Health(ctx context.Context) error { return p.err }

func newServer(runner *fakeRunner, pinger *fakePinger) http.Handler {
	h := httptransport.NewHandler(runner, pinger, zerolog.Nop())
	return httptransport.Routes(h, zerolog.Nop())
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) entity.JobResult {
	t.Helper()
	var res entity.JobResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return res
}

func TestRunJob_Success(t *testing.T) {
	runner := &fakeRunner{result: &entity.JobResult{
		JobID:  "job-1",
		Status: entity.StatusSuccess,
		Artifacts: []entity.Artifact{
			{Name: "out.png", ContentType: "image/png", Data: "aGVsbG8="},
		},
	}}
	srv := newServer(runner, &fakePinger{})

	body := `{"id":"job-1","input":{"workflow":{"3":{"class_type":"KSampler"}}}}`
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decodeResult(t, rec)
	if !res.Succeeded() || len(res.Artifacts) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if runner.calls != 1 {
		t.Fatalf("expected 1 runner call, got %d", runner.calls)
	}
	if runner.lastReq.ID != "job-1" {
		t.Fatalf("envelope id not carried into the request: %q", runner.lastReq.ID)
	}
}

func TestRunJob_MalformedPayload(t *testing.T) {
	runner := &fakeRunner{result: &entity.JobResult{Status: entity.StatusSuccess}}
	srv := newServer(runner, &fakePinger{})

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	res := decodeResult(t, rec)
	if res.ErrorKind != string(service.KindInvalidJobRequest) {
		t.Fatalf("expected InvalidJobRequest, got %q", res.ErrorKind)
	}
	if runner.calls != 0 {
		t.Fatal("runner called with a malformed payload")
	}
}

func TestRunJob_Busy(t *testing.T) {
	runner := &fakeRunner{result: &entity.JobResult{
		Status:       entity.StatusError,
		ErrorKind:    string(service.KindWorkerBusy),
		ErrorMessage: "a job is already in flight",
	}}
	srv := newServer(runner, &fakePinger{})

	req := httptest.NewRequest(http.MethodPost, "/run",
		strings.NewReader(`{"workflow":{"3":{"class_type":"KSampler"}}}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRunJob_PipelineUnavailable(t *testing.T) {
	runner := &fakeRunner{result: &entity.JobResult{
		Status:    entity.StatusError,
		ErrorKind: string(service.KindPipelineUnavailable),
	}}
	srv := newServer(runner, &fakePinger{})

	req := httptest.NewRequest(http.MethodPost, "/run",
		strings.NewReader(`{"workflow":{"3":{"class_type":"KSampler"}}}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Run("pipeline up", func(t *testing.T) {
		srv := newServer(&fakeRunner{result: &entity.JobResult{}}, &fakePinger{})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("pipeline down", func(t *testing.T) {
		srv := newServer(&fakeRunner{result: &entity.JobResult{}}, &fakePinger{err: errors.New("connection refused")})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}

		var body struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decoding error body: %v", err)
		}
		if body.Kind != string(service.KindPipelineUnavailable) {
			t.Fatalf("expected PipelineUnavailable kind, got %q", body.Kind)
		}
	})
}

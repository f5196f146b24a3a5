package httptransport

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"comfy-worker/internal/entity"
	"comfy-worker/internal/service"
)

// JobRunner executes one job to a terminal result; implemented by
// service.JobService.
type JobRunner interface {
	Run(ctx context.Context, req *entity.JobRequest) *entity.JobResult
}

// Pinger probes the pipeline server; implemented by pipeline.Client.
type Pinger interface {
	Health(ctx context.Context) error
}

type Handler struct {
	runner JobRunner
	pinger Pinger
	log    zerolog.Logger
}

func NewHandler(runner JobRunner, pinger Pinger, log zerolog.Logger) *Handler {
	return &Handler{runner: runner, pinger: pinger, log: log}
}

// maxPayloadBytes bounds inbound payloads; workflows with inline base64
// assets can be large but not unbounded.
const maxPayloadBytes = 256 << 20

// RunJob godoc
// @Summary Run a generation job
// @Description Executes one workflow job against the local pipeline and blocks until a terminal result. Only one job runs at a time; concurrent calls get 409.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body entity.JobRequest true "job payload (flat request or {id, input} envelope)"
// @Success 200 {object} entity.JobResult
// @Failure 400 {object} entity.JobResult
// @Failure 409 {object} entity.JobResult
// @Failure 500 {object} entity.JobResult
// @Failure 503 {object} entity.JobResult
// @Router /run [post]
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		writeResult(w, &entity.JobResult{
			Status:       entity.StatusError,
			ErrorKind:    string(service.KindInvalidJobRequest),
			ErrorMessage: "reading request body: " + err.Error(),
		})
		return
	}

	req, err := entity.ParseJobPayload(body)
	if err != nil {
		writeResult(w, &entity.JobResult{
			Status:       entity.StatusError,
			ErrorKind:    string(service.KindInvalidJobRequest),
			ErrorMessage: err.Error(),
		})
		return
	}

	res := h.runner.Run(r.Context(), req)
	writeResult(w, res)
}

// Healthz godoc
// @Summary Worker and pipeline health
// @Produce json
// @Success 200 {object} healthResp
// @Failure 503 {object} apiError
// @Router /health [get]
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.pinger.Health(ctx); err != nil {
		writeErr(w, http.StatusServiceUnavailable,
			string(service.KindPipelineUnavailable), "pipeline not ready: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, healthResp{Status: "ok"})
}

type healthResp struct {
	Status string `json:"status"`
}

// writeResult maps the result's error kind onto an HTTP status so
// callers can branch without parsing the body.
func writeResult(w http.ResponseWriter, res *entity.JobResult) {
	code := http.StatusOK
	if !res.Succeeded() {
		switch service.Kind(res.ErrorKind) {
		case service.KindInvalidJobRequest:
			code = http.StatusBadRequest
		case service.KindWorkerBusy:
			code = http.StatusConflict
		case service.KindPipelineUnavailable:
			code = http.StatusServiceUnavailable
		default:
			code = http.StatusInternalServerError
		}
	}
	writeJSON(w, code, res)
}

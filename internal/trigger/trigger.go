package trigger

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/rs/zerolog"

	"comfy-worker/internal/config"
	"comfy-worker/internal/entity"
)

// Trigger is a side effect fired once a job has completed successfully,
// carrying the serialized output (artifact URLs or base64 payloads).
type Trigger interface {
	Fire(ctx context.Context, output string) error
}

// Registry prepares triggers from job specs. Preparation validates the
// spec and its environment before the job is submitted, so a broken
// trigger fails the request instead of the finished job.
type Registry struct {
	log zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{log: log.With().Str("component", "trigger").Logger()}
}

func (r *Registry) Prepare(spec *entity.TriggerSpec) (Trigger, error) {
	switch spec.Service {
	case "postgres":
		return newPostgresTrigger(spec, r.log)
	case "webhook":
		return newWebhookTrigger(spec, r.log)
	default:
		return nil, fmt.Errorf("unsupported trigger service %q", spec.Service)
	}
}

func newPostgresTrigger(spec *entity.TriggerSpec, log zerolog.Logger) (Trigger, error) {
	if spec.Table == "" || spec.IDField == "" || spec.OutputField == "" || spec.ID == "" {
		return nil, fmt.Errorf("postgres trigger requires table, id_field, output_field and id")
	}
	envKey := spec.KeyPrefix + "DATABASE_URL"
	dsn := os.Getenv(envKey)
	if dsn == "" {
		return nil, fmt.Errorf("%s not set in environment", envKey)
	}
	log.Debug().
		Str("dsn", config.RedactDSN(dsn)).
		Str("table", spec.Table).
		Msg("postgres trigger prepared")
	return &postgresTrigger{spec: spec, dsn: dsn, log: log}, nil
}

func newWebhookTrigger(spec *entity.TriggerSpec, log zerolog.Logger) (Trigger, error) {
	u, err := url.ParseRequestURI(spec.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("webhook trigger requires an http(s) url")
	}
	return &webhookTrigger{spec: spec, log: log}, nil
}

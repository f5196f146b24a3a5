package trigger

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"comfy-worker/internal/entity"
)

// webhookTrigger POSTs the job output to a caller-provided URL.
type webhookTrigger struct {
	spec *entity.TriggerSpec
	log  zerolog.Logger
}

var webhookClient = &http.Client{Timeout: 30 * time.Second}

func (t *webhookTrigger) Fire(ctx context.Context, output string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.spec.URL, strings.NewReader(output))
	if err != nil {
		return fmt.Errorf("webhook trigger: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := webhookClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook trigger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook trigger: status %d from %s", resp.StatusCode, t.spec.URL)
	}

	t.log.Info().Str("url", t.spec.URL).Msg("webhook delivered")
	return nil
}

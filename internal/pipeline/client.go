package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to the generation pipeline's HTTP API: workflow queueing,
// history/progress, input uploads and the health endpoint. The API
// schema is owned by the pipeline; the client treats it as a black box.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "pipeline").Logger(),
	}
}

// Health probes the pipeline's root endpoint. Any 2xx means the server
// is up and accepting requests.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check: unexpected status %d", resp.StatusCode)
	}
	return nil
}

type submitRequest struct {
	Prompt json.RawMessage `json:"prompt"`
}

type submitResponse struct {
	PromptID   string                     `json:"prompt_id"`
	NodeErrors map[string]json.RawMessage `json:"node_errors"`
}

// Submit queues a workflow graph and returns the pipeline-assigned job
// handle. Exactly one synchronous call; protocol errors and per-node
// validation errors both surface as ErrSubmissionFailed.
func (c *Client) Submit(ctx context.Context, workflow json.RawMessage) (string, error) {
	body, err := json.Marshal(submitRequest{Prompt: workflow})
	if err != nil {
		return "", fmt.Errorf("%w: encode workflow: %v", ErrSubmissionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrSubmissionFailed, resp.StatusCode, truncate(raw, 512))
	}

	var sr submitResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrSubmissionFailed, err)
	}
	if len(sr.NodeErrors) > 0 {
		keys := make([]string, 0, len(sr.NodeErrors))
		for k := range sr.NodeErrors {
			keys = append(keys, k)
		}
		return "", fmt.Errorf("%w: node errors on %s", ErrSubmissionFailed, strings.Join(keys, ", "))
	}
	if sr.PromptID == "" {
		return "", fmt.Errorf("%w: response carried no prompt id", ErrSubmissionFailed)
	}

	c.log.Info().Str("prompt_id", sr.PromptID).Msg("workflow queued")
	return sr.PromptID, nil
}

// OutputFile is one file reference reported by a workflow node. Only
// entries with Type "output" are real artifacts; the rest are previews
// and temps.
type OutputFile struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// NodeOutput holds a node's raw output entries keyed by kind ("images",
// "gifs", "text", ...). Values vary per node type, so they stay raw
// until the collector filters for output files.
type NodeOutput map[string]json.RawMessage

// HistoryStatus mirrors the pipeline's per-job status object.
type HistoryStatus struct {
	StatusStr string `json:"status_str"`
	Completed bool   `json:"completed"`
}

// HistoryEntry is the recorded execution of one queued workflow.
type HistoryEntry struct {
	Status  HistoryStatus         `json:"status"`
	Outputs map[string]NodeOutput `json:"outputs"`
}

// History fetches the execution record for a job handle. ok is false
// while the pipeline has not recorded the job yet (still queued or
// running).
func (c *Client) History(ctx context.Context, promptID string) (*HistoryEntry, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+promptID, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("history: unexpected status %d", resp.StatusCode)
	}

	var entries map[string]*HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, false, fmt.Errorf("history: decode: %w", err)
	}

	entry, ok := entries[promptID]
	if !ok || entry == nil {
		return nil, false, nil
	}
	return entry, true, nil
}

// UploadInput posts one input asset to the pipeline's upload endpoint,
// overwriting any previous file with the same name so reruns stay
// deterministic.
func (c *Client) UploadInput(ctx context.Context, name string, r io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("image", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return err
	}
	if err := mw.WriteField("overwrite", "true"); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload %s: status %d: %s", name, resp.StatusCode, truncate(raw, 512))
	}

	c.log.Debug().Str("name", name).Msg("input uploaded")
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

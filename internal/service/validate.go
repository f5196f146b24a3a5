package service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"

	"comfy-worker/internal/entity"
)

// ValidateRequest checks that a job request is well formed without
// contacting the pipeline. It is a pure function of the request, so
// validating the same request twice yields the same verdict.
func ValidateRequest(req *entity.JobRequest) error {
	if req == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidJobRequest)
	}

	if len(req.Workflow) == 0 {
		return fmt.Errorf("%w: missing workflow", ErrInvalidJobRequest)
	}
	var graph map[string]json.RawMessage
	if err := json.Unmarshal(req.Workflow, &graph); err != nil {
		return fmt.Errorf("%w: workflow is not a JSON object: %v", ErrInvalidJobRequest, err)
	}
	if len(graph) == 0 {
		return fmt.Errorf("%w: workflow has no nodes", ErrInvalidJobRequest)
	}

	for i, img := range req.Images {
		if img.Name == "" {
			return fmt.Errorf("%w: images[%d] has no name", ErrInvalidJobRequest, i)
		}
		if _, err := base64.StdEncoding.DecodeString(img.Image); err != nil {
			return fmt.Errorf("%w: images[%d] (%s) is not valid base64: %v", ErrInvalidJobRequest, i, img.Name, err)
		}
	}

	for i, f := range req.FileURLs {
		if f.Name == "" {
			return fmt.Errorf("%w: file_urls[%d] has no name", ErrInvalidJobRequest, i)
		}
		u, err := url.ParseRequestURI(f.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: file_urls[%d] (%s) is not an http(s) url", ErrInvalidJobRequest, i, f.Name)
		}
	}

	if req.Output != nil {
		switch req.Output.Type {
		case entity.OutputTypeBase64:
		case entity.OutputTypeS3:
			if req.Output.Bucket == "" || req.Output.EndpointURL == "" || req.Output.KeyPrefix == "" {
				return fmt.Errorf("%w: s3 output requires bucket, endpoint_url and key_prefix", ErrInvalidJobRequest)
			}
		default:
			return fmt.Errorf("%w: unknown output type %q", ErrInvalidJobRequest, req.Output.Type)
		}
	}

	return nil
}

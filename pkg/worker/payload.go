package worker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/assetflow/pkg/asset"
)

// ErrMalformedPayload marks a message that is not JSON at all. Such a
// message is poison: it is acked and dropped without touching the
// database, because no amount of redelivery will fix it.
var ErrMalformedPayload = errors.New("malformed job payload")

// Job is one validation request from the ingress topic.
type Job struct {
	TraceID   string `json:"trace_id"`
	FileID    string `json:"file_id"`
	ListingID string `json:"listing_id"`
	UserID    string `json:"user_id"`
	FileKey   string `json:"file_key"`
	FileType  string `json:"file_type"`
}

// parseJob decodes a payload. It tolerates a double-encoded body (a
// JSON string containing the JSON object), which some producers emit.
// A body that does not decode wraps ErrMalformedPayload; a decoded body
// missing required fields is a PermanentError.
func parseJob(data []byte) (Job, error) {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return Job{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		data = []byte(inner)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var missing []string
	if job.FileID == "" {
		missing = append(missing, "file_id")
	}
	if job.ListingID == "" {
		missing = append(missing, "listing_id")
	}
	if job.UserID == "" {
		missing = append(missing, "user_id")
	}
	if job.FileKey == "" {
		missing = append(missing, "file_key")
	}
	if job.FileType == "" {
		missing = append(missing, "file_type")
	}
	if len(missing) > 0 {
		return job, asset.Permanent("payload missing required field(s): %s", strings.Join(missing, ", "))
	}

	return job, nil
}

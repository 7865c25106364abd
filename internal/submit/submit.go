// Package submit posts candidate answers to a verification endpoint and
// reports the verdict.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultTimeout bounds a single submission request.
const DefaultTimeout = 20 * time.Second

// ReasonUnparsablePayload is the verdict reason for a payload string that is
// not a JSON document, even after lenient parsing.
const ReasonUnparsablePayload = "Failed to parse payload string as JSON."

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Response is the verdict returned by the verification endpoint.
// Correct is nil when the endpoint did not say; NextURL is empty when no
// continuation task was offered.
type Response struct {
	Correct *bool  `json:"correct"`
	NextURL string `json:"next_url,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// IsCorrect reports whether the endpoint accepted the answer.
func (r Response) IsCorrect() bool { return r.Correct != nil && *r.Correct }

// HasNextURL reports whether a continuation URL was offered.
func (r Response) HasNextURL() bool { return r.NextURL != "" }

// Client submits answers over HTTP.
type Client struct {
	http *http.Client
}

// NewClient returns a client whose requests time out after timeout
// (DefaultTimeout when <= 0). A nil hc uses a fresh http.Client.
func NewClient(hc *http.Client, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if hc == nil {
		hc = &http.Client{}
	}
	c := *hc
	c.Timeout = timeout
	return &Client{http: &c}
}

// Submit posts payload as JSON to submissionURL. Transport failures, HTTP
// error statuses, non-JSON bodies and malformed payloads are reported as an
// incorrect Response with a diagnostic Reason, never as an error. The error
// return is reserved for cancellation of ctx.
func (c *Client) Submit(ctx context.Context, submissionURL string, payload json.RawMessage) (Response, error) {
	body, err := NormalizePayload(payload)
	if err != nil {
		return Failure(ReasonUnparsablePayload), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submissionURL, bytes.NewReader(body))
	if err != nil {
		return Failure(err.Error()), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return Response{}, ctxErr
		}
		return Failure(err.Error()), nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Failure(fmt.Sprintf("read response: %v", err)), nil
	}

	if resp.StatusCode >= 400 {
		return Failure(fmt.Sprintf("HTTP Error %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))), nil
	}
	return parseResponse(data), nil
}

// parseResponse extracts the verdict fields. The continuation URL is read from
// "url", with "next_url" accepted as an alias.
func parseResponse(data []byte) Response {
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return Failure(fmt.Sprintf("Server returned invalid JSON: %s", strings.TrimSpace(string(data))))
	}

	res := gjson.GetManyBytes(data, "correct", "url", "next_url", "reason")
	var out Response
	if c := res[0]; c.Exists() && c.Type != gjson.Null {
		v := c.Bool()
		out.Correct = &v
	}
	out.NextURL = strings.TrimSpace(res[1].String())
	if out.NextURL == "" {
		out.NextURL = strings.TrimSpace(res[2].String())
	}
	out.Reason = res[3].String()
	return out
}

// Failure returns an incorrect verdict carrying reason.
func Failure(reason string) Response {
	f := false
	return Response{Correct: &f, Reason: reason}
}

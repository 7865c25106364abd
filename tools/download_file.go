package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

type DownloadFileInput struct {
	URL      string `json:"url" jsonschema_description:"Absolute URL of the file."`
	Filename string `json:"filename" jsonschema_description:"Relative path inside the workspace to save the file as."`
}

type downloadResult struct {
	Path        string `json:"path"`
	Bytes       int64  `json:"bytes"`
	ContentType string `json:"content_type,omitempty"`
}

var errDownloadTooLarge = errors.New("download exceeds size limit")

// capReader fails once more than max bytes have been read.
type capReader struct {
	r   io.Reader
	max int64
	n   int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.max > 0 && c.n > c.max {
		return n, errDownloadTooLarge
	}
	return n, err
}

func (d Deps) downloadFile() ToolDefinition {
	return ToolDefinition{
		Name:        DownloadFile,
		Description: "Download a file over HTTP and save it in the workspace under the given relative filename. Returns the saved path and size; run_code can then read it by that path.",
		InputSchema: GenerateSchema[DownloadFileInput](),
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in DownloadFileInput
			if err := decodeInput(input, &in); err != nil {
				return "", err
			}
			if strings.TrimSpace(in.URL) == "" {
				return "", errors.New("url is required")
			}
			if strings.TrimSpace(in.Filename) == "" {
				return "", errors.New("filename is required")
			}
			if d.Workspace == nil {
				return "", notConfigured(DownloadFile)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
			if err != nil {
				return "", err
			}
			hc := d.HTTPClient
			if hc == nil {
				hc = http.DefaultClient
			}
			resp, err := hc.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				return "", fmt.Errorf("GET %s: HTTP %d", in.URL, resp.StatusCode)
			}
			if d.MaxDownload > 0 && resp.ContentLength > d.MaxDownload {
				return "", fmt.Errorf("%w: %d > %d bytes", errDownloadTooLarge, resp.ContentLength, d.MaxDownload)
			}

			n, err := d.Workspace.WriteFrom(in.Filename, &capReader{r: resp.Body, max: d.MaxDownload})
			if err != nil {
				return "", err
			}
			return encodeResult(downloadResult{
				Path:        filepath.ToSlash(filepath.Clean(in.Filename)),
				Bytes:       n,
				ContentType: resp.Header.Get("Content-Type"),
			})
		},
	}
}

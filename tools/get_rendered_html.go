package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

type GetRenderedHTMLInput struct {
	URL string `json:"url" jsonschema_description:"Absolute URL of the page to render."`
}

type renderedPage struct {
	HTML   string   `json:"html"`
	Images []string `json:"images"`
}

func (d Deps) getRenderedHTML() ToolDefinition {
	return ToolDefinition{
		Name:        GetRenderedHTML,
		Description: "Load a web page in a headless browser, let its JavaScript run, and return the rendered HTML together with the absolute URLs of its images. Use this to read task pages.",
		InputSchema: GenerateSchema[GetRenderedHTMLInput](),
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in GetRenderedHTMLInput
			if err := decodeInput(input, &in); err != nil {
				return "", err
			}
			if strings.TrimSpace(in.URL) == "" {
				return "", errors.New("url is required")
			}
			if d.Renderer == nil {
				return "", notConfigured(GetRenderedHTML)
			}

			page, err := d.Renderer.Render(ctx, in.URL)
			if err != nil {
				return "", err
			}
			html, truncated := clampRunes(page.HTML, d.MaxHTMLRunes)
			if truncated {
				html += truncationSentinel
			}
			images := page.Images
			if images == nil {
				images = []string{}
			}
			return encodeResult(renderedPage{HTML: html, Images: images})
		},
	}
}

package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/petasbytes/solver-agent/tools"
)

func TestRegistry_ToolCount(t *testing.T) {
	defs := tools.NewRegistry(tools.Deps{}).Definitions()
	wantCount := 5
	if len(defs) != wantCount {
		t.Fatalf("unexpected number of tools: got %d want %d", len(defs), wantCount)
	}
}

func TestRegistry_ToolNames(t *testing.T) {
	defs := tools.NewRegistry(tools.Deps{}).Definitions()
	want := map[tools.Name]struct{}{
		"get_rendered_html": {},
		"download_file":     {},
		"run_code":          {},
		"add_dependencies":  {},
		"submit_answer":     {},
	}

	// Unexpected names detected
	for _, d := range defs {
		if _, ok := want[d.Name]; !ok {
			t.Fatalf("unexpected tool in registry: %q", d.Name)
		}
	}

	// Missing expected names
	got := map[tools.Name]struct{}{}
	for _, d := range defs {
		got[d.Name] = struct{}{}
	}
	for name := range want {
		if _, ok := got[name]; !ok {
			t.Errorf("missing expected tool: %q", name)
		}
	}

	if t.Failed() {
		t.FailNow()
	}
}

func TestRegistry_EveryDefinitionComplete(t *testing.T) {
	for _, d := range tools.NewRegistry(tools.Deps{}).Definitions() {
		if d.Description == "" {
			t.Errorf("%s: empty description", d.Name)
		}
		if d.Function == nil {
			t.Errorf("%s: nil function", d.Name)
		}
		if len(d.InputSchema.Properties) == 0 || len(d.InputSchema.Required) == 0 {
			t.Errorf("%s: schema missing properties or required: %+v", d.Name, d.InputSchema)
		}
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := tools.NewRegistry(tools.Deps{})
	_, err := r.Lookup("rm_rf")
	if !errors.Is(err, tools.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	d, err := r.Lookup("run_code")
	if err != nil || d.Name != tools.RunCode {
		t.Fatalf("lookup run_code: %+v, %v", d.Name, err)
	}
}

func TestRegistry_NilCapabilityIsNotConfigured(t *testing.T) {
	r := tools.NewRegistry(tools.Deps{})
	cases := map[string]string{
		"get_rendered_html": `{"url":"https://x"}`,
		"download_file":     `{"url":"https://x/a.csv","filename":"a.csv"}`,
		"run_code":          `{"code":"print(1)"}`,
		"add_dependencies":  `{"dependencies":["pandas"]}`,
		"submit_answer":     `{"submission_url":"https://x/submit","payload":"{}"}`,
	}
	for name, args := range cases {
		d, err := r.Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		_, err = d.Function(context.Background(), json.RawMessage(args))
		if err == nil || !strings.Contains(err.Error(), "not configured") {
			t.Errorf("%s: expected not configured error, got %v", name, err)
		}
	}
}

func TestGenerateSchema_RequiredAndDescriptions(t *testing.T) {
	s := tools.GenerateSchema[tools.DownloadFileInput]()
	if len(s.Required) != 2 {
		t.Fatalf("required: got %v", s.Required)
	}
	url, ok := s.Properties["url"].(map[string]any)
	if !ok {
		t.Fatalf("url property missing: %+v", s.Properties)
	}
	if url["type"] != "string" || url["description"] == "" {
		t.Fatalf("unexpected url property: %+v", url)
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"type":"object"`) {
		t.Fatalf("expected object schema, got %s", b)
	}
}

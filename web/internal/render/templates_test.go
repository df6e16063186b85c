package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Tests run from: <project>/web/internal/render
// Templates are at: <project>/web/templates
func getTestTemplatesPath() string {
	return filepath.Join("..", "..", "templates")
}

func TestLoadTemplates(t *testing.T) {
	ts, err := LoadTemplates(getTestTemplatesPath())
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}

	if len(GetTemplateNames(ts)) == 0 {
		t.Fatal("Expected at least one template to be loaded")
	}

	if !ts.Has("dashboard.html") {
		t.Errorf("Expected template %q to be loaded, but it wasn't found", "dashboard.html")
	}
	if ts.Has("missing.html") {
		t.Errorf("Has() reported a template that does not exist")
	}
}

func TestLoadTemplatesMissingDir(t *testing.T) {
	if _, err := LoadTemplates(t.TempDir()); err == nil {
		t.Fatal("Expected error for directory without page templates")
	}
}

func TestTemplateSourceFileExists(t *testing.T) {
	templatesPath := getTestTemplatesPath()

	requiredFiles := map[string]string{
		"base layout":     filepath.Join(templatesPath, "layouts", "base.html"),
		"dashboard page":  filepath.Join(templatesPath, "pages", "dashboard.html"),
		"flash component": filepath.Join(templatesPath, "components", "flash.html"),
	}

	for name, path := range requiredFiles {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("Required template file %q does not exist at %s", name, path)
		} else if err != nil {
			t.Errorf("Error checking template file %q at %s: %v", name, path, err)
		}
	}
}

func TestExecuteDashboard(t *testing.T) {
	ts, err := LoadTemplates(getTestTemplatesPath())
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}

	tests := []struct {
		name     string
		data     map[string]interface{}
		contains []string
		excludes []string
	}{
		{
			name: "not linked",
			data: map[string]interface{}{
				"State": "not_linked",
			},
			contains: []string{"Connect TikTok", "/link/tiktok/start"},
			excludes: []string{"Disconnect"},
		},
		{
			name: "linked",
			data: map[string]interface{}{
				"State":     "linked",
				"Handle":    "@creator",
				"Name":      "Creator",
				"Followers": int64(12500),
				"Videos":    int64(42),
				"Verified":  true,
				"LinkedAt":  "2026-10-15 09:30 CEST",
			},
			contains: []string{"@creator", "12.5K", "Disconnect", "/link/tiktok/disconnect", "2026-10-15 09:30 CEST"},
			excludes: []string{"Connect TikTok"},
		},
		{
			name: "checking",
			data: map[string]interface{}{
				"State": "checking",
			},
			contains: []string{"Checking"},
		},
		{
			name: "flashes",
			data: map[string]interface{}{
				"State": "not_linked",
				"Flashes": []map[string]string{
					{"Level": "error", "Message": "<b>denied</b>"},
				},
			},
			contains: []string{"flash-error", "&lt;b&gt;denied&lt;/b&gt;"},
			excludes: []string{"<b>denied</b>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := ts.Execute(&buf, "dashboard.html", tt.data); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			out := buf.String()
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q", want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(out, unwanted) {
					t.Errorf("output unexpectedly contains %q", unwanted)
				}
			}
		})
	}
}

func TestExecuteUnknownPage(t *testing.T) {
	ts, err := LoadTemplates(getTestTemplatesPath())
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}
	if err := ts.Execute(&bytes.Buffer{}, "nope.html", nil); err == nil {
		t.Error("Expected error for unknown page")
	}
}

func TestSanitizeDetail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "invalid_grant", want: "invalid_grant"},
		{name: "markup stripped", input: `<script>alert(1)</script>code expired`, want: "code expired"},
		{name: "whitespace collapsed", input: "  token \n\t expired  ", want: "token expired"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeDetail(tt.input); got != tt.want {
				t.Errorf("SanitizeDetail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	long := strings.Repeat("x", maxDetailLen+50)
	if got := []rune(SanitizeDetail(long)); len(got) != maxDetailLen+1 {
		t.Errorf("SanitizeDetail() long input length = %d, want %d", len(got), maxDetailLen+1)
	}
}

func TestCompactCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1K"},
		{12500, "12.5K"},
		{3_400_000, "3.4M"},
	}
	for _, tt := range tests {
		if got := compactCount(tt.in); got != tt.want {
			t.Errorf("compactCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeDetailPlainText(t *testing.T) {
	if got := SanitizeDetail(`user's "code" & more`); got != `user's "code" & more` {
		t.Errorf("SanitizeDetail() = %q, want entities decoded", got)
	}
}

package paths

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderTemplate_BasicSubstitution(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		expected string
		wantErr  bool
	}{
		{
			name:     "default template",
			template: DefaultOutputTemplate,
			data:     map[string]string{"id": "1234567890", "ext": "mp4"},
			expected: "1234567890.mp4",
		},
		{
			name:     "fixed extension",
			template: "%(id)s.mp4",
			data:     map[string]string{"id": "42"},
			expected: "42.mp4",
		},
		{
			name:     "subdirectory per tag",
			template: "%(tag)s/%(id)s.%(ext)s",
			data:     map[string]string{"tag": "MBTL_AO", "id": "7", "ext": "mp4"},
			expected: filepath.FromSlash("MBTL_AO/7.mp4"),
		},
		{
			name:     "numeric conversion",
			template: "%(upload_date)d_%(id)s.%(ext)s",
			data:     map[string]string{"upload_date": "20240101", "id": "9", "ext": "mp4"},
			expected: "20240101_9.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderTemplate(tt.template, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("RenderTemplate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("RenderTemplate() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRenderTemplate_MissingValues(t *testing.T) {
	got, err := RenderTemplate("%(uploader_id)s/%(id)s.%(ext)s", map[string]string{"id": "1", "ext": "mp4"})
	if err != nil {
		t.Fatalf("RenderTemplate() unexpected error: %v", err)
	}
	want := filepath.FromSlash("NA/1.mp4")
	if got != want {
		t.Errorf("RenderTemplate() = %v, want %v", got, want)
	}
}

func TestRenderTemplate_UnknownField(t *testing.T) {
	_, err := RenderTemplate("%(title)s.%(ext)s", map[string]string{"title": "x", "ext": "mp4"})
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "%(title)s") {
		t.Errorf("error should name the placeholder, got %v", err)
	}
}

func TestRenderTemplate_Sanitization(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]string
		expected string
	}{
		{
			name:     "slashes in id are flattened",
			data:     map[string]string{"id": "a/b", "ext": "mp4"},
			expected: "a_b.mp4",
		},
		{
			name:     "traversal in id",
			data:     map[string]string{"id": "../../etc", "ext": "mp4"},
			expected: "etc.mp4",
		},
		{
			name:     "spaces",
			data:     map[string]string{"id": "my video", "ext": "mp4"},
			expected: "my_video.mp4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderTemplate(DefaultOutputTemplate, tt.data)
			if err != nil {
				t.Fatalf("RenderTemplate() unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("RenderTemplate() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRenderTemplate_EmptyResult(t *testing.T) {
	if _, err := RenderTemplate("", nil); err == nil {
		t.Error("expected error for empty template")
	}
}

func TestArtifactPaths(t *testing.T) {
	dir := filepath.Join("downloads", "tag")

	if got, want := Prefix(dir, "123"), filepath.Join(dir, "123"); got != want {
		t.Errorf("Prefix() = %v, want %v", got, want)
	}
	if got, want := VideoPath(dir, "123", ".mp4"), filepath.Join(dir, "123.mp4"); got != want {
		t.Errorf("VideoPath() = %v, want %v", got, want)
	}
	if got, want := SidecarPath(dir, "123"), filepath.Join(dir, "123.json"); got != want {
		t.Errorf("SidecarPath() = %v, want %v", got, want)
	}

	out, err := OutputPath(dir, DefaultOutputTemplate, "123", "mp4")
	if err != nil {
		t.Fatalf("OutputPath() unexpected error: %v", err)
	}
	if out != VideoPath(dir, "123", "mp4") {
		t.Errorf("OutputPath() = %v, want %v", out, VideoPath(dir, "123", "mp4"))
	}
}

func TestTemplateFields(t *testing.T) {
	got := TemplateFields("%(tag)s/%(upload_date)d_%(id)s.%(ext)s")
	want := []string{"tag", "upload_date", "id", "ext"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("TemplateFields() = %v, want %v", got, want)
	}
	if fields := TemplateFields("plain.mp4"); len(fields) != 0 {
		t.Errorf("TemplateFields() = %v, want none", fields)
	}
}

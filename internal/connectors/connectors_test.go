package connectors

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateURLRejectsReservedHostsAndNetworks(t *testing.T) {
	cases := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/docs", false},
		{"http://example.com", false},
		{"ftp://example.com", true},
		{"https://localhost/admin", true},
		{"https://127.0.0.1:8080", true},
		{"https://10.1.2.3/", true},
		{"https://172.31.5.1/", true},
		{"https://172.15.5.1/", false}, // just outside 172.16.0.0/12
		{"https://192.168.1.1/", true},
		{"file:///etc/passwd", true},
		{"chrome://settings", true},
		{"about:blank", true},
	}
	for _, c := range cases {
		err := ValidateURL(c.url)
		if (err != nil) != c.wantErr {
			t.Errorf("ValidateURL(%q) error = %v, wantErr %v", c.url, err, c.wantErr)
		}
	}
}

func TestClaudeCLIExtractEmitsOneEntryPerURL(t *testing.T) {
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "myproject")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}

	content := `{"type":"assistant","timestamp":"2026-01-01T00:00:00Z","message":{"content":"see https://example.com/a and https://10.0.0.5/internal"}}
`
	if err := os.WriteFile(filepath.Join(projectDir, "conv1.jsonl"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &ClaudeCLI{RootDir: dir}
	if !c.Available() {
		t.Fatal("Available() = false, want true")
	}
	sources, err := c.ListHistorySources()
	if err != nil {
		t.Fatalf("ListHistorySources: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("ListHistorySources = %+v, want 1 source", sources)
	}

	entries, err := c.Extract(context.Background(), sources[0], "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Extract found %d entries, want 2", len(entries))
	}

	var sawValid, sawInvalid bool
	for _, e := range entries {
		if e.IsValid {
			sawValid = true
		} else {
			sawInvalid = true
			if e.ValidationError == "" {
				t.Error("invalid entry missing validation_error")
			}
		}
	}
	if !sawValid || !sawInvalid {
		t.Errorf("expected one valid and one invalid entry, got valid=%v invalid=%v", sawValid, sawInvalid)
	}
}

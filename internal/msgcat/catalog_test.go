package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedCatalog(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("chat.rejected.too_long", map[string]any{"MaxLen": 280})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "280") {
		t.Fatalf("rendered = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	c, _ := New("")
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "peer:\n  reconnected: \"welcome back, {{.Name}}\"\n"
	if err := os.WriteFile(filepath.Join(dir, "10-local.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("peer.reconnected", map[string]any{"Name": "bob"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "welcome back, bob" {
		t.Fatalf("rendered = %q", got)
	}
	// non-overridden keys keep their defaults
	if _, err := c.Render("peer.disconnected", map[string]any{"Name": "x"}); err != nil {
		t.Fatalf("default lost after override: %v", err)
	}
}

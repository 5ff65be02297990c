package popuptemplates

import (
	"os"
	"path/filepath"
	"testing"

	"argus/internal/models"
)

const testYAML = `
templates:
  event_discovery:
    icon: "📅"
    header_class: discovery
    title: "New event: {{event}}"
    subtitle: "Spotted in chat"
    body: "Context: {{context}}"
    question: "Add this?"
    buttons:
      - text: "Yes"
        action: confirm_create
        style: primary
      - text: "No"
        action: dismiss_temp
  conflict_warning:
    icon: "⚠️"
    header_class: conflict
    title: "Conflicts with {{conflict}}"
    buttons:
      - text: "Keep both"
        action: confirm_create
`

func writeTestFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "popup-templates.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test template file: %v", err)
	}
	return path
}

func TestLoadParsesTemplates(t *testing.T) {
	path := writeTestFile(t, testYAML)
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	popup, ok := store.Render(models.PopupEventDiscovery, "Dinner with Sarah", "mentioned in chat", "")
	if !ok {
		t.Fatal("expected event_discovery template to render")
	}
	if popup.Title != "New event: Dinner with Sarah" {
		t.Errorf("expected placeholder substitution in title, got %q", popup.Title)
	}
	if popup.Body != "Context: mentioned in chat" {
		t.Errorf("expected placeholder substitution in body, got %q", popup.Body)
	}
	if popup.Question == nil || *popup.Question != "Add this?" {
		t.Errorf("expected question to be set, got %v", popup.Question)
	}
	if popup.HeaderClass != models.HeaderDiscovery {
		t.Errorf("expected header class %q, got %q", models.HeaderDiscovery, popup.HeaderClass)
	}
	if len(popup.Buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(popup.Buttons))
	}
	if popup.Buttons[0].Action != models.ClientAction("confirm_create") {
		t.Errorf("expected first button action confirm_create, got %q", popup.Buttons[0].Action)
	}
}

func TestRenderSubstitutesConflictPlaceholder(t *testing.T) {
	path := writeTestFile(t, testYAML)
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	popup, ok := store.Render(models.PopupConflictWarning, "", "", "Team Standup")
	if !ok {
		t.Fatal("expected conflict_warning template to render")
	}
	if popup.Title != "Conflicts with Team Standup" {
		t.Errorf("expected conflict substitution, got %q", popup.Title)
	}
}

func TestRenderReportsMissingTemplate(t *testing.T) {
	path := writeTestFile(t, testYAML)
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, ok := store.Render(models.PopupInsightCard, "x", "y", "z"); ok {
		t.Error("expected ok=false for a popup type absent from the config")
	}
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Error("expected error loading a nonexistent file")
	}
}

func TestLoadFailsOnInvalidYAML(t *testing.T) {
	path := writeTestFile(t, "not: [valid yaml")
	if _, err := Load(path); err == nil {
		t.Error("expected error parsing invalid YAML")
	}
}

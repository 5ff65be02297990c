// Package popuptemplates loads the eight static popup blueprint templates
// (spec §4.7) from external YAML config, hot-reloading on change, mirroring
// the teacher's providers.json provider-pool hot reload.
package popuptemplates

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"argus/internal/models"
)

// Button is one configured popup button.
type Button struct {
	Text   string `yaml:"text"`
	Action string `yaml:"action"`
	Style  string `yaml:"style,omitempty"`
}

// Template is one popup's YAML shape, with `{{event}}`/`{{context}}`/
// `{{conflict}}` placeholders substituted at render time.
type Template struct {
	Icon        string   `yaml:"icon"`
	HeaderClass string   `yaml:"header_class"`
	Title       string   `yaml:"title"`
	Subtitle    string   `yaml:"subtitle,omitempty"`
	Body        string   `yaml:"body,omitempty"`
	Question    string   `yaml:"question,omitempty"`
	Buttons     []Button `yaml:"buttons"`
}

type file struct {
	Templates map[models.PopupType]Template `yaml:"templates"`
}

// Store holds the currently loaded templates, safe for concurrent Render
// calls during a Watch-triggered reload.
type Store struct {
	mu        sync.RWMutex
	templates map[models.PopupType]Template
	path      string
}

// Load reads and parses path, returning a ready Store.
func Load(path string) (*Store, error) {
	s := &Store{path: path, templates: map[models.PopupType]Template{}}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("popuptemplates: reading %s: %w", s.path, err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("popuptemplates: parsing %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.templates = f.Templates
	s.mu.Unlock()
	return nil
}

// Watch starts a background fsnotify watch on the backing file, reloading on
// every write. Reload failures are logged, not fatal — the Store keeps
// serving its last-good templates.
func (s *Store) Watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️ [POPUP-TEMPLATES] watcher unavailable: %v", err)
		return
	}
	if err := watcher.Add(s.path); err != nil {
		log.Printf("⚠️ [POPUP-TEMPLATES] cannot watch %s: %v", s.path, err)
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.reload(); err != nil {
					log.Printf("⚠️ [POPUP-TEMPLATES] reload failed: %v", err)
				} else {
					log.Println("✅ [POPUP-TEMPLATES] reloaded")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️ [POPUP-TEMPLATES] watch error: %v", err)
			}
		}
	}()
}

// Render builds a Popup from the configured template for popupType. ok is
// false when no template is configured for it, so the caller can fall back
// to the compiled-in default (internal/tier/heuristics.GeneratePopupBlueprint).
func (s *Store) Render(popupType models.PopupType, eventTitle, contextNote, conflictTitle string) (popup *models.Popup, ok bool) {
	s.mu.RLock()
	t, found := s.templates[popupType]
	s.mu.RUnlock()
	if !found {
		return nil, false
	}

	sub := func(text string) string {
		r := strings.NewReplacer("{{event}}", eventTitle, "{{context}}", contextNote, "{{conflict}}", conflictTitle)
		return r.Replace(text)
	}

	result := &models.Popup{
		Icon:        t.Icon,
		HeaderClass: models.PopupHeaderClass(t.HeaderClass),
		Title:       sub(t.Title),
		Subtitle:    sub(t.Subtitle),
		Body:        sub(t.Body),
		PopupType:   popupType,
	}
	if t.Question != "" {
		q := sub(t.Question)
		result.Question = &q
	}
	for _, b := range t.Buttons {
		result.Buttons = append(result.Buttons, models.PopupButton{
			Text:   b.Text,
			Action: models.ClientAction(b.Action),
			Style:  b.Style,
		})
	}
	return result, true
}

package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"

	"argus/internal/scheduler"
	"argus/internal/store"
)

// backupFilenamePattern enforces the "argus-backup-YYYY-MM-DD.json" naming
// convention (spec §6) before a filename is ever joined onto the backup
// directory path.
var backupFilenamePattern = regexp.MustCompile(`^argus-backup-\d{4}-\d{2}-\d{2}\.json$`)

// BackupHandler serves the /api/backup/* routes (spec §6).
type BackupHandler struct {
	store *store.Store
	dir   string
}

// NewBackupHandler creates a new backup handler writing into dir
// ("data/backups").
func NewBackupHandler(s *store.Store, dir string) *BackupHandler {
	return &BackupHandler{store: s, dir: dir}
}

// Export serves GET /api/backup/export: a full JSON snapshot as a file
// attachment.
func (h *BackupHandler) Export(c *fiber.Ctx) error {
	now := time.Now().UTC()
	backup, err := h.store.Export(c.Context(), "manual-export", now.Unix())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	name := fmt.Sprintf("argus-backup-%s.json", now.Format("2006-01-02"))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.JSON(backup)
}

// List serves GET /api/backup/list.
func (h *BackupHandler) List(c *fiber.Ctx) error {
	names, err := scheduler.ListBackups(h.dir)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"backups": names})
}

// importBody is POST /api/backup/import's body.
type importBody struct {
	Backup  store.Backup `json:"backup"`
	Mode    string       `json:"mode"`
	Indices []string     `json:"indices,omitempty"`
}

// Import serves POST /api/backup/import: "replace" wipes and reinserts all
// six collections; "merge" is not yet distinguished at the store layer
// (DESIGN.md Open-question decision), so it currently behaves like replace.
func (h *BackupHandler) Import(c *fiber.Ctx) error {
	var body importBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if body.Mode != "merge" && body.Mode != "replace" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "mode must be \"merge\" or \"replace\""})
	}

	if err := h.store.Restore(c.Context(), &body.Backup); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"restored": true, "mode": body.Mode})
}

// Restore serves POST /api/backup/restore/:filename: loads a named backup
// file off disk and replays it through the same Restore path Import uses.
func (h *BackupHandler) Restore(c *fiber.Ctx) error {
	filename := c.Params("filename")
	if !backupFilenamePattern.MatchString(filename) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "filename must match argus-backup-YYYY-MM-DD.json"})
	}

	raw, err := os.ReadFile(filepath.Join(h.dir, filename))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "backup not found"})
	}

	var backup store.Backup
	if unmarshalErr := json.Unmarshal(raw, &backup); unmarshalErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "corrupt backup file"})
	}

	if restoreErr := h.store.Restore(c.Context(), &backup); restoreErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": restoreErr.Error()})
	}
	return c.JSON(fiber.Map{"restored": true, "filename": filename})
}

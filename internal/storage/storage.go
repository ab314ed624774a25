package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Tiliavir/showrun/internal/automation"
	"github.com/Tiliavir/showrun/internal/model"
)

const (
	projectFile = "project.json"
	restoreFile = "restore.json"
	logFile     = "showrun.log"
)

// ErrCorrupt is wrapped when a data file cannot be parsed. The file has
// been moved aside to <name>.corrupt by then.
var ErrCorrupt = errors.New("corrupt data file")

// BaseDir returns the default data directory (~/.showrun).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".showrun"), nil
}

// ProjectPath is the project file inside base.
func ProjectPath(base string) string { return filepath.Join(base, projectFile) }

// RestorePath is the restore point file inside base.
func RestorePath(base string) string { return filepath.Join(base, restoreFile) }

// LogPath is the log file inside base.
func LogPath(base string) string { return filepath.Join(base, logFile) }

// Project is everything persisted about a show.
type Project struct {
	Rundown      model.Rundown       `json:"rundown"`
	CustomFields model.CustomFields  `json:"customFields"`
	Automation   automation.Settings `json:"automation"`
}

// NewProject returns an empty project.
func NewProject() Project {
	return Project{
		Rundown:      model.NewRundown("default", ""),
		CustomFields: model.CustomFields{},
		Automation:   automation.Settings{},
	}
}

// LoadProject reads the project file. A missing file yields an empty project.
func LoadProject(base string) (Project, error) {
	p := NewProject()
	found, err := ReadJSON(ProjectPath(base), &p)
	if err != nil {
		return Project{}, err
	}
	if !found {
		return NewProject(), nil
	}
	if p.Rundown.Order == nil {
		p.Rundown.Order = []string{}
	}
	if p.Rundown.Entries == nil {
		p.Rundown.Entries = model.Entries{}
	}
	if p.CustomFields == nil {
		p.CustomFields = model.CustomFields{}
	}
	return p, nil
}

// SaveProject atomically writes the project file.
func SaveProject(base string, p Project) error {
	return WriteJSON(ProjectPath(base), p)
}

// ReadJSON decodes path into v. It reports false without error when the
// file does not exist. Unparseable files are moved to path.corrupt.
func ReadJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage error reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return false, fmt.Errorf("%w: %s (backed up to %s): %v", ErrCorrupt, path, backupPath, err)
	}
	return true, nil
}

// WriteJSON atomically writes v as indented JSON.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}
	return WriteFile(path, data)
}

// WriteFile atomically replaces path with data: write to a temp file, then
// rename over the target.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

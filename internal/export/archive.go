// Package export packs a project and its scenes into a downloadable zip archive.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"

	"short-drama-service/internal/models"
)

// Entry names inside the archive.
const (
	ProjectFile = "project.json"
	ScenesFile  = "scenes.json"
	ScriptFile  = "script.txt"
)

// FileName is the suggested download name for a project's archive.
func FileName(project models.Project) string {
	return fmt.Sprintf("project-%s.zip", project.ID)
}

// WriteProject writes a zip containing project.json, scenes.json and script.txt to w.
// The files are staged in a temporary directory that is removed afterwards.
func WriteProject(ctx context.Context, w io.Writer, project models.Project, scenes []models.Scene) error {
	stageDir, err := os.MkdirTemp("", "export-*")
	if err != nil {
		return errors.Wrap(err, "create staging directory")
	}
	defer os.RemoveAll(stageDir)

	contents := map[string][]byte{
		ScriptFile: []byte(Script(project, scenes)),
	}
	if contents[ProjectFile], err = json.MarshalIndent(project, "", "  "); err != nil {
		return errors.Wrap(err, "encode project")
	}
	if scenes == nil {
		scenes = []models.Scene{}
	}
	if contents[ScenesFile], err = json.MarshalIndent(scenes, "", "  "); err != nil {
		return errors.Wrap(err, "encode scenes")
	}

	names := make(map[string]string, len(contents))
	for name, data := range contents {
		path := filepath.Join(stageDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.Wrapf(err, "stage %s", name)
		}
		names[path] = name
	}

	files, err := archives.FilesFromDisk(ctx, nil, names)
	if err != nil {
		return errors.Wrap(err, "collect files")
	}
	return errors.Wrap(archives.Zip{}.Archive(ctx, w, files), "write zip")
}

// Script returns the project's script, or a rendering of its scenes in the
// wizard's marker format when no script text was saved.
func Script(project models.Project, scenes []models.Scene) string {
	if strings.TrimSpace(project.Script) != "" {
		return project.Script
	}

	var b strings.Builder
	for i, s := range scenes {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "【%d幕】場景：%s\n", s.OrderNum, s.Description)
		if s.CharacterDescription != "" {
			fmt.Fprintf(&b, "角色：%s\n", s.CharacterDescription)
		}
		if s.Dialogue != "" {
			fmt.Fprintf(&b, "對白：%s\n", s.Dialogue)
		}
	}
	return b.String()
}

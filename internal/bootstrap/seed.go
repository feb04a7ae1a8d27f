// Package bootstrap seeds a fresh workspace with the markdown files the
// agent reads into its system prompt.
package bootstrap

import (
	"embed"
	"log/slog"
	"os"
	"path/filepath"
)

//go:embed templates/*.md
var templateFS embed.FS

// Workspace file names.
const (
	AgentsFile    = "AGENTS.md"
	SoulFile      = "SOUL.md"
	UserFile      = "USER.md"
	ToolsFile     = "TOOLS.md"
	IdentityFile  = "IDENTITY.md"
	HeartbeatFile = "HEARTBEAT.md"
)

// templateFiles lists the templates to seed, in order.
var templateFiles = []string{
	AgentsFile,
	SoulFile,
	UserFile,
	ToolsFile,
	IdentityFile,
	HeartbeatFile,
}

// ReadTemplate returns the content of an embedded template file.
func ReadTemplate(name string) (string, error) {
	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// EnsureWorkspaceFiles seeds template files into a workspace directory.
// Existing files are never overwritten. Returns the files created.
func EnsureWorkspaceFiles(workspaceDir string) ([]string, error) {
	if err := os.MkdirAll(workspaceDir, 0755); err != nil {
		return nil, err
	}

	var created []string
	for _, name := range templateFiles {
		ok, err := seedTemplate(workspaceDir, name)
		if err != nil {
			slog.Warn("bootstrap: failed to seed template", "file", name, "error", err)
			continue
		}
		if ok {
			created = append(created, name)
		}
	}
	return created, nil
}

// seedTemplate writes one template if the file doesn't exist yet.
// O_EXCL makes the existence check race-free.
func seedTemplate(workspaceDir, name string) (bool, error) {
	dstPath := filepath.Join(workspaceDir, name)

	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		os.Remove(dstPath)
		return false, err
	}

	if _, err := f.Write(content); err != nil {
		return false, err
	}
	return true, nil
}

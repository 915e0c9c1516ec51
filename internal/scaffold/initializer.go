package scaffold

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dyluth/chalk/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Files created by Initialize, relative to the target directory
const (
	ConfigFile = "chalk.yml"
	EnvFile    = ".env.example"
)

// Initialize writes chalk.yml and .env.example into dir.
// If force is true, existing files are overwritten.
func Initialize(dir string, force bool, log io.Writer) error {
	if force {
		if err := handleForce(dir, log); err != nil {
			return err
		}
	}

	files, err := getTemplateFiles(dir)
	if err != nil {
		return err
	}

	if err := writeFiles(files); err != nil {
		return err
	}

	// The written chalk.yml must load as-is
	if _, err := config.Load(filepath.Join(dir, ConfigFile)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", ConfigFile, err)
	}

	return nil
}

// handleForce removes existing files if --force was specified
func handleForce(dir string, log io.Writer) error {
	for _, name := range []string{ConfigFile, EnvFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(log, "⚠️  Removing existing %s...\n", name)
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", name, err)
			}
		}
	}
	return nil
}

// getTemplateFiles reads all template files
func getTemplateFiles(dir string) ([]FileInfo, error) {
	templates := []struct {
		template string
		name     string
	}{
		{"templates/chalk.yml.tmpl", ConfigFile},
		{"templates/env.example.tmpl", EnvFile},
	}

	files := make([]FileInfo, 0, len(templates))
	for _, t := range templates {
		content, err := templatesFS.ReadFile(t.template)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", t.name, err)
		}
		files = append(files, FileInfo{
			Path:        filepath.Join(dir, t.name),
			Content:     content,
			Permissions: 0644,
		})
	}
	return files, nil
}

// writeFiles writes all template files to disk
func writeFiles(files []FileInfo) error {
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}

	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess(w io.Writer) {
	fmt.Fprintln(w, "\n✅ Successfully initialized chalk configuration!")
	fmt.Fprintln(w, "\nCreated:")
	fmt.Fprintf(w, "  ✓ %s\n", ConfigFile)
	fmt.Fprintf(w, "  ✓ %s\n", EnvFile)
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Pick a backend in chalk.yml (redis, sqlite or memory)")
	fmt.Fprintln(w, "  2. Run 'chalkd' to serve boards")
	fmt.Fprintln(w, "  3. Run 'chalk boards' to list what has been drawn")
}

package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"
	"time"
)

var (
	upTemplate = template.Must(template.New("up").Parse(`-- Migration: {{.Name}}
-- Description: {{.Description}}

`))
	downTemplate = template.Must(template.New("down").Parse(`-- Migration: {{.Name}} (Rollback)

`))
)

// MigrationFile is a created up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	UpPath      string
	DownPath    string
}

// CreateMigration writes an empty up/down pair named {YYYYMMDDHHMMSS}_{name}
func CreateMigration(migrationsDir, name, description string) (*MigrationFile, error) {
	base := sanitizeName(name)
	if base == "" {
		return nil, errors.New("migration name is empty after sanitizing")
	}
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version := time.Now().UTC().Format("20060102150405")
	mf := &MigrationFile{
		Version:     version,
		Name:        base,
		Description: description,
		UpPath:      filepath.Join(migrationsDir, version+"_"+base+".up.sql"),
		DownPath:    filepath.Join(migrationsDir, version+"_"+base+".down.sql"),
	}

	if err := writeTemplate(mf.UpPath, upTemplate, mf); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := writeTemplate(mf.DownPath, downTemplate, mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return mf, nil
}

func writeTemplate(path string, tmpl *template.Template, data *MigrationFile) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(f, data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// sanitizeName lowercases name and collapses separators into single underscores
func sanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '_':
			pendingSep = true
		}
	}
	return b.String()
}

// ListMigrations returns the sorted base names of the *.up.sql files in fsys
func ListMigrations(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok {
			names = append(names, base)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Package policy loads role policy overrides from a YAML file and keeps them
// current while the process runs.
//
// File format:
//
//	operations:
//	  "draft:seal": [ADMIN, ANALYST]
//	  RejectEvidenceCommand: [ADMIN]
//
// Operations present in the file replace the defaults; the rest keep them.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"evidentia/internal/evidence/models"
)

const debounce = 200 * time.Millisecond

type document struct {
	Operations map[string][]string `yaml:"operations"`
}

// File serves the merged role policy. A reload that fails to parse keeps the
// last good policy.
type File struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[models.RolePolicy]
}

// Load reads path once. An empty path serves the defaults.
func Load(path string, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &File{path: path, logger: logger}
	p := models.DefaultRolePolicy()
	if path != "" {
		loaded, err := parse(path)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	f.current.Store(&p)
	return f, nil
}

// RolePolicy returns the policy in force.
func (f *File) RolePolicy() models.RolePolicy {
	return *f.current.Load()
}

// Reload re-reads the file and swaps the policy in on success.
func (f *File) Reload() error {
	if f.path == "" {
		return nil
	}
	p, err := parse(f.path)
	if err != nil {
		return err
	}
	f.current.Store(&p)
	return nil
}

// Watch reloads the policy whenever the file changes until ctx is done. The
// parent directory is watched so editors that replace the file by rename are
// picked up.
func (f *File) Watch(ctx context.Context) error {
	if f.path == "" {
		<-ctx.Done()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch policy directory: %w", err)
	}

	target := filepath.Clean(f.path)
	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			if err := f.Reload(); err != nil {
				f.logger.ErrorContext(ctx, "policy reload failed, keeping previous policy",
					"path", f.path,
					"error", err,
				)
				continue
			}
			f.logger.InfoContext(ctx, "role policy reloaded", "path", f.path)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.WarnContext(ctx, "policy watcher error", "error", err)
		}
	}
}

func parse(path string) (models.RolePolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	override := make(models.RolePolicy, len(doc.Operations))
	for op, names := range doc.Operations {
		roles := make([]models.Role, 0, len(names))
		for _, name := range names {
			role := models.Role(name)
			if !role.IsValid() {
				return nil, fmt.Errorf("policy file: unknown role %q for %s", name, op)
			}
			roles = append(roles, role)
		}
		override[models.Operation(op)] = roles
	}
	return models.DefaultRolePolicy().Merge(override), nil
}

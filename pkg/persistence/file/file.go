// Package file provides file-based persistence for development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sendloop/sendloop/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system. A
// single lock covers all repositories so multi-entity writes (step
// records, warming advances) stay atomic relative to readers.
type Persistence struct {
	root string
	mu   sync.RWMutex

	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	domainRepo    *DomainRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.workflowRepo = &WorkflowRepository{store: p}
	p.executionRepo = &ExecutionRepository{store: p}
	p.domainRepo = &DomainRepository{store: p}

	return p
}

// Workflows returns the workflow repository.
func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return p.workflowRepo
}

// Executions returns the execution repository.
func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executionRepo
}

// Domains returns the sending-domain repository.
func (p *Persistence) Domains() persistence.DomainRepository {
	return p.domainRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// read unmarshals one entity file. Returns notFound when the file does
// not exist.
func (p *Persistence) read(kind, id string, out any, notFound error) error {
	data, err := os.ReadFile(p.path(kind, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound
		}

		return fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}

	return nil
}

// write marshals one entity file, creating the kind directory on demand.
func (p *Persistence) write(kind, id string, value any) error {
	dir := filepath.Join(p.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}

	if err := os.WriteFile(p.path(kind, id), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return nil
}

// listIDs returns every entity id stored under a kind directory.
func (p *Persistence) listIDs(kind string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, kind))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}

	return ids, nil
}

func (p *Persistence) remove(kind, id string, notFound error) error {
	err := os.Remove(p.path(kind, id))
	if errors.Is(err, fs.ErrNotExist) {
		return notFound
	}

	return err
}

func (p *Persistence) path(kind, id string) string {
	return filepath.Join(p.root, kind, id+".json")
}

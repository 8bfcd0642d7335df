package equipment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/equipment-monitor/internal/config"
	domain "github.com/oshokin/equipment-monitor/internal/domain/equipment"
)

// Repository defines persistence operations for the equipment list.
type Repository interface {
	Load(ctx context.Context) ([]*domain.Equipment, error)
	Save(ctx context.Context, equipments []*domain.Equipment) error
}

// schemaVersion tags the on-disk document for forward migration.
const schemaVersion = 1

// document is the on-disk envelope of the equipment blob.
type document struct {
	// SchemaVersion tags the layout of the blob.
	SchemaVersion int `json:"schema_version"`
	// Equipments is the full equipment list with bindings and thresholds.
	Equipments []*domain.Equipment `json:"equipments"`
}

// ErrNotFound is returned when the equipment file does not exist yet.
var ErrNotFound = errors.New("equipment store not found")

// FileRepository persists the equipment list to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON blob.
	path string
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the equipment list from disk.
func (r *FileRepository) Load(_ context.Context) ([]*domain.Equipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read equipment file: %w", err)
	}

	var doc document
	if err = json.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode equipment file: %w", err)
	}

	return doc.Equipments, nil
}

// Save writes the equipment list to disk.
func (r *FileRepository) Save(_ context.Context, equipments []*domain.Equipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := document{
		SchemaVersion: schemaVersion,
		Equipments:    equipments,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode equipment list: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write equipment file: %w", err)
	}

	return nil
}

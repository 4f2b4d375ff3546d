package memory

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/model"
)

const recordExt = ".json"

// LocalRepository keeps records as one JSON file each in a directory and
// serves similarity queries from an in-process index loaded at open.
// An empty directory path gives a volatile in-memory repository.
type LocalRepository struct {
	dir     string
	mu      sync.RWMutex
	records map[string]model.MemoryRecord
}

// OpenLocal loads every record found in dir. Unreadable files are skipped.
func OpenLocal(ctx context.Context, dir string) (*LocalRepository, error) {
	repo := &LocalRepository{
		dir:     dir,
		records: make(map[string]model.MemoryRecord),
	}
	if dir == "" {
		return repo, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "create memory dir", goerr.V("dir", dir))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "read memory dir", goerr.V("dir", dir))
	}

	logger := logging.From(ctx)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable memory record", "path", path, "error", err)
			continue
		}
		var rec model.MemoryRecord
		if err := json.Unmarshal(data, &rec); err != nil || rec.ID == "" {
			logger.Warn("skipping corrupt memory record", "path", path)
			continue
		}
		repo.records[rec.ID] = rec
	}

	logger.Debug("memory loaded", "dir", dir, "records", len(repo.records))
	return repo, nil
}

// Create writes rec to its own file, failing if the id is taken
func (r *LocalRepository) Create(_ context.Context, rec model.MemoryRecord) error {
	if rec.ID == "" || strings.ContainsAny(rec.ID, `/\`) {
		return goerr.New("invalid memory record id", goerr.V("id", rec.ID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return goerr.Wrap(ErrAlreadyExists, "create memory record", goerr.V("id", rec.ID))
	}

	if r.dir != "" {
		if err := r.writeExclusive(rec); err != nil {
			return err
		}
	}

	r.records[rec.ID] = rec
	return nil
}

func (r *LocalRepository) writeExclusive(rec model.MemoryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return goerr.Wrap(err, "marshal memory record", goerr.V("id", rec.ID))
	}

	path := filepath.Join(r.dir, rec.ID+recordExt)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return goerr.Wrap(ErrAlreadyExists, "create memory record", goerr.V("id", rec.ID))
		}
		return goerr.Wrap(err, "create memory record file", goerr.V("path", path))
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return goerr.Wrap(err, "write memory record", goerr.V("path", path))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return goerr.Wrap(err, "close memory record", goerr.V("path", path))
	}
	return nil
}

// Get returns a copy of the record with id
func (r *LocalRepository) Get(_ context.Context, id string) (*model.MemoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "get memory record", goerr.V("id", id))
	}
	return &rec, nil
}

// Nearest ranks every record with an embedding by cosine distance
func (r *LocalRepository) Nearest(_ context.Context, embedding []float32, limit int) ([]model.MemoryMatch, error) {
	if limit <= 0 {
		return []model.MemoryMatch{}, nil
	}

	r.mu.RLock()
	matches := make([]model.MemoryMatch, 0, len(r.records))
	for _, rec := range r.records {
		if len(rec.Embedding) == 0 {
			continue
		}
		matches = append(matches, model.MemoryMatch{
			Record:   rec,
			Distance: llm.CosineDistance(embedding, rec.Embedding),
		})
	}
	r.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Record.ID < matches[j].Record.ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Reset removes every record file and clears the index
func (r *LocalRepository) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dir != "" {
		files, err := filepath.Glob(filepath.Join(r.dir, "*"+recordExt))
		if err != nil {
			return goerr.Wrap(err, "list memory records", goerr.V("dir", r.dir))
		}
		for _, path := range files {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return goerr.Wrap(err, "remove memory record", goerr.V("path", path))
			}
		}
	}

	r.records = make(map[string]model.MemoryRecord)
	return nil
}

// Len returns the number of loaded records
func (r *LocalRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Close is a no-op; every record is flushed on Create
func (r *LocalRepository) Close() error {
	return nil
}

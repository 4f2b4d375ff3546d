package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/model"
)

// DefaultTopK is the number of past fact checks returned by Query
const DefaultTopK = 3

// NoResults is the formatted value of an empty query result
const NoResults = "No relevant past fact-checks found."

const maxRenameAttempts = 3

// maxNearestLimit caps a single Nearest call; Firestore rejects larger limits
const maxNearestLimit = 1000

// Metadata describes the source a judgment came from
type Metadata struct {
	URL   string
	Title string
}

// Store is the process-wide memory handle. It is safe for concurrent use
// as long as its Repository is.
type Store struct {
	repo     Repository
	embedder llm.Embedder
	topK     int
	now      func() time.Time
}

// NewStore creates a Store on top of repo. Claims are embedded with embedder.
func NewStore(repo Repository, embedder llm.Embedder, topK int) *Store {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Store{
		repo:     repo,
		embedder: embedder,
		topK:     topK,
		now:      time.Now,
	}
}

// Open creates the repository selected by cfg.Backend ("local", "memory"
// or "firestore") and wraps it in a Store.
func Open(ctx context.Context, cfg model.MemoryConfig, embedder llm.Embedder) (*Store, error) {
	var (
		repo Repository
		err  error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		repo, err = OpenLocal(ctx, cfg.Dir)
	case "memory":
		repo, err = OpenLocal(ctx, "")
	case "firestore":
		repo, err = NewFirestoreRepository(ctx, cfg.ProjectID, cfg.DatabaseID, cfg.Collection)
	default:
		return nil, goerr.New("unknown memory backend: "+cfg.Backend, goerr.V("backend", cfg.Backend))
	}
	if err != nil {
		return nil, err
	}
	return NewStore(repo, embedder, cfg.TopK), nil
}

// ContentID is the deterministic id of a claim/summary pair: the SHA-256
// of the normalized claim and summary.
func ContentID(claim, summary string) string {
	h := sha256.New()
	h.Write([]byte(normalize(claim)))
	h.Write([]byte{0})
	h.Write([]byte(normalize(summary)))
	return hex.EncodeToString(h.Sum(nil))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Insert stores a judgment and returns its id. The id is ContentID(claim,
// summary); when that id is already taken a random suffix is appended, so
// repeated inserts keep every earlier record.
func (s *Store) Insert(ctx context.Context, claim string, verdict model.Verdict, summary string, meta Metadata) (string, error) {
	vectors, err := s.embedder.Embed(ctx, []string{claim})
	if err != nil {
		return "", goerr.Wrap(err, "embed claim")
	}
	if len(vectors) != 1 {
		return "", goerr.New("embedder returned no vector")
	}

	base := ContentID(claim, summary)
	rec := model.MemoryRecord{
		ID:        base,
		Claim:     claim,
		Verdict:   verdict,
		Summary:   summary,
		URL:       meta.URL,
		Title:     meta.Title,
		Embedding: vectors[0],
		CreatedAt: s.now().UTC(),
	}

	for attempt := 0; ; attempt++ {
		err := s.repo.Create(ctx, rec)
		if err == nil {
			return rec.ID, nil
		}
		if !errors.Is(err, ErrAlreadyExists) || attempt >= maxRenameAttempts {
			return "", goerr.Wrap(err, "insert memory record", goerr.V("id", rec.ID))
		}
		rec.ID = base + "-" + uuid.NewString()
		logging.From(ctx).Debug("memory id taken, renaming", "base", base, "id", rec.ID)
	}
}

// Get returns a stored record by id
func (s *Store) Get(ctx context.Context, id string) (*model.MemoryRecord, error) {
	return s.repo.Get(ctx, id)
}

// Query returns up to topK records nearest to claim, one per distinct
// claim/summary pair, nearest first. Errors are logged and yield an empty,
// non-nil result. topK <= 0 uses the store default.
func (s *Store) Query(ctx context.Context, claim string, topK int) []model.MemoryMatch {
	if topK <= 0 {
		topK = s.topK
	}
	logger := logging.From(ctx)

	vectors, err := s.embedder.Embed(ctx, []string{claim})
	if err != nil || len(vectors) != 1 {
		logger.Warn("memory query: embed failed", "error", err)
		return []model.MemoryMatch{}
	}

	// duplicates share a content id, so widen the window until topK
	// distinct pairs are found or the repository runs out
	limit := topK * 3
	for {
		candidates, err := s.repo.Nearest(ctx, vectors[0], limit)
		if err != nil {
			logger.Warn("memory query failed", "error", err)
			return []model.MemoryMatch{}
		}

		results := dedupe(candidates, topK)
		if len(results) >= topK || len(candidates) < limit || limit >= maxNearestLimit {
			return results
		}
		limit = min(limit*2, maxNearestLimit)
	}
}

func dedupe(candidates []model.MemoryMatch, topK int) []model.MemoryMatch {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})

	seen := make(map[string]bool, len(candidates))
	results := make([]model.MemoryMatch, 0, topK)
	for _, m := range candidates {
		key := ContentID(m.Record.Claim, m.Record.Summary)
		if seen[key] {
			continue
		}
		seen[key] = true
		m.Record.Embedding = nil
		results = append(results, m)
		if len(results) == topK {
			break
		}
	}
	return results
}

// Reset deletes every stored record
func (s *Store) Reset(ctx context.Context) error {
	if err := s.repo.Reset(ctx); err != nil {
		return goerr.Wrap(err, "reset memory")
	}
	return nil
}

// Close releases the repository
func (s *Store) Close() error {
	return s.repo.Close()
}

// Format renders matches as "[PAST]" blocks separated by blank lines, or
// NoResults when there are none.
func Format(matches []model.MemoryMatch) string {
	if len(matches) == 0 {
		return NoResults
	}

	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, "[PAST] Claim: "+m.Record.Claim+
			"\nVerdict: "+string(m.Record.Verdict)+
			"\nSummary: "+m.Record.Summary)
	}
	return strings.Join(blocks, "\n\n")
}

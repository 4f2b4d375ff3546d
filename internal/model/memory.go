package model

import "time"

// MemoryRecord is a past judgment stored for similarity retrieval
type MemoryRecord struct {
	ID        string    `json:"id"`
	Claim     string    `json:"claim"`
	Verdict   Verdict   `json:"verdict"`
	Summary   string    `json:"summary"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryMatch is a record returned by a similarity query.
// Distance is cosine distance; lower is nearer.
type MemoryMatch struct {
	Record   MemoryRecord `json:"record"`
	Distance float64      `json:"distance"`
}

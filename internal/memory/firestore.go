package memory

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const distanceField = "Distance"

// memoryDoc is the Firestore representation of a record.
// Embedding is stored as firestore.Vector32 so that FindNearest works.
type memoryDoc struct {
	ID        string             `firestore:"ID"`
	Claim     string             `firestore:"Claim"`
	Verdict   string             `firestore:"Verdict"`
	Summary   string             `firestore:"Summary"`
	URL       string             `firestore:"URL"`
	Title     string             `firestore:"Title"`
	Embedding firestore.Vector32 `firestore:"Embedding,omitempty"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
	Distance  float64            `firestore:"Distance,omitempty"`
}

func toMemoryDoc(rec model.MemoryRecord) *memoryDoc {
	doc := &memoryDoc{
		ID:        rec.ID,
		Claim:     rec.Claim,
		Verdict:   string(rec.Verdict),
		Summary:   rec.Summary,
		URL:       rec.URL,
		Title:     rec.Title,
		CreatedAt: rec.CreatedAt,
	}
	if len(rec.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(rec.Embedding)
	}
	return doc
}

func fromMemoryDoc(d *memoryDoc) model.MemoryRecord {
	rec := model.MemoryRecord{
		ID:        d.ID,
		Claim:     d.Claim,
		Verdict:   model.Verdict(d.Verdict),
		Summary:   d.Summary,
		URL:       d.URL,
		Title:     d.Title,
		CreatedAt: d.CreatedAt,
	}
	if len(d.Embedding) > 0 {
		rec.Embedding = []float32(d.Embedding)
	}
	return rec
}

// FirestoreRepository stores records in a Firestore collection and uses
// vector search for similarity queries. The collection needs a vector
// index on Embedding with the configured dimension.
type FirestoreRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreRepository connects to projectID. An empty databaseID uses
// the default database.
func NewFirestoreRepository(ctx context.Context, projectID, databaseID, collection string) (*FirestoreRepository, error) {
	if projectID == "" {
		return nil, goerr.New("firestore project id is required")
	}
	if collection == "" {
		collection = "fact_checks"
	}

	var (
		client *firestore.Client
		err    error
	)
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	return &FirestoreRepository{client: client, collection: collection}, nil
}

func (r *FirestoreRepository) records() *firestore.CollectionRef {
	return r.client.Collection(r.collection)
}

// Create uses a Firestore create precondition so an existing id is never overwritten
func (r *FirestoreRepository) Create(ctx context.Context, rec model.MemoryRecord) error {
	if _, err := r.records().Doc(rec.ID).Create(ctx, toMemoryDoc(rec)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return goerr.Wrap(ErrAlreadyExists, "create memory record", goerr.V("id", rec.ID))
		}
		return goerr.Wrap(err, "failed to create memory record", goerr.V("id", rec.ID))
	}
	return nil
}

func (r *FirestoreRepository) Get(ctx context.Context, id string) (*model.MemoryRecord, error) {
	doc, err := r.records().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "memory record not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get memory record", goerr.V("id", id))
	}

	var d memoryDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory record", goerr.V("id", id))
	}

	rec := fromMemoryDoc(&d)
	return &rec, nil
}

func (r *FirestoreRepository) Nearest(ctx context.Context, embedding []float32, limit int) ([]model.MemoryMatch, error) {
	if limit <= 0 {
		return []model.MemoryMatch{}, nil
	}

	vq := r.records().FindNearest("Embedding", firestore.Vector32(embedding), limit,
		firestore.DistanceMeasureCosine, &firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	matches := make([]model.MemoryMatch, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory vector search results")
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory from vector search")
		}

		matches = append(matches, model.MemoryMatch{Record: fromMemoryDoc(&d), Distance: d.Distance})
	}

	return matches, nil
}

// Reset deletes every document in the collection
func (r *FirestoreRepository) Reset(ctx context.Context) error {
	iter := r.records().Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to iterate memory records")
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue memory delete", goerr.V("id", doc.Ref.ID))
		}
	}
	bw.End()
	return nil
}

func (r *FirestoreRepository) Close() error {
	if err := r.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}

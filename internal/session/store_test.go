package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/session"
)

func TestStore_CreateIsUnique(t *testing.T) {
	store := session.New()

	seen := make(map[string]bool)
	for range 100 {
		id := store.Create()
		gt.B(t, seen[id]).False()
		seen[id] = true
	}
	gt.V(t, store.Len()).Equal(100)
}

func TestStore_ClaimAndHistory(t *testing.T) {
	store := session.New()
	id := store.Create()

	gt.NoError(t, store.SetClaim(id, "The Earth is flat")).Required()
	gt.NoError(t, store.Append(id,
		model.Message{Role: model.RoleUser, Content: "The Earth is flat"},
		model.Message{Role: model.RoleAssistant, Content: "Refutes"},
	)).Required()

	sess, ok := store.Get(id)
	gt.B(t, ok).True()
	gt.V(t, sess.Claim).Equal("The Earth is flat")
	gt.A(t, sess.History).Length(2)
	gt.V(t, sess.OriginalClaim()).Equal("The Earth is flat")
	gt.V(t, sess.History[1].Role).Equal(model.RoleAssistant)

	// the copy is detached from the store
	sess.History[0].Content = "changed"
	again, _ := store.Get(id)
	gt.V(t, again.History[0].Content).Equal("The Earth is flat")
}

func TestStore_UnknownSession(t *testing.T) {
	store := session.New()

	sess, ok := store.Get("does-not-exist")
	gt.B(t, ok).False()
	gt.V(t, sess.ID).Equal("does-not-exist")
	gt.A(t, sess.History).Length(0)
	gt.V(t, sess.OriginalClaim()).Equal("unknown claim")

	gt.Error(t, store.Append("does-not-exist", model.Message{Role: model.RoleUser, Content: "hi"})).Is(session.ErrNotFound)
	gt.Error(t, store.SetClaim("does-not-exist", "claim")).Is(session.ErrNotFound)
}

func TestStore_Ensure(t *testing.T) {
	store := session.New()

	id, created := store.Ensure("")
	gt.B(t, created).True()
	gt.True(t, id != "")

	same, created := store.Ensure(id)
	gt.B(t, created).False()
	gt.V(t, same).Equal(id)

	clientID, created := store.Ensure("client-chosen-id")
	gt.B(t, created).True()
	gt.V(t, clientID).Equal("client-chosen-id")
	_, ok := store.Get("client-chosen-id")
	gt.B(t, ok).True()
}

func TestStore_ConcurrentAppendsAreSerialized(t *testing.T) {
	store := session.New()
	id := store.Create()

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				// pairs must stay adjacent
				_ = store.Append(id,
					model.Message{Role: model.RoleUser, Content: string(rune('a' + w))},
					model.Message{Role: model.RoleAssistant, Content: string(rune('a'+w)) + "!"},
				)
			}
		}()
	}
	wg.Wait()

	sess, _ := store.Get(id)
	gt.A(t, sess.History).Length(writers * perWriter * 2)
	for i := 0; i < len(sess.History); i += 2 {
		gt.V(t, sess.History[i+1].Content).Equal(sess.History[i].Content + "!")
	}
}

func TestStore_EvictsLeastRecentlyAccessed(t *testing.T) {
	var (
		mu      sync.Mutex
		expired []string
	)
	store := session.New(
		session.WithMaxSessions(2),
		session.WithOnExpire(func(s model.Session) {
			mu.Lock()
			defer mu.Unlock()
			expired = append(expired, s.ID)
		}),
	)

	first := store.Create()
	time.Sleep(2 * time.Millisecond)
	second := store.Create()
	time.Sleep(2 * time.Millisecond)

	// touching first makes second the oldest
	_, ok := store.Get(first)
	gt.B(t, ok).True()
	time.Sleep(2 * time.Millisecond)

	third := store.Create()

	_, ok = store.Get(second)
	gt.B(t, ok).False()
	_, ok = store.Get(first)
	gt.B(t, ok).True()
	_, ok = store.Get(third)
	gt.B(t, ok).True()

	mu.Lock()
	defer mu.Unlock()
	gt.A(t, expired).Length(1)
	gt.V(t, expired[0]).Equal(second)
}

func TestStore_TTLExpiry(t *testing.T) {
	done := make(chan model.Session, 1)
	store := session.New(
		session.WithTTL(30*time.Millisecond),
		session.WithCleanupInterval(10*time.Millisecond),
		session.WithOnExpire(func(s model.Session) { done <- s }),
	)

	id := store.Create()
	gt.NoError(t, store.SetClaim(id, "short lived")).Required()

	select {
	case s := <-done:
		gt.V(t, s.ID).Equal(id)
		gt.V(t, s.Claim).Equal("short lived")
	case <-time.After(2 * time.Second):
		t.Fatal("session did not expire")
	}

	_, ok := store.Get(id)
	gt.B(t, ok).False()
}

func TestStore_Delete(t *testing.T) {
	store := session.New()
	id := store.Create()
	store.Delete(id)

	_, ok := store.Get(id)
	gt.B(t, ok).False()
}

func TestStore_DeleteDuringAccessDoesNotResurrect(t *testing.T) {
	for range 20 {
		var (
			mu      sync.Mutex
			expired int
		)
		store := session.New(session.WithOnExpire(func(model.Session) {
			mu.Lock()
			defer mu.Unlock()
			expired++
		}))
		id := store.Create()

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 200 {
					_ = store.Append(id, model.Message{Role: model.RoleUser, Content: "hi"})
				}
			}()
		}
		store.Delete(id)
		wg.Wait()

		_, ok := store.Get(id)
		gt.B(t, ok).False()
		gt.V(t, store.Len()).Equal(0)
		mu.Lock()
		gt.V(t, expired).Equal(1)
		mu.Unlock()
	}
}

func TestNewFromConfig(t *testing.T) {
	store := session.NewFromConfig(model.SessionConfig{MaxSessions: 1})
	a := store.Create()
	b := store.Create()

	_, ok := store.Get(a)
	gt.B(t, ok).False()
	_, ok = store.Get(b)
	gt.B(t, ok).True()
}

package queue

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/internal/realtime"
	"github.com/expertlive/backend/pkg/apperr"
)

// fakeStore is an in-memory Store mirroring the repository's position
// semantics: position is the count of pending entries with a smaller seq.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*models.Spectator
	nextSeq int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*models.Spectator)}
}

func (f *fakeStore) Insert(_ context.Context, s *models.Spectator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSeq++
	s.ID = uuid.New()
	s.Seq = f.nextSeq
	s.CreatedAt = time.Now()
	cp := *s
	f.entries[s.SpectatorID] = &cp
	return nil
}

func (f *fakeStore) GetBySpectatorID(_ context.Context, sessionID uuid.UUID, spectatorID string) (*models.Spectator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.entries[spectatorID]
	if !ok || s.SessionID != sessionID {
		return nil, apperr.NotFound("spectator_not_found", "spectator not found")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []models.QueueEntry
	for _, s := range f.entries {
		if s.SessionID != sessionID {
			continue
		}
		list = append(list, models.QueueEntry{Spectator: *s, Position: f.pendingBefore(sessionID, s.Seq)})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
	return list, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, sessionID uuid.UUID, spectatorID string, status models.SpectatorStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.entries[spectatorID]
	if !ok || s.SessionID != sessionID {
		return apperr.NotFound("spectator_not_found", "spectator not found")
	}
	s.Status = status
	return nil
}

func (f *fakeStore) Delete(_ context.Context, sessionID uuid.UUID, spectatorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.entries[spectatorID]
	if !ok || s.SessionID != sessionID {
		return apperr.NotFound("spectator_not_found", "spectator not found")
	}
	delete(f.entries, spectatorID)
	return nil
}

func (f *fakeStore) CountPendingBefore(_ context.Context, sessionID uuid.UUID, seq int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingBefore(sessionID, seq), nil
}

func (f *fakeStore) CountPending(_ context.Context, sessionID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.entries {
		if s.SessionID == sessionID && s.Status == models.SpectatorPending {
			n++
		}
	}
	return n, nil
}

// pendingBefore is called with f.mu held.
func (f *fakeStore) pendingBefore(sessionID uuid.UUID, seq int64) int {
	n := 0
	for _, s := range f.entries {
		if s.SessionID == sessionID && s.Status == models.SpectatorPending && s.Seq < seq {
			n++
		}
	}
	return n
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
}

func (f *fakeSessions) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session_not_found", "session not found")
	}
	cp := *s
	return &cp, nil
}

type recordingHub struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (h *recordingHub) Publish(_ uuid.UUID, ev realtime.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *recordingHub) byName(name string) []realtime.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []realtime.Event
	for _, ev := range h.events {
		if ev.Name() == name {
			out = append(out, ev)
		}
	}
	return out
}

func newTestEngine(status models.SessionStatus) (*Engine, uuid.UUID, *fakeStore, *recordingHub) {
	sessionID := uuid.New()
	store := newFakeStore()
	hub := &recordingHub{}
	src := &fakeSessions{sessions: map[uuid.UUID]*models.Session{
		sessionID: {ID: sessionID, Status: status, StreamKey: "session_abc"},
	}}
	return NewEngine(store, src, hub, nil), sessionID, store, hub
}

func TestJoinAssignsArrivalPositions(t *testing.T) {
	engine, sessionID, _, _ := newTestEngine(models.SessionLive)
	ctx := context.Background()

	a, err := engine.Join(ctx, sessionID, "")
	require.NoError(t, err)
	b, err := engine.Join(ctx, sessionID, "")
	require.NoError(t, err)
	c, err := engine.Join(ctx, sessionID, "")
	require.NoError(t, err)

	assert.Equal(t, 0, a.Position)
	assert.Equal(t, 1, b.Position)
	assert.Equal(t, 2, c.Position)
	assert.NotEqual(t, a.SpectatorID, b.SpectatorID)
	assert.NotEqual(t, a.StreamKey, b.StreamKey)
}

func TestApproveAdvancesThoseBehind(t *testing.T) {
	engine, sessionID, _, hub := newTestEngine(models.SessionLive)
	ctx := context.Background()

	a, _ := engine.Join(ctx, sessionID, "")
	b, _ := engine.Join(ctx, sessionID, "")
	c, _ := engine.Join(ctx, sessionID, "")

	require.NoError(t, engine.Approve(ctx, sessionID, b.SpectatorID))

	list, err := engine.List(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	byID := map[string]models.QueueEntry{}
	for _, e := range list {
		byID[e.SpectatorID] = e
	}
	assert.Equal(t, models.SpectatorApproved, byID[b.SpectatorID].Status)
	assert.Equal(t, 0, byID[a.SpectatorID].Position)
	assert.Equal(t, 1, byID[c.SpectatorID].Position, "approving B leaves only A ahead of C")

	approved := hub.byName("spectator_approved")
	require.Len(t, approved, 1)
	ev := approved[0].(realtime.SpectatorApproved)
	assert.Equal(t, b.SpectatorID, ev.SpectatorID)
	assert.Equal(t, b.StreamKey, ev.StreamKey)
}

func TestJoinRejoinsWithExistingToken(t *testing.T) {
	engine, sessionID, store, _ := newTestEngine(models.SessionLive)
	ctx := context.Background()

	first, err := engine.Join(ctx, sessionID, "")
	require.NoError(t, err)

	again, err := engine.Join(ctx, sessionID, first.SpectatorID)
	require.NoError(t, err)
	assert.Equal(t, first.SpectatorID, again.SpectatorID)
	assert.Equal(t, first.Seq, again.Seq)

	n, _ := store.CountPending(ctx, sessionID)
	assert.Equal(t, 1, n, "rejoin must not create a second entry")
}

func TestJoinStaleTokenCreatesFreshEntry(t *testing.T) {
	engine, sessionID, _, _ := newTestEngine(models.SessionLive)
	ctx := context.Background()

	entry, err := engine.Join(ctx, sessionID, "spectator_deadbeef")
	require.NoError(t, err)
	assert.NotEqual(t, "spectator_deadbeef", entry.SpectatorID)
	assert.Equal(t, models.SpectatorPending, entry.Status)
}

func TestJoinRequiresLiveSession(t *testing.T) {
	for _, status := range []models.SessionStatus{models.SessionScheduled, models.SessionEnded} {
		engine, sessionID, _, _ := newTestEngine(status)
		_, err := engine.Join(context.Background(), sessionID, "")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindInvalidState), "status %s", status)
	}
}

func TestJoinUnknownSession(t *testing.T) {
	engine, _, _, _ := newTestEngine(models.SessionLive)
	_, err := engine.Join(context.Background(), uuid.New(), "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRejectDeletesEntry(t *testing.T) {
	engine, sessionID, _, hub := newTestEngine(models.SessionLive)
	ctx := context.Background()

	entry, _ := engine.Join(ctx, sessionID, "")
	require.NoError(t, engine.Reject(ctx, sessionID, entry.SpectatorID))

	_, err := engine.Get(ctx, sessionID, entry.SpectatorID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = engine.Reject(ctx, sessionID, entry.SpectatorID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "second reject must fail")

	updates := hub.byName("queue_updated")
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1].(realtime.QueueUpdated)
	assert.Equal(t, string(models.SpectatorRejected), last.Status)
	assert.Len(t, hub.byName("spectator_stream_stopped"), 1)
}

func TestStopEndsApprovedSpectator(t *testing.T) {
	engine, sessionID, _, hub := newTestEngine(models.SessionLive)
	ctx := context.Background()

	entry, _ := engine.Join(ctx, sessionID, "")
	require.NoError(t, engine.Approve(ctx, sessionID, entry.SpectatorID))
	require.NoError(t, engine.Stop(ctx, sessionID, entry.SpectatorID))

	_, err := engine.Get(ctx, sessionID, entry.SpectatorID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Len(t, hub.byName("spectator_stream_stopped"), 1)
}

func TestConcurrentJoinsKeepUniqueOrder(t *testing.T) {
	engine, sessionID, store, _ := newTestEngine(models.SessionLive)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Join(ctx, sessionID, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := engine.List(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, list, n)

	seen := map[int64]bool{}
	for i, e := range list {
		assert.False(t, seen[e.Seq], "duplicate seq %d", e.Seq)
		seen[e.Seq] = true
		assert.Equal(t, i, e.Position)
	}
	pending, _ := store.CountPending(ctx, sessionID)
	assert.Equal(t, n, pending)
}

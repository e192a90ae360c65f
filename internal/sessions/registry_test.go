package sessions

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/internal/realtime"
	"github.com/expertlive/backend/pkg/apperr"
)

// fakeSessionStore enforces the single-live invariant the way the database
// partial unique index does: the check and the write happen atomically.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
}

func newFakeSessionStore(sessions ...*models.Session) *fakeSessionStore {
	f := &fakeSessionStore{sessions: make(map[uuid.UUID]*models.Session)}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session_not_found", "session not found")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) SetStatus(_ context.Context, id uuid.UUID, status models.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return apperr.NotFound("session_not_found", "session not found")
	}
	if status == models.SessionLive {
		for _, other := range f.sessions {
			if other.ID != id && other.Status == models.SessionLive {
				return apperr.Conflict("session_already_live", "another session is already live")
			}
		}
	}
	s.Status = status
	return nil
}

func (f *fakeSessionStore) CountLive(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.Status == models.SessionLive {
			n++
		}
	}
	return n, nil
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

func TestStartMakesSessionLive(t *testing.T) {
	sess := &models.Session{ID: uuid.New(), Status: models.SessionScheduled}
	store := newFakeSessionStore(sess)
	hub := &recordingHub{}
	reg := NewRegistry(store, hub, nil)

	require.NoError(t, reg.Start(context.Background(), sess.ID))

	got, _ := store.GetByID(context.Background(), sess.ID)
	assert.Equal(t, models.SessionLive, got.Status)
	require.Len(t, hub.events, 1)
	ev := hub.events[0].(realtime.SessionStatusChanged)
	assert.Equal(t, string(models.SessionLive), ev.Status)
}

func TestStartIsIdempotentWhenAlreadyLive(t *testing.T) {
	sess := &models.Session{ID: uuid.New(), Status: models.SessionLive}
	store := newFakeSessionStore(sess)
	hub := &recordingHub{}
	reg := NewRegistry(store, hub, nil)

	require.NoError(t, reg.Start(context.Background(), sess.ID))
	assert.Empty(t, hub.events, "restart of the live session must not re-announce")
}

func TestStartRejectsEndedSession(t *testing.T) {
	sess := &models.Session{ID: uuid.New(), Status: models.SessionEnded}
	reg := NewRegistry(newFakeSessionStore(sess), &recordingHub{}, nil)

	err := reg.Start(context.Background(), sess.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestStartConflictsWithOtherLiveSession(t *testing.T) {
	live := &models.Session{ID: uuid.New(), Status: models.SessionLive}
	queued := &models.Session{ID: uuid.New(), Status: models.SessionScheduled}
	reg := NewRegistry(newFakeSessionStore(live, queued), &recordingHub{}, nil)

	err := reg.Start(context.Background(), queued.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestConcurrentStartsAdmitExactlyOne(t *testing.T) {
	store := newFakeSessionStore()
	var ids []uuid.UUID
	for i := 0; i < 8; i++ {
		s := &models.Session{ID: uuid.New(), Status: models.SessionScheduled}
		store.sessions[s.ID] = s
		ids = append(ids, s.ID)
	}
	reg := NewRegistry(store, &recordingHub{}, nil)

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			errs[i] = reg.Start(context.Background(), id)
		}(i, id)
	}
	wg.Wait()

	okCount := 0
	for _, err := range errs {
		if err == nil {
			okCount++
		} else {
			assert.True(t, apperr.Is(err, apperr.KindConflict))
		}
	}
	assert.Equal(t, 1, okCount)

	live, _ := store.CountLive(context.Background())
	assert.Equal(t, 1, live)
}

func TestStopEndsSession(t *testing.T) {
	sess := &models.Session{ID: uuid.New(), Status: models.SessionLive}
	store := newFakeSessionStore(sess)
	hub := &recordingHub{}
	reg := NewRegistry(store, hub, nil)

	require.NoError(t, reg.Stop(context.Background(), sess.ID))

	got, _ := store.GetByID(context.Background(), sess.ID)
	assert.Equal(t, models.SessionEnded, got.Status)
	require.Len(t, hub.events, 1)
}

func TestCanModerate(t *testing.T) {
	owner := uuid.New()
	sess := &models.Session{ID: uuid.New(), OwnerID: owner}

	assert.True(t, CanModerate(sess, owner, models.RoleExpert))
	assert.True(t, CanModerate(sess, uuid.New(), models.RoleAdmin))
	assert.False(t, CanModerate(sess, uuid.New(), models.RoleExpert))
}

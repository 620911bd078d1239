package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amnofal/amar-ai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository for controller tests.
type memRepo struct {
	mu       sync.Mutex
	states   map[string]*domain.UserState
	sessions map[string][]*domain.ChatSession // userID -> front-first list
}

func newMemRepo() *memRepo {
	return &memRepo{
		states:   make(map[string]*domain.UserState),
		sessions: make(map[string][]*domain.ChatSession),
	}
}

func (m *memRepo) GetUserState(_ context.Context, userID string) (*domain.UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[userID]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (m *memRepo) UpsertUserState(_ context.Context, state *domain.UserState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.states[state.UserID] = &copied
	return nil
}

func (m *memRepo) ListSessions(_ context.Context, userID string) ([]*domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ChatSession(nil), m.sessions[userID]...), nil
}

func (m *memRepo) GetSession(_ context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions[userID] {
		if s.ID == sessionID {
			copied := *s
			copied.Messages = append([]domain.Message(nil), s.Messages...)
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memRepo) SaveSession(_ context.Context, userID string, session *domain.ChatSession) error {
	if len(session.Messages) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session.Preview = domain.PreviewText(session.Messages)
	copied := *session
	copied.Messages = append([]domain.Message(nil), session.Messages...)
	for i, s := range m.sessions[userID] {
		if s.ID == session.ID {
			m.sessions[userID][i] = &copied
			return nil
		}
	}
	m.sessions[userID] = append([]*domain.ChatSession{&copied}, m.sessions[userID]...)
	return nil
}

func (m *memRepo) DeleteSession(_ context.Context, userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.sessions[userID]
	for i, s := range list {
		if s.ID == sessionID {
			m.sessions[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memRepo) Ping(context.Context) error { return nil }
func (m *memRepo) Close() error               { return nil }

// stubRouter returns a fixed reply or error, optionally blocking until
// released to exercise the in-flight guard.
type stubRouter struct {
	mu       sync.Mutex
	reply    Reply
	err      error
	calls    int
	lastTurn Turn
	block    chan struct{} // when non-nil, Send waits on it
}

func (r *stubRouter) Send(_ context.Context, turn Turn) (Reply, error) {
	r.mu.Lock()
	r.calls++
	r.lastTurn = turn
	block := r.block
	r.mu.Unlock()
	if block != nil {
		<-block
	}
	if r.err != nil {
		return Reply{}, r.err
	}
	return r.reply, nil
}

func (r *stubRouter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestService(repo *memRepo, router TurnSender) *Service {
	return NewService(repo, router, nil, Options{FreeMessageLimit: 5, HistoryWindow: 10})
}

func TestSendRejectsEmptyTurn(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemRepo(), &stubRouter{})
	_, err := svc.Send(context.Background(), "anon_1", SendRequest{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyTurn)
}

func TestSendAppendsBothMessagesAndPersists(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	router := &stubRouter{reply: Reply{Text: "اهلا بيك"}}
	svc := newTestService(repo, router)

	res, err := svc.Send(context.Background(), "anon_1", SendRequest{Text: "اهلا"})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleUser, res.UserMessage.Role)
	assert.Equal(t, "اهلا", res.UserMessage.Text)
	assert.Equal(t, domain.RoleModel, res.ModelMessage.Role)
	assert.Equal(t, "اهلا بيك", res.ModelMessage.Text)
	assert.False(t, res.ModelMessage.IsError)
	assert.NotEqual(t, res.UserMessage.ID, res.ModelMessage.ID)

	sessions, err := repo.ListSessions(context.Background(), "anon_1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Len(t, sessions[0].Messages, 2)
	assert.Equal(t, domain.DefaultSessionTitle, sessions[0].Title)
	assert.Equal(t, "اهلا بيك...", sessions[0].Preview)
}

func TestSendQuotaScenario(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	router := &stubRouter{reply: Reply{Text: "ok"}}
	svc := newTestService(repo, router)
	ctx := context.Background()

	// Five free sends succeed and move the counter.
	var sessionID string
	for i := 0; i < 5; i++ {
		res, err := svc.Send(ctx, "anon_1", SendRequest{SessionID: sessionID, Text: "msg"})
		require.NoError(t, err)
		sessionID = res.Session.ID
	}

	state, err := repo.GetUserState(ctx, "anon_1")
	require.NoError(t, err)
	assert.Equal(t, 5, state.MessageCount)

	// The sixth attempt is blocked: no message appended, counter untouched.
	_, err = svc.Send(ctx, "anon_1", SendRequest{SessionID: sessionID, Text: "msg 6"})
	assert.ErrorIs(t, err, ErrLoginRequired)

	state, err = repo.GetUserState(ctx, "anon_1")
	require.NoError(t, err)
	assert.Equal(t, 5, state.MessageCount)

	session, err := repo.GetSession(ctx, "anon_1", sessionID)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 10, "blocked attempt must not append")
	assert.Equal(t, 5, router.callCount())

	// Logging in unblocks without touching the counter.
	require.NoError(t, state.Login("", "0106605"))
	require.NoError(t, repo.UpsertUserState(ctx, state))

	_, err = svc.Send(ctx, "anon_1", SendRequest{SessionID: sessionID, Text: "msg 6"})
	require.NoError(t, err)

	state, err = repo.GetUserState(ctx, "anon_1")
	require.NoError(t, err)
	assert.Equal(t, 5, state.MessageCount, "authenticated sends must not increment")
}

func TestSendAPIFailureAppendsApology(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	svc := newTestService(repo, &stubRouter{err: errors.New("transport down")})

	res, err := svc.Send(context.Background(), "anon_1", SendRequest{Text: "hi"})
	require.NoError(t, err, "an API failure is presented, not returned")

	assert.True(t, res.ModelMessage.IsError)
	assert.Equal(t, ApologyText, res.ModelMessage.Text)

	// The failed turn is persisted with both messages, and the
	// conversation stays usable.
	session, err := repo.GetSession(context.Background(), "anon_1", res.Session.ID)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 2)

	res2, err := svc.Send(context.Background(), "anon_1", SendRequest{SessionID: res.Session.ID, Text: "again"})
	require.NoError(t, err)
	assert.Len(t, res2.Session.Messages, 4)
}

func TestSendSecondSubmissionWhileInFlightIsRefused(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	router := &stubRouter{reply: Reply{Text: "ok"}, block: make(chan struct{})}
	svc := newTestService(repo, router)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Send(context.Background(), "anon_1", SendRequest{Text: "first"})
		firstDone <- err
	}()

	// Wait until the first submission reaches the router.
	for router.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	_, err := svc.Send(context.Background(), "anon_1", SendRequest{Text: "second"})
	assert.ErrorIs(t, err, ErrBusy)

	close(router.block)
	require.NoError(t, <-firstDone)

	// After the first completes, the device can send again.
	router.block = nil
	_, err = svc.Send(context.Background(), "anon_1", SendRequest{Text: "third"})
	require.NoError(t, err)
}

func TestSendHistoryExcludesCurrentTurnAndIsCapped(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	router := &stubRouter{reply: Reply{Text: "r"}}
	svc := NewService(repo, router, nil, Options{FreeMessageLimit: 100, HistoryWindow: 4})
	ctx := context.Background()

	var sessionID string
	for i := 0; i < 5; i++ {
		res, err := svc.Send(ctx, "anon_1", SendRequest{SessionID: sessionID, Text: "turn"})
		require.NoError(t, err)
		sessionID = res.Session.ID
	}

	// Before the 5th send the session held 8 messages; the window caps the
	// history at 4 and the current turn is not part of it.
	router.mu.Lock()
	defer router.mu.Unlock()
	assert.Len(t, router.lastTurn.History, 4)
}

func TestSendEmptyTextWithImageUsesAnalysisPrompt(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	router := &stubRouter{reply: Reply{Text: "صورة حلوة"}}
	svc := newTestService(repo, router)

	res, err := svc.Send(context.Background(), "anon_1", SendRequest{Image: "data:image/jpeg;base64,PIC"})
	require.NoError(t, err)

	router.mu.Lock()
	assert.Equal(t, DefaultAnalysisPrompt, router.lastTurn.Text)
	router.mu.Unlock()

	// The stored user message keeps its empty text; the substitution is
	// only for the model.
	assert.Empty(t, res.UserMessage.Text)
	assert.NotEmpty(t, res.UserMessage.Image)
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	svc := newTestService(repo, &stubRouter{reply: Reply{Text: "ok"}})
	ctx := context.Background()

	res, err := svc.Send(ctx, "anon_1", SendRequest{Text: "hello"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(ctx, "anon_1", res.Session.ID))

	sessions, err := svc.Sessions(ctx, "anon_1")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// A replacement id is always distinct.
	assert.NotEqual(t, res.Session.ID, svc.NewSessionID())
}

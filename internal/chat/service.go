package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amnofal/amar-ai/internal/domain"
	"github.com/amnofal/amar-ai/internal/store"
	"github.com/google/uuid"
)

// Sentinel errors surfaced to the API layer.
var (
	// ErrEmptyTurn is returned when a turn carries neither text nor image.
	ErrEmptyTurn = errors.New("turn has no text and no image")
	// ErrBusy is returned when a submission arrives while another one for
	// the same device is still in flight. The second attempt is refused,
	// not queued.
	ErrBusy = errors.New("a message is already in flight")
	// ErrLoginRequired signals the quota gate: the free-message ceiling is
	// reached and the user must authenticate before sending more.
	ErrLoginRequired = errors.New("free message limit reached, login required")
)

// TurnSender is the router dependency of the service.
type TurnSender interface {
	Send(ctx context.Context, turn Turn) (Reply, error)
}

// Options configures a Service.
type Options struct {
	FreeMessageLimit int
	HistoryWindow    int
}

// Service orchestrates turn submission: quota gate, optimistic append of the
// user message, the Gemini round-trip, and the append of the result or a
// fallback error message. Session and user state writes go through the
// repository as one explicit unit with each mutation.
type Service struct {
	repo       store.Repository
	router     TurnSender
	transcript *TranscriptLogger
	opts       Options

	mu       sync.Mutex
	inFlight map[string]bool // userID -> submission pending
}

// NewService creates the conversation service. transcript may be nil.
func NewService(repo store.Repository, router TurnSender, transcript *TranscriptLogger, opts Options) *Service {
	return &Service{
		repo:       repo,
		router:     router,
		transcript: transcript,
		opts:       opts,
		inFlight:   make(map[string]bool),
	}
}

// SendRequest is one submitted turn.
type SendRequest struct {
	SessionID string // empty mints a fresh session id
	Text      string
	Image     string // base64 data URI
}

// SendResult is the outcome of an accepted turn.
type SendResult struct {
	Session      *domain.ChatSession `json:"session"`
	UserMessage  domain.Message      `json:"user_message"`
	ModelMessage domain.Message      `json:"model_message"`
	State        *domain.UserState   `json:"state"`
}

// Send submits one turn for the given device.
//
// The turn is rejected up front when empty (ErrEmptyTurn), when another turn
// for the device is in flight (ErrBusy), or when the quota gate trips
// (ErrLoginRequired) — in all three cases nothing is appended and the
// counter is untouched. An accepted turn appends the user message before the
// network round-trip; an API failure then appends an apology message flagged
// as an error instead of a reply, and is not returned as an error here.
func (s *Service) Send(ctx context.Context, userID string, req SendRequest) (*SendResult, error) {
	if strings.TrimSpace(req.Text) == "" && req.Image == "" {
		return nil, ErrEmptyTurn
	}

	if !s.acquire(userID) {
		return nil, ErrBusy
	}
	defer s.release(userID)

	state, err := s.userState(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !state.CanSend(s.opts.FreeMessageLimit) {
		return nil, ErrLoginRequired
	}

	session, err := s.sessionForAppend(ctx, userID, req.SessionID)
	if err != nil {
		return nil, err
	}

	// History excludes the message being submitted.
	history := domain.LastMessages(session.Messages, s.opts.HistoryWindow)

	userMsg := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Text:      req.Text,
		Image:     req.Image,
		Timestamp: domain.NowMillis(),
	}
	session.Messages = append(session.Messages, userMsg)
	if err := s.repo.SaveSession(ctx, userID, session); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	// The free counter moves with the accepted send, not with the API
	// outcome, and only while unauthenticated.
	if !state.IsLoggedIn {
		state.MessageCount++
		if err := s.repo.UpsertUserState(ctx, state); err != nil {
			return nil, fmt.Errorf("persist message count: %w", err)
		}
	}

	s.transcript.Log(TranscriptEvent{
		UserID:    userID,
		SessionID: session.ID,
		Role:      string(domain.RoleUser),
		Text:      req.Text,
		HasImage:  req.Image != "",
	})

	prompt := req.Text
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultAnalysisPrompt
	}

	reply, err := s.router.Send(ctx, Turn{
		Text:      prompt,
		Image:     req.Image,
		History:   history,
		ImageSize: state.ImageSize,
	})

	modelMsg := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleModel,
		Timestamp: domain.NowMillis(),
	}
	if err != nil {
		slog.Error("gemini call failed", "user_id", userID, "session_id", session.ID, "error", err)
		modelMsg.Text = ApologyText
		modelMsg.IsError = true
	} else {
		modelMsg.Text = reply.Text
		modelMsg.Image = reply.GeneratedImage
	}

	session.Messages = append(session.Messages, modelMsg)
	if err := s.repo.SaveSession(ctx, userID, session); err != nil {
		return nil, fmt.Errorf("persist model message: %w", err)
	}

	s.transcript.Log(TranscriptEvent{
		UserID:    userID,
		SessionID: session.ID,
		Role:      string(domain.RoleModel),
		Text:      modelMsg.Text,
		HasImage:  modelMsg.Image != "",
		IsError:   modelMsg.IsError,
	})

	return &SendResult{
		Session:      session,
		UserMessage:  userMsg,
		ModelMessage: modelMsg,
		State:        state,
	}, nil
}

// Sessions lists the device's persisted sessions, newest first.
func (s *Service) Sessions(ctx context.Context, userID string) ([]*domain.ChatSession, error) {
	return s.repo.ListSessions(ctx, userID)
}

// SessionByID retrieves one session, or (nil, nil) when absent.
func (s *Service) SessionByID(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	return s.repo.GetSession(ctx, userID, sessionID)
}

// NewSessionID mints a fresh session id. Nothing is persisted until the
// first message is appended under it.
func (s *Service) NewSessionID() string {
	return uuid.NewString()
}

// DeleteSession removes a session. The client replaces a deleted active
// session with a fresh unsaved id.
func (s *Service) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return s.repo.DeleteSession(ctx, userID, sessionID)
}

// userState loads the device state, creating the initial record when the
// identity middleware has not seen this device yet.
func (s *Service) userState(ctx context.Context, userID string) (*domain.UserState, error) {
	state, err := s.repo.GetUserState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user state: %w", err)
	}
	if state == nil {
		state = domain.NewUserState(userID)
		if err := s.repo.UpsertUserState(ctx, state); err != nil {
			return nil, fmt.Errorf("create user state: %w", err)
		}
	}
	return state, nil
}

// sessionForAppend loads the target session or lazily builds an unsaved one.
// The session only reaches the store once a message is appended.
func (s *Service) sessionForAppend(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	session, err := s.repo.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		session = &domain.ChatSession{
			ID:    sessionID,
			Title: domain.DefaultSessionTitle,
			Date:  time.Now().Format("2/1/2006"),
		}
	}
	return session, nil
}

func (s *Service) acquire(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[userID] {
		return false
	}
	s.inFlight[userID] = true
	return true
}

func (s *Service) release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, userID)
}

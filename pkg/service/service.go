package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/chatsync/pkg/api"
	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/store"
)

// Persistence is the storage side of the chat server. *api.Client and
// *localstore.Store both implement it. Calls report failure as false or as
// an absent value and never panic.
type Persistence interface {
	ListChats(ctx context.Context) []*chat.Chat
	CreateChat(ctx context.Context, c *chat.Chat) bool
	ReplaceChat(ctx context.Context, c *chat.Chat) bool
	DeleteChat(ctx context.Context, id string) bool

	ListPresets(ctx context.Context) []*chat.Preset
	CreatePreset(ctx context.Context, p *chat.Preset) bool
	DeletePreset(ctx context.Context, id string) bool

	LoadSettings(ctx context.Context) (*chat.Settings, bool)
	SaveSettings(ctx context.Context, partial *chat.Settings) bool

	ModelInfo(ctx context.Context) (*chat.ModelInfo, bool)
}

type Completer interface {
	CompleteChat(ctx context.Context, messages []chat.Message, opts api.CompletionOptions) (*api.Completion, error)
}

var (
	_ Persistence = (*api.Client)(nil)
	_ Completer   = (*api.Client)(nil)
)

// Service runs the user-facing operations on top of a store.Store.
//
// Operations that must reach the server follow the same steps: apply a
// mutation to the store, persist, and revert the mutation when persisting
// failed.
type Service struct {
	store       *store.Store
	persistence Persistence
	completer   Completer
	notifier    Notifier
	confirmer   Confirmer
	now         func() time.Time
	newID       func() string

	completionOverrides api.CompletionOptions
	completionTimeout   time.Duration

	mu         sync.Mutex
	settings   *chat.Settings
	modelInfo  *chat.ModelInfo
	sendStates map[string]SendState
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithConfirmer(c Confirmer) Option {
	return func(s *Service) {
		s.confirmer = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// WithCompletionOptions sets values that take precedence over the persisted
// settings for every completion request.
func WithCompletionOptions(opts api.CompletionOptions) Option {
	return func(s *Service) {
		s.completionOverrides = opts
	}
}

func WithCompletionTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.completionTimeout = d
	}
}

// New builds a Service. completer may be nil, in which case SendMessage
// fails with ErrCompletionUnavailable.
func New(st *store.Store, persistence Persistence, completer Completer, options ...Option) *Service {
	ret := &Service{
		store:             st,
		persistence:       persistence,
		completer:         completer,
		notifier:          LogNotifier{},
		confirmer:         AlwaysConfirm{},
		now:               time.Now,
		newID:             chat.NewID,
		completionTimeout: api.DefaultCompletionTimeout,
		settings:          chat.DefaultSettings(),
		sendStates:        map[string]SendState{},
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (s *Service) Store() *store.Store {
	return s.store
}

func (s *Service) notify(level Level, message string) {
	if s.notifier != nil {
		s.notifier.Notify(level, message)
	}
}

func (s *Service) confirm(ctx context.Context, message string) (bool, error) {
	if s.confirmer == nil {
		return true, nil
	}
	return s.confirmer.Confirm(ctx, message)
}

// ModelInfo returns what the server reported at Load, if anything.
func (s *Service) ModelInfo() (*chat.ModelInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modelInfo == nil {
		return nil, false
	}
	info := *s.modelInfo
	return &info, true
}

// RefreshModelInfo asks the server for model info and caches it.
func (s *Service) RefreshModelInfo(ctx context.Context) (*chat.ModelInfo, bool) {
	info, ok := s.persistence.ModelInfo(ctx)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.modelInfo = info
	s.mu.Unlock()
	return info, true
}

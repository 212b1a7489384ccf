package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pet-skin-triage/internal/domain/geo"
	"pet-skin-triage/internal/domain/intake"
)

type sessionRepo struct {
	mu   sync.RWMutex
	byID map[string]intake.Session
}

func NewSessionRepo() intake.Repository {
	return &sessionRepo{
		byID: make(map[string]intake.Session),
	}
}

func (r *sessionRepo) Create(ctx context.Context, s intake.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(s.ID) == "" {
		return errors.New("session id required")
	}
	if _, exists := r.byID[s.ID]; exists {
		return errors.New("session already exists")
	}
	r.byID[s.ID] = s
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (intake.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return intake.Session{}, intake.ErrNotFound
	}
	return s, nil
}

func (r *sessionRepo) Update(ctx context.Context, s intake.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(s.ID) == "" {
		return errors.New("session id required")
	}
	if _, exists := r.byID[s.ID]; !exists {
		return intake.ErrNotFound
	}
	r.byID[s.ID] = s
	return nil
}

func (r *sessionRepo) SavePosition(ctx context.Context, id string, pos geo.Position, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.byID[id]
	if !exists {
		return intake.ErrNotFound
	}
	s.Position = &pos
	s.UpdatedAt = at
	r.byID[id] = s
	return nil
}

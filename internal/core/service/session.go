package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rl1809/procurematch/internal/core/domain"
)

// Login replaces the current user and persists it to the session slot.
func (s *Store) Login(ctx context.Context, name string, role domain.Role) (domain.User, error) {
	user := domain.User{ID: s.newID(), Name: strings.TrimSpace(name), Role: role}
	if fields := domain.Check("", user); len(fields) > 0 {
		return domain.User{}, domain.NewValidationError(fields...)
	}

	if s.sessions != nil {
		data, err := json.Marshal(user)
		if err != nil {
			return domain.User{}, fmt.Errorf("encode session: %w", err)
		}
		if err := s.sessions.Save(ctx, data); err != nil {
			return domain.User{}, fmt.Errorf("save session: %w", err)
		}
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return user, nil
}

// Logout clears the current user and the session slot.
func (s *Store) Logout(ctx context.Context) error {
	if s.sessions != nil {
		if err := s.sessions.Delete(ctx); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	}

	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	return nil
}

// CurrentUser returns nil when nobody is signed in.
func (s *Store) CurrentUser() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// LoadSession restores the user saved in the session slot. Malformed slot
// content counts as no session.
func (s *Store) LoadSession(ctx context.Context) (*domain.User, error) {
	if s.sessions == nil {
		return nil, nil
	}
	data, err := s.sessions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		s.log.WithError(err).Warn("ignoring malformed session")
		return nil, nil
	}
	user.Name = strings.TrimSpace(user.Name)
	if len(domain.Check("", user)) > 0 {
		s.log.Warn("ignoring incomplete session")
		return nil, nil
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()

	u := user
	return &u, nil
}

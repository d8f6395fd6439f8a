package session

import (
	"context"
	"errors"
	"time"
)

// ErrNoRecord is returned by Record.Load when nothing has been persisted.
var ErrNoRecord = errors.New("no session record")

// Record is durable, advisory storage for a bearer session.
type Record interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context) error
}

// persisted is the on-disk and in-Redis shape of a session. The authenticated
// flag is not stored; a record with a credential is a login belief.
type persisted struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Username     string    `json:"username"`
	Role         string    `json:"role,omitempty"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

func toPersisted(s Session, now time.Time) persisted {
	return persisted{
		AccessToken:  s.Credential,
		RefreshToken: s.RefreshToken,
		Username:     s.Identity.Username,
		Role:         s.Identity.Role,
		Name:         s.Identity.Name,
		Email:        s.Identity.Email,
		ExpiresAt:    s.ExpiresAt,
		SavedAt:      now,
	}
}

func (p persisted) session() *Session {
	return &Session{
		Credential:   p.AccessToken,
		RefreshToken: p.RefreshToken,
		Identity: Identity{
			Username: p.Username,
			Role:     p.Role,
			Name:     p.Name,
			Email:    p.Email,
		},
		ExpiresAt: p.ExpiresAt,
	}
}

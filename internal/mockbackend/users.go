package mockbackend

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Profile is the registration profile, stored as submitted.
type Profile struct {
	Name      string  `json:"name,omitempty"`
	Email     string  `json:"email,omitempty"`
	Telephone string  `json:"telphone,omitempty"`
	Role      string  `json:"role,omitempty"`
	Sensors   *int    `json:"sensors,omitempty"`
	Topic     *string `json:"topic,omitempty"`
}

type user struct {
	ID           string
	Username     string
	PasswordHash []byte
	Profile      Profile
	CreatedAt    time.Time

	// generation is bumped by Expire; tokens carrying an older one are dead
	generation int
}

func (u *user) role() string {
	if u.Profile.Role == "" {
		return "user"
	}
	return u.Profile.Role
}

// view is the JSON projection returned by profile and register routes.
func (u *user) view() map[string]any {
	v := map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"role":       u.role(),
		"name":       u.Profile.Name,
		"email":      u.Profile.Email,
		"telphone":   u.Profile.Telephone,
		"created_at": u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.Profile.Sensors != nil {
		v["sensors"] = *u.Profile.Sensors
	}
	if u.Profile.Topic != nil {
		v["topic"] = *u.Profile.Topic
	}
	return v
}

var errDuplicateUser = fmt.Errorf("username already exists")

type userStore struct {
	mu    sync.RWMutex
	users map[string]*user
	cost  int
}

func newUserStore(cost int) *userStore {
	return &userStore{users: make(map[string]*user), cost: cost}
}

func (s *userStore) add(username, password string, profile Profile, now time.Time) (*user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return nil, errDuplicateUser
	}
	u := &user{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Profile:      profile,
		CreatedAt:    now,
	}
	s.users[username] = u
	return u, nil
}

// authenticate returns the user when password matches.
func (s *userStore) authenticate(username, password string) (*user, bool) {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, false
	}
	return u, true
}

func (s *userStore) get(username string) (*user, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	return u, ok
}

func (s *userStore) generation(username string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return 0, false
	}
	return u.generation, true
}

func (s *userStore) expire(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if ok {
		u.generation++
	}
	return ok
}

func (s *userStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

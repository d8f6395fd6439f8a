package transport

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/felixgeelhaar/portal/internal/log"
	"github.com/felixgeelhaar/portal/internal/session"
)

// SessionJar is the cookie jar of a cookie-carrier client. Reset drops every
// cookie so a cleared session cannot be revived by a cookie the server still
// accepts.
type SessionJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

// NewJar creates an empty jar scoped by the public suffix list.
func NewJar() (*SessionJar, error) {
	jar, err := newCookieJar()
	if err != nil {
		return nil, err
	}
	return &SessionJar{jar: jar}, nil
}

func newCookieJar() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// SetCookies implements http.CookieJar.
func (j *SessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *SessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// Reset forgets every cookie.
func (j *SessionJar) Reset() error {
	jar, err := newCookieJar()
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
	return nil
}

// subscriber is implemented by stores that announce transitions, such as
// *session.Manager.
type subscriber interface {
	Subscribe(l session.Listener)
}

// resetOnClear drops the jar's cookies whenever store leaves the
// authenticated state: logout, a 401 anywhere, or an explicit clear.
func resetOnClear(store session.Store, jar *SessionJar, logger *log.Logger) {
	sub, ok := store.(subscriber)
	if !ok {
		return
	}
	sub.Subscribe(func(previous, current session.Session) {
		if current.Authenticated {
			return
		}
		if err := jar.Reset(); err != nil {
			logger.WithError(err).Warn("failed to reset cookie jar")
		}
	})
}

var _ http.CookieJar = (*SessionJar)(nil)

// Package topology turns configuration into the transport clients and route
// prefixes the auth facade uses.
package topology

import (
	"fmt"

	"github.com/felixgeelhaar/portal/internal/config"
	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/session"
	"github.com/felixgeelhaar/portal/internal/transport"
)

// Target names used in logs and metrics.
const (
	TargetIdentity = "identity"
	TargetProfile  = "profile"
	TargetGateway  = "gateway"
)

// Route is a client plus the path prefix of one logical service on it.
type Route struct {
	Client *transport.Client
	Prefix string
}

// Path joins the route prefix and p.
func (r Route) Path(p string) string {
	return r.Prefix + p
}

// Routes addresses the identity and profile services.
type Routes struct {
	Mode     config.Mode
	Identity Route
	Profile  Route
}

// Carrier returns the session carrier the mode requires.
func (r *Routes) Carrier() session.Carrier {
	return CarrierFor(r.Mode)
}

// Targets lists each distinct client once.
func (r *Routes) Targets() []*transport.Client {
	if r.Identity.Client == r.Profile.Client {
		return []*transport.Client{r.Identity.Client}
	}
	return []*transport.Client{r.Identity.Client, r.Profile.Client}
}

// CarrierFor maps a mode to where its session proof lives.
func CarrierFor(mode config.Mode) session.Carrier {
	if mode == config.ModeGateway {
		return session.CarrierCookie
	}
	return session.CarrierBearer
}

// Build creates the clients for cfg. All clients share store.
func Build(cfg config.Config, store session.Store, opts ...transport.Option) (*Routes, error) {
	opts = append([]transport.Option{transport.WithTimeout(cfg.Timeout)}, opts...)

	switch cfg.Mode {
	case config.ModeDirect:
		identity, err := transport.NewClient(transport.Target{
			Name:   TargetIdentity,
			Origin: cfg.Direct.AuthURL,
			Policy: transport.PolicyBearerFromStore,
		}, store, opts...)
		if err != nil {
			return nil, err
		}
		profile, err := transport.NewClient(transport.Target{
			Name:   TargetProfile,
			Origin: cfg.Direct.UserURL,
			Policy: transport.PolicyBearerFromStore,
		}, store, opts...)
		if err != nil {
			return nil, err
		}
		return &Routes{
			Mode:     config.ModeDirect,
			Identity: Route{Client: identity},
			Profile:  Route{Client: profile},
		}, nil

	case config.ModeGateway:
		gateway, err := transport.NewClient(transport.Target{
			Name:   TargetGateway,
			Origin: cfg.Gateway.URL,
			Policy: transport.PolicyBrowserManagedCookie,
		}, store, opts...)
		if err != nil {
			return nil, err
		}
		return &Routes{
			Mode:     config.ModeGateway,
			Identity: Route{Client: gateway, Prefix: "/auth"},
			Profile:  Route{Client: gateway, Prefix: "/user"},
		}, nil

	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, errors.KindValidation,
			fmt.Sprintf("invalid mode: %q", cfg.Mode))
	}
}

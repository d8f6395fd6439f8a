package auth

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/portal/internal/session"
)

// LoginResponse is the normalised result of a login or refresh. Tokens are
// never serialised so the response is safe to print.
type LoginResponse struct {
	AccessToken  string           `json:"-"`
	RefreshToken string           `json:"-"`
	TokenType    string           `json:"token_type,omitempty"`
	ExpiresAt    time.Time        `json:"expires_at,omitempty"`
	Identity     session.Identity `json:"identity"`
}

// tokenPayload accepts the token response shapes the backends produce:
// access_token or token at the top level, or access and refresh inside user.
type tokenPayload struct {
	AccessToken  string       `json:"access_token"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *userPayload `json:"user"`
}

type userPayload struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	Profile  *struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"profile"`
}

func (p *tokenPayload) access() string {
	switch {
	case p.AccessToken != "":
		return p.AccessToken
	case p.Token != "":
		return p.Token
	case p.User != nil:
		return p.User.Access
	}
	return ""
}

func (p *tokenPayload) refresh() string {
	if p.RefreshToken != "" {
		return p.RefreshToken
	}
	if p.User != nil {
		return p.User.Refresh
	}
	return ""
}

// identity reads the user object, filling gaps from the token claims and
// finally from fallbackUsername.
func (p *tokenPayload) identity(claims *session.TokenClaims, fallbackUsername string) session.Identity {
	var id session.Identity
	if u := p.User; u != nil {
		id = session.Identity{Username: u.Username, Role: u.Role, Name: u.Name, Email: u.Email}
		if u.Profile != nil {
			id.Name = firstNonEmpty(id.Name, u.Profile.Name)
			id.Email = firstNonEmpty(id.Email, u.Profile.Email)
			id.Role = firstNonEmpty(id.Role, u.Profile.Role)
		}
	}
	if claims != nil {
		id.Username = firstNonEmpty(id.Username, claims.Username)
		id.Role = firstNonEmpty(id.Role, claims.Role)
	}
	id.Username = firstNonEmpty(id.Username, fallbackUsername)
	return id
}

// RegisterRequest is the registration payload, passed through to the
// identity service as is.
type RegisterRequest struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Profile  RegisterProfile `json:"profile"`
}

// RegisterProfile carries the profile fields of a registration. Role and
// sensor fields are not interpreted by the client.
type RegisterProfile struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Telephone string `json:"telphone,omitempty"`
	Role      string `json:"role,omitempty"`
	Sensors   *int   `json:"sensors,omitempty"`
	Topic     string `json:"topic,omitempty"`
}

// ProfileView is the read-only projection of a profile. Keys the client does
// not know are kept in Extra.
type ProfileView struct {
	Username  string
	Role      string
	Name      string
	Email     string
	Telephone string
	Sensors   *int
	Topic     string
	CreatedAt string
	Extra     map[string]any
}

var profileKeys = map[string]bool{
	"username": true, "role": true, "name": true, "email": true,
	"telphone": true, "telephone": true, "sensors": true, "topic": true,
	"created_at": true, "profile": true,
}

// UnmarshalJSON reads a flat profile or one whose details sit under a nested
// "profile" object.
func (p *ProfileView) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = ProfileView{}
	fields := []map[string]any{raw}
	if nested, ok := raw["profile"].(map[string]any); ok {
		fields = append(fields, nested)
	}

	for _, m := range fields {
		p.Username = firstNonEmpty(p.Username, stringField(m, "username"))
		p.Role = firstNonEmpty(p.Role, stringField(m, "role"))
		p.Name = firstNonEmpty(p.Name, stringField(m, "name"))
		p.Email = firstNonEmpty(p.Email, stringField(m, "email"))
		p.Telephone = firstNonEmpty(p.Telephone, stringField(m, "telphone"), stringField(m, "telephone"))
		p.Topic = firstNonEmpty(p.Topic, stringField(m, "topic"))
		p.CreatedAt = firstNonEmpty(p.CreatedAt, stringField(m, "created_at"))
		if p.Sensors == nil {
			if n, ok := m["sensors"].(float64); ok {
				v := int(n)
				p.Sensors = &v
			}
		}
		for k, v := range m {
			if profileKeys[k] {
				continue
			}
			if p.Extra == nil {
				p.Extra = map[string]any{}
			}
			if _, seen := p.Extra[k]; !seen {
				p.Extra[k] = v
			}
		}
	}
	return nil
}

// MarshalJSON writes the known fields alongside Extra in one flat object.
func (p ProfileView) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+9)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["username"] = p.Username
	setIfNotEmpty(out, "role", p.Role)
	setIfNotEmpty(out, "name", p.Name)
	setIfNotEmpty(out, "email", p.Email)
	setIfNotEmpty(out, "telphone", p.Telephone)
	setIfNotEmpty(out, "topic", p.Topic)
	setIfNotEmpty(out, "created_at", p.CreatedAt)
	if p.Sensors != nil {
		out["sensors"] = *p.Sensors
	}
	return json.Marshal(out)
}

// MarshalYAML renders the same flat mapping as MarshalJSON.
func (p ProfileView) MarshalYAML() (any, error) {
	data, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func setIfNotEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

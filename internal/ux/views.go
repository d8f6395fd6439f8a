package ux

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/portal/internal/auth"
	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/health"
	"github.com/felixgeelhaar/portal/internal/session"
)

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	fail  lipgloss.Style
	box   lipgloss.Style
}

func newStyles(noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{title: plain, label: plain, value: plain, ok: plain, warn: plain, fail: plain, box: plain}
	}
	return styles{
		title: lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
		label: lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(11),
		value: lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		fail:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1),
	}
}

func row(st styles, label, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf("%s %s\n", st.label.Render(fmt.Sprintf("%-10s", label+":")), st.value.Render(value))
}

// ProfileCard renders a profile as a bordered card.
type ProfileCard struct {
	Profile *auth.ProfileView
}

// RenderText implements TextRenderer.
func (c ProfileCard) RenderText(noColor bool) string {
	st := newStyles(noColor)
	p := c.Profile

	var b strings.Builder
	b.WriteString(st.title.Render("👤 "+p.Username) + "\n")
	b.WriteString(row(st, "Role", p.Role))
	b.WriteString(row(st, "Name", p.Name))
	b.WriteString(row(st, "Email", p.Email))
	b.WriteString(row(st, "Telephone", p.Telephone))
	if p.Sensors != nil {
		b.WriteString(row(st, "Sensors", fmt.Sprintf("%d", *p.Sensors)))
	}
	b.WriteString(row(st, "Topic", p.Topic))
	b.WriteString(row(st, "Created", p.CreatedAt))

	return st.box.Render(strings.TrimRight(b.String(), "\n"))
}

// MarshalJSON writes the profile itself.
func (c ProfileCard) MarshalJSON() ([]byte, error) {
	return c.Profile.MarshalJSON()
}

// MarshalYAML writes the profile itself.
func (c ProfileCard) MarshalYAML() (any, error) {
	return c.Profile.MarshalYAML()
}

// StatusView describes the locally held session. It never exposes tokens.
type StatusView struct {
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	Username      string     `json:"username,omitempty" yaml:"username,omitempty"`
	Role          string     `json:"role,omitempty" yaml:"role,omitempty"`
	Mode          string     `json:"mode" yaml:"mode"`
	Carrier       string     `json:"carrier" yaml:"carrier"`
	Origin        string     `json:"origin,omitempty" yaml:"origin,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired       bool       `json:"expired,omitempty" yaml:"expired,omitempty"`
}

// NewStatusView builds the view of s at now.
func NewStatusView(s session.Session, mode string, carrier session.Carrier, now time.Time) StatusView {
	v := StatusView{
		Authenticated: s.Authenticated,
		Username:      s.Identity.Username,
		Role:          s.Identity.Role,
		Mode:          mode,
		Carrier:       carrier.String(),
		Origin:        string(s.Origin),
		Expired:       s.Expired(now),
	}
	if !s.ExpiresAt.IsZero() {
		exp := s.ExpiresAt
		v.ExpiresAt = &exp
	}
	return v
}

// RenderText implements TextRenderer.
func (v StatusView) RenderText(noColor bool) string {
	st := newStyles(noColor)
	if !v.Authenticated {
		return st.warn.Render("Not logged in") + fmt.Sprintf(" (%s mode). Run 'portal login' to sign in.", v.Mode)
	}

	var b strings.Builder
	b.WriteString(st.ok.Render("Logged in") + " as " + st.title.Render(v.Username) + "\n")
	b.WriteString(row(st, "Role", v.Role))
	b.WriteString(row(st, "Mode", v.Mode))
	b.WriteString(row(st, "Carrier", v.Carrier))
	b.WriteString(row(st, "Source", v.Origin))
	if v.ExpiresAt != nil {
		exp := v.ExpiresAt.Local().Format(time.RFC1123)
		if v.Expired {
			exp += " " + st.fail.Render("(expired)")
		}
		b.WriteString(row(st, "Expires", exp))
	}
	return strings.TrimRight(b.String(), "\n")
}

// HealthView renders a health report as one line per backend.
type HealthView struct {
	Report *health.Report
}

// RenderText implements TextRenderer.
func (v HealthView) RenderText(noColor bool) string {
	st := newStyles(noColor)
	var b strings.Builder
	for _, name := range v.Report.Names() {
		r := v.Report.Results[name]
		b.WriteString(fmt.Sprintf("%s %-10s %s (%s)\n",
			statusIcon(st, r.Status), name, r.Message, r.Latency.Round(time.Millisecond)))
	}
	b.WriteString(fmt.Sprintf("\nOverall: %s", statusIcon(st, v.Report.Status)+" "+v.Report.Status.String()))
	return b.String()
}

// MarshalJSON writes the report itself.
func (v HealthView) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Report)
}

// MarshalYAML writes the report itself.
func (v HealthView) MarshalYAML() (any, error) {
	return v.Report, nil
}

func statusIcon(st styles, s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return st.ok.Render("✓")
	case health.StatusDegraded:
		return st.warn.Render("!")
	default:
		return st.fail.Render("✗")
	}
}

// RenderError formats err for the terminal: the message, then any
// suggestions carried by a *errors.PortalError.
func RenderError(err error, noColor bool) string {
	if err == nil {
		return ""
	}
	st := newStyles(noColor)

	pe, ok := errors.As(err)
	if !ok {
		return st.fail.Render("Error: ") + err.Error()
	}

	var b strings.Builder
	b.WriteString(st.fail.Render("Error: ") + pe.Message)
	if pe.Status != 0 {
		b.WriteString(fmt.Sprintf(" (HTTP %d)", pe.Status))
	}
	if len(pe.Suggestions) > 0 {
		b.WriteString("\n")
		for _, s := range pe.Suggestions {
			b.WriteString("\n  • " + s)
		}
	}
	return b.String()
}

// ExpiredNotice is shown whenever a command finds the session was rejected.
func ExpiredNotice(noColor bool) string {
	st := newStyles(noColor)
	return st.warn.Render("Your session has expired or was revoked.") + " Run 'portal login' to sign in again."
}

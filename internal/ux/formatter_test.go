package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionRow struct {
	Username string `json:"username" yaml:"username"`
	Sensors  int    `json:"sensors" yaml:"sensors"`
}

type stubRenderer struct{}

func (stubRenderer) RenderText(noColor bool) string {
	if noColor {
		return "plain"
	}
	return "styled"
}

func format(t *testing.T, name string, opts FormatterOptions, data any) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	opts.Writer = &buf
	f, err := NewFormatter(name, &opts)
	require.NoError(t, err)
	err = f.Format(data)
	return buf.String(), err
}

func TestNewFormatter(t *testing.T) {
	for _, name := range []string{OutputJSON, OutputYAML, OutputText, ""} {
		_, err := NewFormatter(name, nil)
		assert.NoError(t, err, "format %q", name)
	}

	_, err := NewFormatter("xml", nil)
	assert.ErrorContains(t, err, "unknown format: xml")
}

func TestJSONFormatter(t *testing.T) {
	out, err := format(t, OutputJSON, FormatterOptions{}, sessionRow{Username: "alice", Sensors: 2})
	require.NoError(t, err)
	assert.Contains(t, out, `"username": "alice"`)
	assert.Contains(t, out, `"sensors": 2`)

	out, err = format(t, OutputJSON, FormatterOptions{Compact: true}, sessionRow{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, `{"username":"alice","sensors":0}`+"\n", out)
}

func TestYAMLFormatter(t *testing.T) {
	out, err := format(t, OutputYAML, FormatterOptions{}, sessionRow{Username: "alice", Sensors: 2})
	require.NoError(t, err)
	assert.Contains(t, out, "username: alice")
	assert.Contains(t, out, "sensors: 2")
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		data    any
		want    string
		wantErr bool
	}{
		{name: "string", data: "Logged out", want: "Logged out"},
		{name: "text renderer honours no-color", data: stubRenderer{}, want: "plain"},
		{name: "struct without a text form", data: sessionRow{Username: "alice"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := format(t, OutputText, FormatterOptions{NoColor: true}, tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(out))
		})
	}
}

package callback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantMethod string
		wantPath   string
		wantProto  string
		wantQuery  map[string]string
	}{
		{
			name:       "code without other params",
			line:       "GET /auth/callback?code=abc123 HTTP/1.1",
			wantMethod: "GET",
			wantPath:   "/auth/callback",
			wantProto:  "HTTP/1.1",
			wantQuery:  map[string]string{"code": "abc123"},
		},
		{
			name:       "percent-encoded value",
			line:       "GET /auth/callback?code=abc%20def HTTP/1.1\r\n",
			wantMethod: "GET",
			wantPath:   "/auth/callback",
			wantProto:  "HTTP/1.1",
			wantQuery:  map[string]string{"code": "abc def"},
		},
		{
			name:       "google style redirect",
			line:       "GET /auth/callback?state=s1&code=4%2F0AeanS0b&scope=https%3A%2F%2Fwww.googleapis.com%2Fauth%2Fgmail.compose HTTP/1.1\r\n",
			wantMethod: "GET",
			wantPath:   "/auth/callback",
			wantProto:  "HTTP/1.1",
			wantQuery:  map[string]string{
				"state": "s1",
				"code":  "4/0AeanS0b",
				"scope": "https://www.googleapis.com/auth/gmail.compose",
			},
		},
		{
			name:       "first occurrence wins",
			line:       "GET /auth/callback?code=first&code=second HTTP/1.1",
			wantMethod: "GET",
			wantPath:   "/auth/callback",
			wantProto:  "HTTP/1.1",
			wantQuery:  map[string]string{"code": "first"},
		},
		{
			name:       "invalid escape keeps raw value",
			line:       "GET /auth/callback?code=abc%zz HTTP/1.1",
			wantMethod: "GET",
			wantPath:   "/auth/callback",
			wantProto:  "HTTP/1.1",
			wantQuery:  map[string]string{"code": "abc%zz"},
		},
		{
			name:       "plus is not a space",
			line:       "GET /auth/callback?code=a+b HTTP/1.1",
			wantMethod: "GET",
			wantPath:   "/auth/callback",
			wantProto:  "HTTP/1.1",
			wantQuery:  map[string]string{"code": "a+b"},
		},
		{
			name:       "key without value",
			line:       "GET /auth/callback?code&state=x HTTP/1.1",
			wantMethod: "GET",
			wantPath:   "/auth/callback",
			wantProto:  "HTTP/1.1",
			wantQuery:  map[string]string{"code": "", "state": "x"},
		},
		{
			name:       "empty pairs skipped",
			line:       "GET /auth/callback?&&code=c&& HTTP/1.1",
			wantMethod: "GET",
			wantPath:   "/auth/callback",
			wantProto:  "HTTP/1.1",
			wantQuery:  map[string]string{"code": "c"},
		},
		{
			name:       "no query",
			line:       "GET /favicon.ico HTTP/1.1",
			wantMethod: "GET",
			wantPath:   "/favicon.ico",
			wantProto:  "HTTP/1.1",
			wantQuery:  map[string]string{},
		},
		{
			name:       "no protocol",
			line:       "GET /auth/callback?code=x",
			wantMethod: "GET",
			wantPath:   "/auth/callback",
			wantQuery:  map[string]string{"code": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequestLine(tt.line)
			require.NoError(t, err)

			assert.Equal(t, tt.wantMethod, req.Method)
			assert.Equal(t, tt.wantProto, req.Proto)
			assert.Equal(t, tt.wantPath, req.Path)
			assert.Equal(t, tt.wantQuery, req.Query)
		})
	}
}

func TestParseRequestLine_Malformed(t *testing.T) {
	for _, line := range []string{"", "\r\n", "GET", " /auth/callback HTTP/1.1", "GET  HTTP/1.1"} {
		_, err := ParseRequestLine(line)
		assert.True(t, errors.Is(err, ErrMalformedRequest), "line %q", line)
	}
}

func TestRequestLine_Param(t *testing.T) {
	req, err := ParseRequestLine("GET /auth/callback?code=abc123&error= HTTP/1.1")
	require.NoError(t, err)

	code, ok := req.Param("code")
	assert.True(t, ok)
	assert.Equal(t, "abc123", code)

	_, ok = req.Param("error")
	assert.True(t, ok, "an empty value is still present")

	_, ok = req.Param("state")
	assert.False(t, ok)
}

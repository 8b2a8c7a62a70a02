package callback

import (
	"errors"
	"net/url"
	"strings"
)

// ErrMalformedRequest is returned by ParseRequestLine for lines that do not
// carry at least a method and a request target.
var ErrMalformedRequest = errors.New("malformed request line")

// RequestLine is the parsed first line of an HTTP request.
type RequestLine struct {
	Method string
	Target string
	Path   string
	Proto  string

	// Query holds the decoded query parameters. Only the first occurrence
	// of a repeated key is kept.
	Query map[string]string
}

// Param returns the query value for key and whether it was present.
func (r RequestLine) Param(key string) (string, bool) {
	v, ok := r.Query[key]
	return v, ok
}

// ParseRequestLine parses a request line such as
// "GET /auth/callback?code=abc HTTP/1.1". A trailing CRLF is ignored.
func ParseRequestLine(line string) (RequestLine, error) {
	line = strings.TrimRight(line, "\r\n")

	fields := strings.Split(line, " ")
	if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
		return RequestLine{}, ErrMalformedRequest
	}

	req := RequestLine{
		Method: fields[0],
		Target: fields[1],
	}
	if len(fields) > 2 {
		req.Proto = fields[2]
	}

	path, rawQuery, _ := strings.Cut(req.Target, "?")
	req.Path = path
	req.Query = parseQuery(rawQuery)
	return req, nil
}

// parseQuery splits on '&' and then on the first '='. Values are
// percent-decoded; a value that fails to decode is kept as sent.
func parseQuery(raw string) map[string]string {
	query := make(map[string]string)
	if raw == "" {
		return query
	}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if _, seen := query[key]; seen {
			continue
		}
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		query[key] = value
	}
	return query
}

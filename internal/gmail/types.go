package gmail

import (
	"net/http"
	"time"
)

// defaultHTTPClient is the base client under the bearer-token transport.
var defaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
}

// Draft is a created Gmail draft as returned by the API.
type Draft struct {
	ID      string       `json:"id"`
	Message DraftMessage `json:"message"`
}

// DraftMessage identifies the message inside a draft.
type DraftMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

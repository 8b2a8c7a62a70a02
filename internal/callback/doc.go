// Package callback runs the loopback listener that receives the OAuth
// redirect from the browser.
//
// The listener is deliberately not an HTTP server. It accepts one connection
// at a time, reads only the request line, and reacts to a single path:
//
//	GET /auth/callback?code=...&state=... HTTP/1.1
//
// A request carrying an authorization code is exchanged for a token, which is
// stored before the browser receives a success page. Failed exchanges are
// answered with an error page and the listener keeps waiting, so the user can
// retry from the same consent URL. Any other path is closed without a
// response.
package callback

package api

import (
	"log"
	"net/http"
)

// TokenSource supplies the bearer token for authenticated calls and
// receives the signal to drop it. The session store implements this.
type TokenSource interface {
	Token() string
	Clear() error
}

// authTransport injects the session bearer token into outgoing requests and
// clears the session whenever the server answers 401. A 401 is the sole
// automatic logout trigger; every other failure leaves the session alone.
type authTransport struct {
	base    http.RoundTripper
	session TokenSource
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	if token := t.session.Token(); token != "" && req.Header.Get("Authorization") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		log.Println("Server rejected the session token, clearing session")
		if err := t.session.Clear(); err != nil {
			log.Printf("Failed to clear session: %v", err)
		}
	}

	return resp, nil
}

package web

import "net/http"

// Baker issues a cookie and later checks one sent back by the client, as
// the CSRF double submit does.
type Baker interface {
	Bake() (*http.Cookie, error)
	Check(*http.Cookie) error
}

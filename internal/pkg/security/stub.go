package security

import (
	"errors"
	"net/http"
)

type StubBaker struct {
	BakeFunc  func() (*http.Cookie, error)
	CheckFunc func(*http.Cookie) error
}

func (s *StubBaker) Bake() (*http.Cookie, error) {
	if s.BakeFunc == nil {
		return nil, errors.New("Bake() not implemented by stub")
	}
	return s.BakeFunc()
}

func (s *StubBaker) Check(c *http.Cookie) error {
	if s.CheckFunc == nil {
		return errors.New("Check() not implemented by stub")
	}
	return s.CheckFunc(c)
}

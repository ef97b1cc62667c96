package erasure

import (
	"context"
	"errors"
)

type StubEraser struct {
	EraseFunc func(ctx context.Context, userID, reason, actorID string) error
}

var _ Eraser = (*StubEraser)(nil)

func (s *StubEraser) Erase(ctx context.Context, userID, reason, actorID string) error {
	if s.EraseFunc == nil {
		return errors.New("Erase() not implemented by stub")
	}
	return s.EraseFunc(ctx, userID, reason, actorID)
}

// StubStore implements the consent, request and activity stores with fixed
// counts.
type StubStore struct {
	ConsentRecords int
	Requests       int
	AuditEntries   int
	Err            error

	// Pseudonyms records the arguments of each Pseudonymize call.
	Pseudonyms [][4]string
}

var (
	_ ConsentEraser        = (*StubStore)(nil)
	_ RequestPseudonymizer = (*StubStore)(nil)
	_ ActivityScrubber     = (*StubStore)(nil)
)

func (s *StubStore) Erase(context.Context, string) (int, error) {
	return s.ConsentRecords, s.Err
}

func (s *StubStore) Pseudonymize(_ context.Context, userID, emailHash, pseudonym, pseudonymHash string) (int, error) {
	s.Pseudonyms = append(s.Pseudonyms, [4]string{userID, emailHash, pseudonym, pseudonymHash})
	return s.Requests, nil
}

func (s *StubStore) ScrubActor(context.Context, string) (int, error) {
	return s.AuditEntries, nil
}

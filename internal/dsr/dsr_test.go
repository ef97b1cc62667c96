package dsr_test

import (
	"os"
	"regexp"
	"testing"

	"github.com/ferdiebergado/gdprkit/internal/dsr"
	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.SetupLogger("testing", "error", os.Stdout)
	os.Exit(m.Run())
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to string
		want     bool
	}{
		{dsr.StatusUnverified, dsr.StatusPending, true},
		{dsr.StatusUnverified, dsr.StatusRejected, true},
		{dsr.StatusUnverified, dsr.StatusInProgress, false},
		{dsr.StatusPending, dsr.StatusInProgress, true},
		{dsr.StatusPending, dsr.StatusCompleted, false},
		{dsr.StatusInProgress, dsr.StatusCompleted, true},
		{dsr.StatusInProgress, dsr.StatusRejected, true},
		{dsr.StatusCompleted, dsr.StatusRejected, false},
		{dsr.StatusRejected, dsr.StatusPending, false},
	}

	for _, tc := range tests {
		if got := dsr.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %t, want: %t", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNewReference(t *testing.T) {
	t.Parallel()

	ref := dsr.NewReference()
	if !regexp.MustCompile(`^DSR-[0-9A-F]{8}$`).MatchString(ref) {
		t.Errorf("NewReference() = %q, want DSR- followed by 8 upper-case hex digits", ref)
	}
}

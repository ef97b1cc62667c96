package time_test

import (
	"encoding/json"
	"testing"
	"time"

	timex "github.com/ferdiebergado/gdprkit/internal/pkg/time"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"Hours", `"720h"`, 720 * time.Hour, false},
		{"Minutes and seconds", `"1m30s"`, 90 * time.Second, false},
		{"Number instead of string", `30`, 0, true},
		{"Invalid unit", `"30 days"`, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var d timex.Duration
			err := json.Unmarshal([]byte(tc.input), &d)
			if (err != nil) != tc.wantErr {
				t.Fatalf("json.Unmarshal(%s) = %v, wantErr: %v", tc.input, err, tc.wantErr)
			}

			if d.Duration != tc.want {
				t.Errorf("d.Duration = %v, want: %v", d.Duration, tc.want)
			}
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(timex.Days(30))
	if err != nil {
		t.Fatal(err)
	}

	got, want := string(b), `"720h0m0s"`
	if got != want {
		t.Errorf("json.Marshal(timex.Days(30)) = %s, want: %s", got, want)
	}
}

package compliance_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ferdiebergado/gdprkit/internal/compliance"
	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
)

type reporterFunc func(ctx context.Context) (*compliance.Report, error)

func (f reporterFunc) Report(ctx context.Context) (*compliance.Report, error) {
	return f(ctx)
}

func TestHandler_Report(t *testing.T) {
	t.Parallel()

	svc := reporterFunc(func(context.Context) (*compliance.Report, error) {
		return &compliance.Report{
			Requests:  compliance.RequestSummary{Open: 3, Overdue: 1},
			Checklist: []compliance.CheckItem{{Key: compliance.CheckNoOverdueRequests, Passed: false}},
		}, nil
	})

	rec := httptest.NewRecorder()
	compliance.NewHandler(svc).Report(rec, httptest.NewRequest(http.MethodGet, "/admin/compliance", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf(message.FmtErrStatusCode, rec.Code, http.StatusOK)
	}

	var res web.OKResponse[compliance.Report]
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}

	if res.Data.Requests.Overdue != 1 || len(res.Data.Checklist) != 1 {
		t.Errorf("res.Data = %+v", res.Data)
	}
}

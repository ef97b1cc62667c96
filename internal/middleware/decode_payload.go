package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
)

// DecodePayload decodes a single JSON object of type T from the body and
// stores it in the request context. Unknown fields are rejected.
func DecodePayload[T any](bodySize int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, bodySize)
			decoder := json.NewDecoder(r.Body)
			decoder.DisallowUnknownFields()

			var decoded T
			if err := decoder.Decode(&decoded); err != nil {
				var maxBytesErr *http.MaxBytesError
				if errors.As(err, &maxBytesErr) {
					web.RespondRequestEntityTooLarge(w, err, message.InvalidInput, nil)
					return
				}

				if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
					web.RespondUnprocessableEntity(w, err, "Unknown field in payload.", map[string]string{"field": field})
					return
				}

				web.RespondBadRequest(w, err, message.InvalidInput, nil)
				return
			}

			if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
				web.RespondBadRequest(w, errors.New("payload has trailing data"), message.InvalidInput, nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(web.NewContextWithParams(r.Context(), decoded)))
		})
	}
}

package http

import (
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
)

// ContentTypeJSON rejects bodies declared as anything other than
// application/json. A missing Content-Type is accepted.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorBody{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// maxBodyBytes caps every request body on the JSON routes.
const maxBodyBytes = 1 << 20

// LimitBody stops reading request bodies after n bytes. Decoders then fail
// with *http.MaxBytesError, which the error writer answers with 413.
func LimitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// notFound answers unmatched routes with the standard error envelope.
func notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, r, apperrors.ErrNotFound, nil)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorBody{
		Error: &httputil.ErrorResponse{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"},
	})
}

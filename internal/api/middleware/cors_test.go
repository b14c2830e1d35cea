package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"player-auction/pkg/logger"

	"github.com/peterldowns/testy/check"
)

func TestCORSWithLogging(t *testing.T) {
	called := false
	h := CORSWithLogging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/ws/auction", nil))
	check.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	check.False(t, called)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/auction", nil))
	check.Equal(t, http.StatusTeapot, rec.Code)
	check.True(t, called)
}

package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/nekogravitycat/massage-booking-backend/internal/pkg/apperror"
)

func render(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, err)
	return w
}

func TestErrorUsesAppErrorCode(t *testing.T) {
	sentinel := apperror.New(http.StatusConflict, "time slot already booked")

	w := render(sentinel)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"time slot already booked"}`, w.Body.String())
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestErrorWrappedUpstreamIsRetryable(t *testing.T) {
	sentinel := apperror.New(http.StatusServiceUnavailable, "calendar unavailable, try again later")

	w := render(apperror.WrapAs(sentinel, errors.New("dial tcp: timeout")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, retryAfterSeconds, w.Header().Get("Retry-After"))
	assert.NotContains(t, w.Body.String(), "dial tcp")
}

func TestErrorUnknownIsInternal(t *testing.T) {
	w := render(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

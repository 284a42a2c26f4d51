package apierr

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, StatusFor(New(InvalidInput, "bad")))
	require.Equal(t, http.StatusNotFound, StatusFor(New(NotFound, "missing")))
	require.Equal(t, http.StatusUnauthorized, StatusFor(New(AuthFailed, "nope")))
	require.Equal(t, http.StatusInternalServerError, StatusFor(fmt.Errorf("plain")))
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	wrapped := Wrap(DeviceError, "device said no", cause)
	require.ErrorIs(t, wrapped, cause)
	require.True(t, Is(wrapped, DeviceError))
	require.False(t, Is(wrapped, NotConnected))
}

func TestWithHint(t *testing.T) {
	err := New(NotConnected, "link down").WithHint("press RESET")
	require.Equal(t, "press RESET", err.Hint)
}

func TestWriteJSONIncludesHint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		WriteJSON(c, New(NotConnected, "link down").WithHint("press RESET"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "press RESET")
	require.Contains(t, rr.Body.String(), "link down")
}

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/libchain-registry/internal/services"
)

// envelopeRouter echoes a fixed request id and scopes a buffered logger the
// way RequestID and Logger do in the real chain.
func envelopeRouter(rid string, buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	lg := zerolog.New(buf)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set(headerRequestID, rid)
		c.Set("logger", &lg)
		c.Next()
	})
	return r
}

func TestFail_LedgerFailureLogsAndHidesCause(t *testing.T) {
	var buf bytes.Buffer
	r := envelopeRouter("rid-500", &buf)
	r.POST("/contents/:id/purchase", func(c *gin.Context) {
		failErr(c, fmt.Errorf("credit creator: %w", errors.New("database is locked")))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contents/7/purchase", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrorResponse{RequestID: "rid-500", Code: ErrCodeInternal, Message: "internal server error"}, resp)
	assert.NotContains(t, w.Body.String(), "database is locked")
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"code":"internal_error"`)
}

func TestFail_ClientErrorsAreNotLogged(t *testing.T) {
	var buf bytes.Buffer
	r := envelopeRouter("rid-409", &buf)
	r.POST("/contents/:id/purchase", func(c *gin.Context) {
		failErr(c, fmt.Errorf("purchase %s: %w", c.Param("id"), services.ErrAlreadyOwned))
	})
	r.GET("/contents/:id", func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrCodeNotFound, "content not found")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contents/7/purchase", nil))
	require.Equal(t, http.StatusConflict, w.Code)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
	assert.Equal(t, "rid-409", er.RequestID)
	assert.Equal(t, ErrCodeAlreadyOwned, er.Code)
	assert.True(t, strings.HasSuffix(er.Message, services.ErrAlreadyOwned.Error()), er.Message)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contents/404", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
	assert.Equal(t, ErrCodeNotFound, er.Code)

	assert.Empty(t, buf.String())
}

func TestOkAndNoContent_RegistryShapes(t *testing.T) {
	var buf bytes.Buffer
	r := envelopeRouter("rid-201", &buf)
	r.POST("/contents", func(c *gin.Context) {
		ok(c, http.StatusCreated, gin.H{"id": 7, "price": "1000000000000000000", "active": true})
	})
	r.DELETE("/contents/:id", func(c *gin.Context) { noContent(c) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contents", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(7), body["id"])
	assert.Equal(t, "1000000000000000000", body["price"], "wei amounts stay decimal strings")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/contents/7", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())
}

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactJSON(t *testing.T) {
	in := `{"email":"a@b.c","password":"hunter2","items":[{"Token":"x"}],"paymentReceipt":"data:image/png;base64,AAA"}`

	var out map[string]any
	require.NoError(t, json.Unmarshal(redactJSON([]byte(in)), &out))

	assert.Equal(t, "a@b.c", out["email"])
	assert.Equal(t, "***redacted***", out["password"])
	assert.Equal(t, "***redacted***", out["paymentReceipt"])
	assert.Equal(t, "***redacted***", out["items"].([]any)[0].(map[string]any)["Token"])

	assert.Equal(t, "not json", string(redactJSON([]byte("not json"))))
}

func TestLoggableOmitsOversizedBodies(t *testing.T) {
	assert.Equal(t, `{"password":"***redacted***"}`, loggable([]byte(`{"password":"x"}`)))
	assert.Equal(t, omittedBody, loggable(bytes.Repeat([]byte("a"), bodyLogLimit+1)))
}

func TestRequestLoggerKeepsFullBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&logs, nil))

	big := `{"note":"` + strings.Repeat("x", 3*bodyLogLimit) + `"}`
	var seen int

	r := gin.New()
	r.Use(RequestLogger(base))
	r.POST("/orders", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		seen = len(b)
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, len(big), seen)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Contains(t, logs.String(), omittedBody)
	assert.NotContains(t, logs.String(), strings.Repeat("x", 64))
}

func TestRequestLoggerNeverLogsCutBodies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&logs, nil))

	body := `{"paymentReceipt":"data:image/png;base64,SECRETRECEIPT` + strings.Repeat("A", 2*bodyLogLimit) + `","turnstileToken":"tok"}`

	r := gin.New()
	r.Use(RequestLogger(base))
	r.POST("/orders", func(c *gin.Context) {
		_, _ = io.Copy(io.Discard, c.Request.Body)
		c.JSON(http.StatusBadRequest, gin.H{"error": "nope"})
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotContains(t, logs.String(), "SECRETRECEIPT")
	assert.Contains(t, logs.String(), omittedBody)
}

func TestRequestLoggerReadsOnlyAPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	base := slog.New(slog.NewJSONHandler(io.Discard, nil))

	src := &countingReader{r: strings.NewReader(`{"note":"` + strings.Repeat("x", 100*bodyLogLimit) + `"}`)}
	closed := false

	r := gin.New()
	r.Use(RequestLogger(base))
	r.POST("/orders", func(c *gin.Context) {
		assert.LessOrEqual(t, src.n, bodyLogLimit+1)
		require.NoError(t, c.Request.Body.Close())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", closeRecorder{Reader: src, closed: &closed})
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, closed)
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

type closeRecorder struct {
	io.Reader
	closed *bool
}

func (c closeRecorder) Close() error {
	*c.closed = true
	return nil
}

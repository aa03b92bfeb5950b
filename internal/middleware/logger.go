package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/internal/logging"
)

const bodyLogLimit = 8 * 1024

// Bodies over the limit cannot be parsed for redaction, so they are not
// logged at all.
const omittedBody = "...omitted, larger than 8KB..."

var redactedKeys = map[string]bool{
	"password":       true,
	"authorization":  true,
	"token":          true,
	"secret":         true,
	"turnstiletoken": true,
	"paymentreceipt": true,
}

type bodyLogWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bodyLogWriter) Write(b []byte) (int, error) {
	if remain := bodyLogLimit + 1 - w.buf.Len(); remain > 0 {
		w.buf.Write(b[:min(len(b), remain)])
	}
	return w.ResponseWriter.Write(b)
}

// prefixedBody replays the bytes already read for logging ahead of the rest
// of the original body, and closes the original.
type prefixedBody struct {
	io.Reader
	io.Closer
}

// RequestLogger logs one line per request and installs a request scoped
// logger carrying the request id. JSON bodies are logged with credentials,
// challenge tokens and receipt images redacted. Only the first bodyLogLimit
// bytes are read here; downstream handlers still stream the remainder from
// the client, so their own size limits keep working.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
			c.Request.Header.Set("X-Request-Id", reqID)
		}
		c.Header("X-Request-Id", reqID)

		l := base.With(
			"req_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"remote", c.ClientIP(),
		)
		logging.With(c, l)

		var reqBody string
		if strings.Contains(c.GetHeader("Content-Type"), "application/json") && c.Request.Body != nil {
			orig := c.Request.Body
			prefix, err := io.ReadAll(io.LimitReader(orig, bodyLogLimit+1))
			if err == nil {
				reqBody = loggable(prefix)
			}
			c.Request.Body = prefixedBody{
				Reader: io.MultiReader(bytes.NewReader(prefix), orig),
				Closer: orig,
			}
		}

		blw := &bodyLogWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = blw

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"resp_bytes", c.Writer.Size(),
		}
		if reqBody != "" {
			attrs = append(attrs, "req_body", reqBody)
		}
		if strings.Contains(c.Writer.Header().Get("Content-Type"), "application/json") && blw.buf.Len() > 0 {
			attrs = append(attrs, "resp_body", loggable(blw.buf.Bytes()))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		if status >= http.StatusInternalServerError {
			l.Error("http_request", attrs...)
			return
		}
		if status >= http.StatusBadRequest {
			l.Warn("http_request", attrs...)
			return
		}
		l.Info("http_request", attrs...)
	}
}

// loggable redacts a complete body. b holds at most bodyLogLimit+1 bytes, so
// a longer b means the body was cut and is replaced by a marker.
func loggable(b []byte) string {
	if len(b) > bodyLogLimit {
		return omittedBody
	}
	out := redactJSON(b)
	if len(out) > bodyLogLimit {
		return string(out[:bodyLogLimit]) + "...truncated..."
	}
	return string(out)
}

func redactJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	var m any
	if err := json.Unmarshal(raw, &m); err != nil {
		return raw
	}

	var scrub func(any) any
	scrub = func(x any) any {
		switch v := x.(type) {
		case map[string]any:
			for k, val := range v {
				if redactedKeys[strings.ToLower(k)] {
					v[k] = "***redacted***"
					continue
				}
				v[k] = scrub(val)
			}
			return v
		case []any:
			for i := range v {
				v[i] = scrub(v[i])
			}
			return v
		default:
			return v
		}
	}

	b, err := json.Marshal(scrub(m))
	if err != nil {
		return raw
	}
	return b
}

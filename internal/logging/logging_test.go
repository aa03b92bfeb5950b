package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAddsComponentOnce(t *testing.T) {
	prev := base
	t.Cleanup(func() { base = prev })

	var buf bytes.Buffer
	base = newLogger(&buf, "storefront", "info")

	New("orders").Info("checkout placed")

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, `"component"`), line)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "storefront", rec["service"])
	assert.Equal(t, "orders", rec["component"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel(" Debug ").String())
	assert.Equal(t, "WARN", ParseLevel("warning").String())
	assert.Equal(t, "INFO", ParseLevel("").String())
}

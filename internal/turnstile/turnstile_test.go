package turnstile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySendsFormAndReadsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		assert.Equal(t, "10.0.0.7", r.PostForm.Get("remoteip"))

		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("response") == "good" {
			_, _ = w.Write([]byte(`{"success":true,"hostname":"shop.example"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer srv.Close()

	v := New("s3cret", srv.URL)

	ok, err := v.Verify(context.Background(), "good", "10.0.0.7")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(context.Background(), "bad", "10.0.0.7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ok, err := New("s", srv.URL).Verify(context.Background(), "tok", "")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestStatic(t *testing.T) {
	ok, _ := Static("dev").Verify(context.Background(), "dev", "")
	assert.True(t, ok)
	ok, _ = Static("dev").Verify(context.Background(), "other", "")
	assert.False(t, ok)
}

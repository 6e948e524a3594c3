package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"catalog-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResolvesPrincipal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "session=abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"u1","emailVerified":true}}`))
	}))
	defer srv.Close()

	client := NewSessionClient(srv.URL, time.Second)

	principal, err := client.Validate(context.Background(), "session=abc")
	require.NoError(t, err)
	assert.Equal(t, "u1", principal.ID)
	assert.True(t, principal.EmailVerified)
}

func TestValidateRejectsBadSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewSessionClient(srv.URL, time.Second)

	_, err := client.Validate(context.Background(), "session=bad")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestValidateRejectsMissingCredential(t *testing.T) {
	client := NewSessionClient("http://localhost:0", time.Second)
	_, err := client.Validate(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestValidateRejectsEmptyUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{}}`))
	}))
	defer srv.Close()

	client := NewSessionClient(srv.URL, time.Second)

	_, err := client.Validate(context.Background(), "session=abc")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

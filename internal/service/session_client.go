package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"catalog-service/internal/models"
	"catalog-service/internal/util"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// SessionValidator resolves a session credential to a Principal. Any
// implementation works: a remote identity service, a local session store,
// or signed-token verification.
type SessionValidator interface {
	Validate(ctx context.Context, credential string) (*models.Principal, error)
}

// SessionClient validates sessions against the user service. Transient
// failures are retried; anything that still fails denies access rather
// than letting an unverified caller through.
type SessionClient struct {
	client  *retryablehttp.Client
	baseURL string
	logger  *zap.Logger
}

// NewSessionClient creates a session validation client for the user
// service at baseURL.
func NewSessionClient(baseURL string, timeout time.Duration) *SessionClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil

	return &SessionClient{
		client:  client,
		baseURL: baseURL,
		logger:  util.GetLogger(),
	}
}

type sessionResponse struct {
	User struct {
		ID            string `json:"id"`
		EmailVerified bool   `json:"emailVerified"`
	} `json:"user"`
}

// Validate resolves the session cookie to a Principal, or
// ErrUnauthenticated when the credential is missing, invalid, or the user
// service cannot confirm it.
func (c *SessionClient) Validate(ctx context.Context, credential string) (*models.Principal, error) {
	if credential == "" {
		return nil, models.ErrUnauthenticated
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/users/session", nil)
	if err != nil {
		return nil, models.ErrUnauthenticated
	}
	req.Header.Set("Cookie", credential)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("Session validation call failed", zap.Error(err))
		util.SessionValidationsTotal.WithLabelValues("error").Inc()
		return nil, models.ErrUnauthenticated
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		util.SessionValidationsTotal.WithLabelValues("rejected").Inc()
		return nil, models.ErrUnauthenticated
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil || session.User.ID == "" {
		util.SessionValidationsTotal.WithLabelValues("rejected").Inc()
		return nil, models.ErrUnauthenticated
	}

	util.SessionValidationsTotal.WithLabelValues("ok").Inc()
	return &models.Principal{
		ID:            session.User.ID,
		EmailVerified: session.User.EmailVerified,
	}, nil
}

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// How long before expiry a refresh is attempted.
const refreshSkew = 30 * time.Second

type reissueResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// RefreshingTokenSource holds an access/refresh token pair and reissues
// the access token through the backend's reissue endpoint when it is
// close to expiring.
type RefreshingTokenSource struct {
	baseURL    string
	HTTPClient *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiry       time.Time
}

func NewRefreshingTokenSource(baseURL string, accessToken string, refreshToken string, expiry time.Time) *RefreshingTokenSource {
	return &RefreshingTokenSource{
		baseURL:      baseURL,
		HTTPClient:   http.DefaultClient,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiry:       expiry,
	}
}

func (s *RefreshingTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken == "" && s.refreshToken == "" {
		return "", ErrNoCredential
	}
	if s.accessToken != "" && (s.expiry.IsZero() || time.Until(s.expiry) > refreshSkew) {
		return s.accessToken, nil
	}
	if err := s.reissue(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Caller must hold s.mu.
func (s *RefreshingTokenSource) reissue(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/auth/reissue", s.baseURL), bytes.NewReader(nil))
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", s.refreshToken))

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token reissue failed (%d): %s", resp.StatusCode, string(body))
	}

	var rr reissueResponse
	if err = json.Unmarshal(body, &rr); err != nil {
		return err
	}
	s.accessToken = rr.AccessToken
	if rr.RefreshToken != "" {
		s.refreshToken = rr.RefreshToken
	}
	if rr.ExpiresIn > 0 {
		s.expiry = time.Now().Add(time.Duration(rr.ExpiresIn) * time.Second)
	} else {
		s.expiry = time.Time{}
	}
	log.Debug("access token reissued")
	return nil
}

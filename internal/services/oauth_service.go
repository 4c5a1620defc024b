package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL is the OpenID userinfo endpoint queried after the code exchange.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleAuthenticator drives the Google authorization code flow.
type GoogleAuthenticator interface {
	// AuthCodeURL is where the browser is sent to consent.
	AuthCodeURL(state string) string
	// Exchange trades the callback code for the account profile.
	Exchange(ctx context.Context, code string) (*GoogleProfile, error)
}

// GoogleOAuth implements GoogleAuthenticator with golang.org/x/oauth2.
type GoogleOAuth struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleOAuth creates a Google authenticator for the given client credentials.
func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: GoogleUserInfoURL,
	}
}

func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*GoogleProfile, error) {
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange google auth code: %w", err)
	}

	resp, err := g.config.Client(ctx, token).Get(g.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch google user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("google user info returned status %d: %s", resp.StatusCode, body)
	}

	var info struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode google user info: %w", err)
	}
	return &GoogleProfile{
		ID:        info.Sub,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}

// OAuthStateSigner issues and checks the state parameter of the OAuth round trip.
// A state is an HS256 token carrying a random nonce and an expiry.
type OAuthStateSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewOAuthStateSigner creates a signer keyed with secret.
func NewOAuthStateSigner(secret string, ttl time.Duration) *OAuthStateSigner {
	return &OAuthStateSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue returns a fresh signed state.
func (s *OAuthStateSigner) Issue() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"nonce": uuid.New().String(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	})
	state, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign oauth state: %w", err)
	}
	return state, nil
}

// Verify checks the signature and expiry of state.
func (s *OAuthStateSigner) Verify(state string) error {
	token, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid oauth state: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid oauth state")
	}
	if nonce, _ := claims["nonce"].(string); nonce == "" {
		return fmt.Errorf("invalid oauth state: missing nonce")
	}
	return nil
}

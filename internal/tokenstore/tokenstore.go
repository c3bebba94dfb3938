// package tokenstore persists the card platform credential on disk and keeps
// it fresh: expired access tokens are renewed through the OAuth2 refresh
// grant, and first-time authentication runs the device-code flow.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"golang.org/x/oauth2"

	"mixcard/internal/models"
	"mixcard/internal/shared"
)

// scopes requested for card upload and offline refresh.
var scopes = []string{"profile", "offline_access", "openid"}

// Store is the file-backed credential store. Writes are atomic (temp file +
// rename) and serialized across processes with a sibling lock file.
type Store struct {
	path     string
	audience string
	config   *oauth2.Config
	logger   *log.Logger
	lock     *flock.Flock
}

// New creates a Store at path. authURL is the platform's login host and
// audience the API identifier sent with the device-code request.
func New(path, clientID, authURL, audience string, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	authURL = strings.TrimRight(authURL, "/")
	return &Store{
		path:     path,
		audience: audience,
		logger:   logger,
		lock:     flock.New(path + ".lock"),
		config: &oauth2.Config{
			ClientID: clientID,
			Scopes:   scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:       authURL + "/authorize",
				TokenURL:      authURL + "/oauth/token",
				DeviceAuthURL: authURL + "/oauth/device/code",
			},
		},
	}
}

// Path returns the store's file location.
func (s *Store) Path() string { return s.path }

// OAuthConfig returns the authorization-code flow configuration for the web
// wizard, with the given callback URL.
func (s *Store) OAuthConfig(redirectURL string) *oauth2.Config {
	cfg := *s.config
	cfg.RedirectURL = redirectURL
	return &cfg
}

// Load reads the stored credential. A missing or malformed file is treated
// as not authenticated, never as an error.
func (s *Store) Load() (*models.Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token store: %w", err)
	}

	var cred models.Credential
	if err := json.Unmarshal(data, &cred); err != nil || cred.AccessToken == "" {
		s.logger.Warn("ignoring malformed token store", "path", s.path)
		return nil, nil
	}
	return &cred, nil
}

// Save writes the credential atomically with owner-only permissions.
func (s *Store) Save(cred *models.Credential) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock token store: %w", err)
	}
	defer s.lock.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := shared.MarshalJSON(cred, true)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace token store: %w", err)
	}
	return nil
}

// Clear removes the stored credential. Clearing an empty store is a no-op.
func (s *Store) Clear() error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock token store: %w", err)
	}
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token store: %w", err)
	}
	return nil
}

// Token returns a valid access token, refreshing and rewriting the store
// when the stored one has expired.
func (s *Store) Token(ctx context.Context) (string, error) {
	cred, err := s.Load()
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", shared.ErrNotAuthenticated
	}
	if cred.Valid() {
		return cred.AccessToken, nil
	}
	if !cred.Refreshable() {
		return "", shared.ErrAuthExpired
	}

	stale := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
	}
	fresh, err := s.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	cred.AccessToken = fresh.AccessToken
	cred.Expiry = fresh.Expiry
	if fresh.RefreshToken != "" {
		cred.RefreshToken = fresh.RefreshToken
	}
	if err := s.Save(cred); err != nil {
		return "", err
	}

	s.logger.Debug("access token refreshed", "expiry", cred.Expiry)
	return cred.AccessToken, nil
}

// StartDeviceFlow requests a device code from the platform.
func (s *Store) StartDeviceFlow(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	resp, err := s.config.DeviceAuth(ctx, oauth2.SetAuthURLParam("audience", s.audience))
	if err != nil {
		return nil, fmt.Errorf("failed to request device code: %w", err)
	}
	return resp, nil
}

// CompleteDeviceFlow polls until the user authorizes the device code, then
// persists and returns the credential.
func (s *Store) CompleteDeviceFlow(ctx context.Context, da *oauth2.DeviceAuthResponse) (*models.Credential, error) {
	tok, err := s.config.DeviceAccessToken(ctx, da)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "expired_token"):
			return nil, fmt.Errorf("%w: device code expired", shared.ErrAuthTimeout)
		case strings.Contains(err.Error(), "access_denied"):
			return nil, fmt.Errorf("%w: user declined authorization", shared.ErrAuthDenied)
		default:
			return nil, fmt.Errorf("device authorization failed: %w", err)
		}
	}

	cred := &models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if err := s.Save(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// RunDeviceFlow is the interactive login path: request a code, hand the
// verification details to prompt, open the browser, and wait for approval.
func (s *Store) RunDeviceFlow(ctx context.Context, prompt func(verificationURL, userCode string)) (*models.Credential, error) {
	da, err := s.StartDeviceFlow(ctx)
	if err != nil {
		return nil, err
	}

	verification := da.VerificationURIComplete
	if verification == "" {
		verification = da.VerificationURI
	}
	if prompt != nil {
		prompt(verification, da.UserCode)
	}
	if err := shared.OpenBrowser(verification); err != nil {
		s.logger.Debug("could not open browser", "err", err)
	}

	return s.CompleteDeviceFlow(ctx, da)
}

// SaveOAuthToken persists a token obtained through the web wizard's
// authorization-code flow.
func (s *Store) SaveOAuthToken(tok *oauth2.Token) error {
	return s.Save(&models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	})
}

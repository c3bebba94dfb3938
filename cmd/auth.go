package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"mixcard/internal/server"
	"mixcard/internal/shared"
)

const callbackAddr = "localhost:8765"

// AuthLogin authenticates against the card service. The device code flow is
// the default; --browser runs the authorization code flow with a local
// callback server instead.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.config.Destination.ClientID == "" {
		return fmt.Errorf("%w: destination.client_id is not configured", shared.ErrMissingCredentials)
	}

	if cmd.Bool("browser") {
		return r.browserLogin(ctx)
	}

	cred, err := r.store.RunDeviceFlow(ctx, func(verificationURL, userCode string) {
		r.writePlain("Open %s and enter the code: %s\n", verificationURL, userCode)
		r.writePlain("Waiting for confirmation...\n")
	})
	if err != nil {
		return err
	}

	r.logger.Info("authentication successful", "expiry", cred.Expiry)
	return r.writePlain("✓ Authentication successful\n")
}

// browserLogin runs the authorization code flow: a temporary HTTP server on
// localhost handles the callback and the store persists the token.
func (r *Runner) browserLogin(ctx context.Context) error {
	state := shared.GenerateID()
	config := r.store.OAuthConfig("http://" + callbackAddr + "/callback")
	handler := server.NewOAuthHandler(config, state, r.store.SaveOAuthToken)

	router := server.NewBasicRouter()
	router.Handler(handler)
	srv := &http.Server{Addr: callbackAddr, Handler: router}
	go srv.ListenAndServe()
	defer srv.Shutdown(context.Background())

	authURL := config.AuthCodeURL(state)
	r.writePlain("Opening browser for authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.writePlain("Visit this URL to authorize:\n%s\n", authURL)
	}

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAuthDenied, err)
		}
		r.logger.Info("authentication successful")
		return r.writePlain("✓ Authentication successful\n")
	case <-time.After(5 * time.Minute):
		return shared.ErrAuthTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AuthStatus shows the stored credential state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	cred, err := r.store.Load()
	if err != nil {
		return err
	}

	if cred == nil {
		r.writePlain("✗ Not authenticated\n")
		r.writePlain("Run 'mixcard auth login' to connect your account.\n")
		return nil
	}

	switch {
	case cred.Valid():
		r.writePlain("✓ Authenticated\n")
		r.writePlain("Token expires: %s\n", cred.Expiry.Local().Format(time.RFC1123))
	case cred.Refreshable():
		r.writePlain("✓ Authenticated (token expired, will refresh on next use)\n")
	default:
		r.writePlain("✗ Token expired and no refresh token stored\n")
		r.writePlain("Run 'mixcard auth login' to reconnect.\n")
	}

	if cred.AccountID != "" {
		r.writePlain("Account: %s\n", cred.AccountID)
	}
	r.writePlain("Token file: %s\n", r.store.Path())
	return nil
}

// AuthLogout deletes the stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.store.Clear(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

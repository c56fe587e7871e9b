package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/server"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// authAction returns the OAuth2 login action for a service.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// waits for the provider to deliver the code to the callback.
func (r *Runner) authAction(service string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		svc, err := r.resolveService(service)
		if err != nil {
			return err
		}

		authURL, err := svc.Authenticate(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}

		if authURL == "" {
			r.writePlain("✓ Already authenticated with %s\n", svc.Name())
			return nil
		}

		if err := r.doOAuth(ctx, svc, authURL); err != nil {
			return err
		}

		r.writePlainln("✓ Authorization successful")
		r.writePlain("You can now use: tunesync %s playlists\n", service)

		return nil
	}
}

// logoutAction returns the action that clears a service's cached tokens.
func (r *Runner) logoutAction(service string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		svc, err := r.resolveService(service)
		if err != nil {
			return err
		}

		if err := svc.Logout(); err != nil {
			return fmt.Errorf("failed to clear tokens: %w", err)
		}

		r.writePlain("✓ Logged out of %s\n", svc.Name())
		return nil
	}
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, svc services.Service, authURL string) error {
	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)

	r.writePlain("→ Opening browser for %s authorization...\n", svc.Name())
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))

	if err := server.WaitForCallback(waitCtx, serverAddr, svc, router); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	return nil
}

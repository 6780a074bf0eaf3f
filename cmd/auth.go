package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/server"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

const authTimeout = 2 * time.Minute

// AuthLogin runs the browser OAuth flow for spotify or youtube_music.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("service")
	if name == "" {
		return fmt.Errorf("%w: service (spotify or youtube_music)", shared.ErrMissingArgument)
	}
	service, err := models.ParseServiceType(name)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	conn, err := r.connectors.Get(service)
	if err != nil {
		return err
	}
	oauthConn, ok := conn.(services.OAuthConnector)
	if !ok {
		return fmt.Errorf("%w: %s is not authorized through the browser; use 'plsync auth apple'", shared.ErrInvalidService, service)
	}
	if !oauthConn.IsConfigured() {
		return fmt.Errorf("%w: set the %s client_id and client_secret in %s", shared.ErrNotConfigured, service, r.configPath)
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = authTimeout
	}
	if err := r.doOAuth(ctx, oauthConn, timeout); err != nil {
		return err
	}

	r.writePlainln("✓ %s authorization successful", service.DisplayName())
	r.writePlain("You can now use: plsync playlists --service %s\n", service)
	return nil
}

// doOAuth serves the callback route on the configured address while the user authorizes in the browser.
func (r *Runner) doOAuth(ctx context.Context, conn services.OAuthConnector, timeout time.Duration) error {
	addr := r.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := server.New(server.Options{Addr: addr, Manager: r.manager, Logger: r.logger})

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", conn.Service(), addr)
		serverErrors <- srv.Serve(serveCtx, ln)
	}()

	authURL, err := conn.AuthURL(ctx)
	if err != nil {
		cancel()
		<-serverErrors
		return fmt.Errorf("failed to build authorization URL: %w", err)
	}

	r.writePlain("→ Opening browser for %s authorization...\n", conn.Service().DisplayName())
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.AuthResult
	select {
	case result = <-srv.Auth().Result():
	case err := <-serverErrors:
		if err == nil {
			err = errors.New("server stopped")
		}
		return fmt.Errorf("server error: %w", err)
	case <-timer.C:
		cancel()
		<-serverErrors
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		<-serverErrors
		return ctx.Err()
	}

	cancel()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if err := result.Error(); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	return nil
}

// AuthApple stores Apple Music tokens obtained from MusicKit.
func (r *Runner) AuthApple(ctx context.Context, cmd *cli.Command) error {
	developerToken := cmd.String("developer-token")
	userToken := cmd.String("user-token")
	if developerToken == "" && userToken == "" {
		return fmt.Errorf("%w: --developer-token or --user-token", shared.ErrMissingArgument)
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	conn, err := r.connectors.Get(models.AppleMusic)
	if err != nil {
		return err
	}
	setter, ok := conn.(server.AppleTokenSetter)
	if !ok {
		return fmt.Errorf("%w: Apple Music connector does not accept tokens", shared.ErrInvalidService)
	}

	if userToken == "" {
		if err := setter.SetDeveloperToken(ctx, developerToken); err != nil {
			return err
		}
		return r.writePlain("✓ Apple Music developer token saved\n")
	}

	if err := setter.SetTokens(ctx, developerToken, userToken); err != nil {
		return err
	}
	return r.writePlain("✓ Apple Music tokens saved\n")
}

// AuthStatus reports configuration and token readiness per service.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	statuses := r.connectors.Statuses(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(statuses, true)
	}

	for _, status := range statuses {
		switch {
		case status.Ready:
			r.writePlain("✓ %-14s authenticated\n", status.Name)
		case status.Configured:
			r.writePlain("✗ %-14s not authenticated\n", status.Name)
		default:
			r.writePlain("- %-14s not configured\n", status.Name)
		}
	}
	return nil
}

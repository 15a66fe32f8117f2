package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/multify/internal/formatter"
	"github.com/desertthunder/multify/internal/server"
	"github.com/desertthunder/multify/internal/shared"
	"github.com/desertthunder/multify/internal/token"
)

// loginTimeout bounds the wait for the browser to come back from the consent page.
const loginTimeout = 2 * time.Minute

// SpotifyLogin authorizes the CLI with Spotify.
//
// Starts a local HTTP server on the redirect URI, opens the consent page, and
// hands the redirect to the token manager, which exchanges the code through the backend.
func (r *Runner) SpotifyLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}

	state := shared.GenerateID()
	manager, err := r.tokenManager(state)
	if err != nil {
		return err
	}
	defer manager.Stop()

	if cmd.Bool("force") {
		manager.Logout()
	}

	err = manager.Login(ctx, "")
	if err == nil {
		r.writePlain("✓ Already logged in (token expires %s)\n", r.expiry(manager))
		return nil
	}

	var consent *token.ConsentRequiredError
	if !errors.As(err, &consent) {
		return err
	}

	redirectURL, err := r.awaitRedirect(ctx, state, consent.URL)
	if err != nil {
		return err
	}

	if err := manager.Login(ctx, redirectURL); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token expires %s\n\n", r.expiry(manager))
	r.writePlain("You can now use: multify party create \"My Party\"\n")
	return nil
}

// SpotifyStatus reports the cached token state.
func (r *Runner) SpotifyStatus(ctx context.Context, cmd *cli.Command) error {
	manager, err := r.tokenManager("")
	if err != nil {
		return err
	}
	defer manager.Stop()

	status := map[string]any{"state": manager.State().String()}
	if record, ok := manager.Record(); ok {
		status["expires_at"] = record.Expiry().Format(time.RFC3339)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlain("State: %s\n", status["state"])
	if expires, ok := status["expires_at"]; ok {
		r.writePlain("Expires: %s\n", expires)
	}
	return nil
}

func (r *Runner) expiry(manager *token.Manager) string {
	record, ok := manager.Record()
	if !ok {
		return "unknown"
	}
	return record.Expiry().Format(time.Kitchen)
}

// awaitRedirect serves the OAuth callback and returns the URL the browser was redirected to.
func (r *Runner) awaitRedirect(ctx context.Context, state, consentURL string) (string, error) {
	redirectURI := r.spotify.RedirectURL()
	callback, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: invalid redirect URI %q", shared.ErrInvalidConfig, redirectURI)
	}

	oauthHandler, err := server.NewOAuthHandler(redirectURI, state)
	if err != nil {
		return "", err
	}
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	httpServer := &http.Server{
		Addr:    callback.Host,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", callback.Host)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(consentURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", consentURL)
	}

	r.writePlain("→ Waiting for authorization (%v timeout)...\n", loginTimeout)

	timeout := time.NewTimer(loginTimeout)
	defer timeout.Stop()

	select {
	case result := <-oauthHandler.Result():
		if result.Error() != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
		}
		return result.RedirectURL, nil
	case err := <-serverErrors:
		return "", fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return "", fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, loginTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SpotifyPlaylists lists one page of the current user's playlists.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}
	accessToken, err := r.accessToken()
	if err != nil {
		return err
	}

	cursor := cmd.String("cursor")
	if cursor == "" {
		cursor = fmt.Sprintf("?offset=0&limit=%d", cmd.Int("limit"))
	}

	r.logger.Debug("listing spotify playlists", "cursor", cursor)

	page, err := r.spotify.Playlists(ctx, accessToken, cursor)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(page.Items))
	for i, p := range page.Items {
		r.writePlain("%d. %s\n", i+1, p.Name)
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		r.writePlain("\n")
	}
	if page.Next != "" {
		r.writePlain("Next page: multify spotify playlists --cursor %q\n", page.Next)
	}

	return nil
}

// SpotifySearch searches the Spotify catalog for tracks.
func (r *Runner) SpotifySearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	if err := r.requireSpotify(); err != nil {
		return err
	}
	accessToken, err := r.accessToken()
	if err != nil {
		return err
	}

	tracks, err := r.spotify.SearchTracks(ctx, accessToken, query, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	if len(tracks) == 0 {
		return r.writePlain("No tracks found for %q\n", query)
	}

	r.writePlainHeader(fmt.Sprintf("Results for %q", query))
	for i, t := range tracks {
		r.writePlain("%d. %s - %s\n", i+1, formatter.Artists(t.Artists), t.Name)
		r.writePlain("   ID: %s\n", t.ID)
		if t.Album != "" {
			r.writePlain("   Album: %s\n", t.Album)
		}
	}
	return nil
}

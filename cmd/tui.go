package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/multify/internal/live"
	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/services"
	"github.com/desertthunder/multify/internal/shared"
	"github.com/desertthunder/multify/internal/ui"
)

// TUI launches the interactive party queue.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("party")
	partyID, err := r.resolveParty(ctx, ref)
	if err != nil {
		return err
	}

	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logFile, err := openLogFile(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()
	r.SetLogger(shared.WithLogger(shared.NewLogger(logFile), "party", partyID, "user", user))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := ui.Options{
		PartyID:   partyID,
		PartyName: "Party " + ref,
		Backend:   r.backend,
		Search:    r.searchFunc(),
	}

	header := http.Header{}
	header.Set(services.UserHeader, user)
	if sub, err := live.Subscribe(ctx, r.backend.LiveURL(partyID), header); err != nil {
		r.logger.Warn("live updates unavailable", "error", err)
	} else {
		defer sub.Close()
		opts.Feed = sub
	}

	p := tea.NewProgram(ui.NewModel(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// searchFunc searches the catalog with the cached token, or returns nil when
// Spotify is not configured.
func (r *Runner) searchFunc() ui.SearchFunc {
	if r.spotify == nil {
		return nil
	}
	return func(ctx context.Context, query string) ([]models.Track, error) {
		accessToken, err := r.accessToken()
		if err != nil {
			return nil, err
		}
		return r.spotify.SearchTracks(ctx, accessToken, query, 20)
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/multify/internal/live"
	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/queue"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QueueView ViewState = iota
	SearchView
	ResultsView
)

// Backend is the party API used by the TUI. Implemented by services.CallableClient.
type Backend interface {
	Queue(ctx context.Context, partyID string) ([]queue.RankedTrack, error)
	Vote(ctx context.Context, partyID, trackID string, up, down bool) (models.VoteState, error)
	AddTrack(ctx context.Context, partyID, trackID string) error
}

// Feed delivers live queue snapshots. Implemented by live.Subscription.
type Feed interface {
	Next() (live.Message, error)
}

// SearchFunc searches the catalog for tracks.
type SearchFunc func(ctx context.Context, query string) ([]models.Track, error)

// Options configures a [Model]. Search and Feed are optional.
type Options struct {
	PartyID   string
	PartyName string
	Backend   Backend
	Search    SearchFunc
	Feed      Feed
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	partyID   string
	partyName string
	backend   Backend
	search    SearchFunc
	feed      Feed
	width     int
	height    int
	queueList list.Model
	tracks    []queue.RankedTrack
	input     textinput.Model
	results   list.Model
	status    string
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model for one party.
func NewModel(ctx context.Context, opts Options) *Model {
	input := textinput.New()
	input.Placeholder = "artist or track"
	input.CharLimit = 100

	m := &Model{
		ctx:       ctx,
		view:      QueueView,
		partyID:   opts.PartyID,
		partyName: opts.PartyName,
		backend:   opts.Backend,
		search:    opts.Search,
		feed:      opts.Feed,
		input:     input,
		help:      help.New(),
		keys:      newKeyMap(),
	}
	m.queueList = newList(m.title(), nil)
	m.results = newList("Search results", nil)
	return m
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}

func (m *Model) title() string {
	if m.partyName != "" {
		return m.partyName
	}
	return "Party " + m.partyID
}

// Init fetches the queue and starts listening to the live feed.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchQueue(), m.waitForFeed())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.queueList.SetSize(msg.Width-4, msg.Height-8)
		m.results.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.forceQuit) {
			return m, tea.Quit
		}
		switch m.view {
		case QueueView:
			return m.handleQueueKeys(msg)
		case SearchView:
			return m.handleSearchKeys(msg)
		case ResultsView:
			return m.handleResultsKeys(msg)
		}

	case queueFetchedMsg:
		var cmd tea.Cmd
		if msg.live {
			cmd = m.waitForFeed()
		}
		if msg.err != nil {
			m.err = msg.err
			return m, cmd
		}
		m.err = nil
		m.setTracks(msg.tracks)
		return m, cmd

	case voteDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.applyVote(msg.trackID, msg.prev)
			return m, nil
		}
		m.applyVote(msg.trackID, msg.state)
		return m, m.fetchQueue()

	case searchDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = SearchView
			return m, nil
		}
		items := make([]list.Item, len(msg.tracks))
		for i, t := range msg.tracks {
			items[i] = trackItem{track: t}
		}
		m.results.SetItems(items)
		m.results.Title = fmt.Sprintf("Results for %q", msg.query)
		m.results.Select(0)
		m.view = ResultsView
		return m, nil

	case trackAddedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status = fmt.Sprintf("Queued %s", msg.track.Name)
		m.view = QueueView
		return m, m.fetchQueue()

	case feedClosedMsg:
		m.feed = nil
		if msg.err != nil {
			m.err = fmt.Errorf("live updates stopped: %w", msg.err)
		}
		return m, nil
	}

	return m.updateLists(msg)
}

// setTracks replaces the queue, keeping the cursor on the same track when it is still queued.
func (m *Model) setTracks(tracks []queue.RankedTrack) {
	selected := ""
	if item, ok := m.queueList.SelectedItem().(queueItem); ok {
		selected = item.track.ID
	}

	m.tracks = tracks
	items := make([]list.Item, len(tracks))
	cursor := 0
	for i, t := range tracks {
		items[i] = queueItem{rank: i + 1, track: t}
		if t.ID == selected {
			cursor = i
		}
	}
	m.queueList.SetItems(items)
	m.queueList.Select(cursor)
}

// applyVote sets the viewer's markers on a track and moves its counters to match.
// Scores are left to the next snapshot since the scorer lives on the server.
func (m *Model) applyVote(trackID string, state models.VoteState) {
	tracks := make([]queue.RankedTrack, len(m.tracks))
	copy(tracks, m.tracks)
	for i := range tracks {
		if tracks[i].ID != trackID {
			continue
		}
		tracks[i].Likes += delta(tracks[i].Liked, state.Up)
		tracks[i].Dislikes += delta(tracks[i].Disliked, state.Down)
		tracks[i].Liked = state.Up
		tracks[i].Disliked = state.Down
	}
	m.setTracks(tracks)
}

func delta(was, now bool) int {
	switch {
	case now && !was:
		return 1
	case was && !now:
		return -1
	}
	return 0
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case QueueView:
		body = m.renderQueue()
	case SearchView:
		body = m.renderSearch()
	case ResultsView:
		body = m.renderResults()
	}

	var footer []string
	if m.err != nil {
		footer = append(footer, styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	} else if m.status != "" {
		footer = append(footer, styles.ok.Render(m.status))
	}
	if m.feed == nil && m.view == QueueView {
		footer = append(footer, styles.warn.Render("offline: live updates are off"))
	}

	if len(footer) == 0 {
		return body
	}
	return body + "\n" + strings.Join(footer, "\n")
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.like):
		return m, m.toggle(models.Like)
	case key.Matches(msg, m.keys.dislike):
		return m, m.toggle(models.Dislike)
	case key.Matches(msg, m.keys.refresh):
		m.status = ""
		return m, m.fetchQueue()
	case key.Matches(msg, m.keys.search):
		if m.search == nil {
			m.status = "Search needs a Spotify login"
			return m, nil
		}
		m.view = SearchView
		m.err = nil
		m.input.SetValue("")
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.queueList, cmd = m.queueList.Update(msg)
	return m, cmd
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.input.Blur()
		m.view = QueueView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil
		}
		m.input.Blur()
		return m, m.runSearch(query)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleResultsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = QueueView
		return m, nil
	case key.Matches(msg, m.keys.search):
		m.view = SearchView
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.results.SelectedItem().(trackItem); ok {
			return m, m.addTrack(item.track)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case QueueView:
		m.queueList, cmd = m.queueList.Update(msg)
	case SearchView:
		m.input, cmd = m.input.Update(msg)
	case ResultsView:
		m.results, cmd = m.results.Update(msg)
	}
	return m, cmd
}

// toggle applies the vote control rules to the selected track, shows the result
// right away and persists it. A failed vote restores the previous markers.
func (m *Model) toggle(d models.Direction) tea.Cmd {
	item, ok := m.queueList.SelectedItem().(queueItem)
	if !ok {
		return nil
	}

	current := models.VoteState{Up: item.track.Liked, Down: item.track.Disliked}
	next := current.Toggle(d)
	trackID := item.track.ID
	m.applyVote(trackID, next)

	return func() tea.Msg {
		state, err := m.backend.Vote(m.ctx, m.partyID, trackID, next.Up, next.Down)
		return voteDoneMsg{trackID: trackID, prev: current, state: state, err: err}
	}
}

func (m *Model) fetchQueue() tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.backend.Queue(m.ctx, m.partyID)
		return queueFetchedMsg{tracks: tracks, err: err}
	}
}

func (m *Model) waitForFeed() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	feed := m.feed
	return func() tea.Msg {
		msg, err := feed.Next()
		if err != nil {
			return feedClosedMsg{err: err}
		}
		return queueFetchedMsg{tracks: msg.Tracks, live: true}
	}
}

func (m *Model) runSearch(query string) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.search(m.ctx, query)
		return searchDoneMsg{query: query, tracks: tracks, err: err}
	}
}

func (m *Model) addTrack(track models.Track) tea.Cmd {
	return func() tea.Msg {
		err := m.backend.AddTrack(m.ctx, m.partyID, track.ID)
		return trackAddedMsg{track: track, err: err}
	}
}

func (m *Model) renderQueue() string {
	if len(m.tracks) == 0 {
		title := styles.title.Render(m.title())
		empty := styles.help.Render("The queue is empty. Press / to search for tracks.")
		return fmt.Sprintf("%s\n%s\n\n%s", title, empty, m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return fmt.Sprintf("%s\n\n%s", m.queueList.View(), m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m *Model) renderSearch() string {
	title := styles.title.Render("Search Spotify")
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back})
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.input.View(), helpView)
}

func (m *Model) renderResults() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.search, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.results.View(), helpView)
}

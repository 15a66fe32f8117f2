// Package ui implements the party terminal interface using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [QueueView] : the ranked party queue with the viewer's own votes marked
//  2. [SearchView] : a text input for catalog searches
//  3. [ResultsView] : search results; enter queues the selected track
//
// Votes follow the list-item rules of [models.VoteState]: + and - toggle the
// viewer's upvote or downvote on the selected track. When a live [Feed] is set,
// every snapshot pushed by the backend replaces the queue without a refetch.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui

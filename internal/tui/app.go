package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jfmyers9/luna/internal/music"
	"github.com/jfmyers9/luna/internal/player"
	"github.com/rivo/tview"
)

// volumeStep is the change applied by the +/- keys
const volumeStep = 0.05

// Player is the playback surface driven by the TUI
type Player interface {
	PlayTrack(ctx context.Context, track music.Track, pc *player.PlaylistContext) error
	PlayAllFrom(ctx context.Context, index int) error
	SkipNext(ctx context.Context) error
	SkipPrev(ctx context.Context) error
	TogglePause(ctx context.Context) error
	Stop(ctx context.Context) error
	SetVolume(ctx context.Context, v float64) (float64, error)
	OpenPlaylist(ctx context.Context, name string) error
	Shuffle(ctx context.Context) error
	Sort(ctx context.Context) error
	AddToPlaylist(ctx context.Context, name string, track music.Track) error
	RemoveFromPlaylist(ctx context.Context, name string, indices []int) ([]music.Track, error)
	Subscribe() (<-chan player.Event, func())
	State() player.State
}

// Library lists stored playlists
type Library interface {
	List() []string
	Get(name string) ([]music.Track, error)
}

// Searcher queries the remote catalog
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]music.Track, error)
}

// Config holds TUI configuration options
type Config struct {
	RefreshRate   time.Duration // How often to redraw the elapsed time
	SearchResults int           // Results requested per search
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate:   500 * time.Millisecond,
		SearchResults: 10,
	}
}

// App is the terminal player
type App struct {
	app        *tview.Application
	pages      *tview.Pages
	nowPlaying *tview.TextView
	playlists  *tview.List
	tracks     *tview.List
	results    *tview.List
	search     *tview.InputField
	status     *tview.TextView

	config   Config
	player   Player
	library  Library
	searcher Searcher

	// Guarded by mu
	mu         sync.Mutex
	last       player.Status
	clock      elapsedClock
	names      []string // playlists pane entries
	selected   string   // playlist shown in the tracks pane
	found      []music.Track
	message    string
	lastRender string

	cancelFunc context.CancelFunc
}

// New creates the TUI. searcher may be nil to disable search.
func New(cfg Config, p Player, library Library, searcher Searcher) *App {
	a := &App{
		app:      tview.NewApplication(),
		config:   cfg,
		player:   p,
		library:  library,
		searcher: searcher,
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	a.playlists = tview.NewList().ShowSecondaryText(false)
	a.playlists.SetBorder(true).
		SetTitle(" Playlists ").
		SetTitleAlign(tview.AlignLeft)
	a.playlists.SetChangedFunc(func(index int, _, _ string, _ rune) {
		if index >= 0 && index < len(a.names) {
			a.showPlaylist(a.names[index])
		}
	})

	a.tracks = tview.NewList().ShowSecondaryText(false)
	a.tracks.SetBorder(true).
		SetTitle(" Tracks ").
		SetTitleAlign(tview.AlignLeft)
	a.tracks.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		a.playSelected(index, false)
	})

	a.results = tview.NewList().ShowSecondaryText(false)
	a.results.SetBorder(true).
		SetTitle(" Search Results ").
		SetTitleAlign(tview.AlignLeft)
	a.results.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		a.playResult(index)
	})

	a.search = tview.NewInputField().
		SetLabel("Search: ").
		SetFieldWidth(0)
	a.search.SetDoneFunc(a.handleSearchDone)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText(helpText)

	library := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.playlists, 0, 1, true).
		AddItem(a.tracks, 0, 2, false)

	searchPage := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.search, 1, 0, true).
		AddItem(a.results, 0, 1, false)

	a.pages = tview.NewPages().
		AddPage("library", library, true, true).
		AddPage("search", searchPage, true, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 7, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.status, 1, 0, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(flex, true).SetFocus(a.playlists)
}

const helpText = "[gray]space:pause  n/p:next/prev  s:stop  a:play all/add  +/-:volume  x:shuffle  o:sort  d:remove  /:search  tab:focus  q:quit[-]"

// handleKeyEvent processes keyboard input outside of text entry
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	if a.app.GetFocus() == a.search {
		return event
	}

	switch event.Key() {
	case tcell.KeyTab:
		a.cycleFocus()
		return nil
	case tcell.KeyEscape:
		a.pages.SwitchToPage("library")
		a.app.SetFocus(a.playlists)
		return nil
	}

	switch event.Rune() {
	case 'q', 'Q':
		a.Stop()
		return nil
	case ' ':
		a.control("pause", a.player.TogglePause)
		return nil
	case 'n', 'N':
		a.control("next", a.player.SkipNext)
		return nil
	case 'p', 'P':
		a.control("previous", a.player.SkipPrev)
		return nil
	case 's', 'S':
		a.control("stop", a.player.Stop)
		return nil
	case '+', '=':
		a.changeVolume(volumeStep)
		return nil
	case '-', '_':
		a.changeVolume(-volumeStep)
		return nil
	case 'a', 'A':
		if a.app.GetFocus() == a.results {
			a.addResult(a.results.GetCurrentItem())
		} else {
			a.playSelected(a.tracks.GetCurrentItem(), true)
		}
		return nil
	case 'x', 'X':
		a.reorder("shuffle", a.player.Shuffle)
		return nil
	case 'o', 'O':
		a.reorder("sort", a.player.Sort)
		return nil
	case 'd', 'D':
		a.removeSelected()
		return nil
	case '/':
		a.pages.SwitchToPage("search")
		a.app.SetFocus(a.search)
		return nil
	}
	return event
}

func (a *App) cycleFocus() {
	name, _ := a.pages.GetFrontPage()
	if name == "search" {
		if a.app.GetFocus() == a.results {
			a.app.SetFocus(a.search)
		} else {
			a.app.SetFocus(a.results)
		}
		return
	}
	if a.app.GetFocus() == a.playlists {
		a.app.SetFocus(a.tracks)
	} else {
		a.app.SetFocus(a.playlists)
	}
}

// Run shows the TUI until the user quits or ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)
	defer a.cancelFunc()

	a.reloadPlaylists()

	events, unsubscribe := a.player.Subscribe()
	defer unsubscribe()

	go a.handleUpdates(ctx, events)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// handleUpdates consumes player events and drives periodic redraws.
// The ticker is the only source of redraws.
func (a *App) handleUpdates(ctx context.Context, events <-chan player.Event) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				a.mu.Lock()
				a.clock.observe(ev.Status.State, time.Now())
				a.last = ev.Status
				if ev.Err != nil {
					a.message = ev.Err.Error()
				}
				a.mu.Unlock()
			}
		}
	}()

	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = 500 * time.Millisecond
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.refresh()
		}
	}
}

func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		text := renderNowPlaying(a.last, a.clock.elapsed(time.Now()))
		if text != a.lastRender {
			a.lastRender = text
			a.nowPlaying.SetText(text)
		}

		if a.message != "" {
			a.status.SetText("[red]" + tview.Escape(a.message) + "[-]")
		} else {
			a.status.SetText(helpText)
		}
	})
}

// control runs a player call off the UI goroutine
func (a *App) control(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.report(what, fn(ctx))
	}()
}

// report records the outcome of a user action for the status bar
func (a *App) report(what string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case err == nil:
		a.message = ""
	case errors.Is(err, music.ErrSuperseded):
		// A newer request replaced this one; nothing to show
	default:
		a.message = fmt.Sprintf("%s: %v", what, err)
	}
}

func (a *App) changeVolume(delta float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := a.player.SetVolume(ctx, a.player.State().Volume+delta)
		a.report("volume", err)
	}()
}

func (a *App) reorder(what string, fn func(ctx context.Context) error) {
	a.mu.Lock()
	name := a.selected
	a.mu.Unlock()
	if name == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.player.OpenPlaylist(ctx, name)
		if err == nil {
			err = fn(ctx)
		}
		a.report(what, err)
		a.app.QueueUpdateDraw(func() { a.showPlaylist(name) })
	}()
}

// playSelected plays a track of the shown playlist, optionally as play-all.
// Downloads may take a while, so the request runs in the background.
func (a *App) playSelected(index int, all bool) {
	a.mu.Lock()
	name := a.selected
	a.mu.Unlock()
	if name == "" || index < 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := a.player.OpenPlaylist(ctx, name); err != nil {
			a.report("open", err)
			return
		}
		if all {
			a.report("play all", a.player.PlayAllFrom(ctx, index))
			return
		}
		items, err := a.library.Get(name)
		if err != nil || index >= len(items) {
			a.report("play", err)
			return
		}
		a.report("play", a.player.PlayTrack(ctx, items[index], &player.PlaylistContext{Name: name, Index: index}))
	}()
}

func (a *App) removeSelected() {
	a.mu.Lock()
	name := a.selected
	a.mu.Unlock()
	index := a.tracks.GetCurrentItem()
	if name == "" || index < 0 || a.tracks.GetItemCount() == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := a.player.RemoveFromPlaylist(ctx, name, []int{index})
		a.report("remove", err)
		a.app.QueueUpdateDraw(func() { a.showPlaylist(name) })
	}()
}

// handleSearchDone runs the query typed into the search field
func (a *App) handleSearchDone(key tcell.Key) {
	switch key {
	case tcell.KeyEscape:
		a.pages.SwitchToPage("library")
		a.app.SetFocus(a.playlists)
		return
	case tcell.KeyEnter:
	default:
		return
	}

	query := strings.TrimSpace(a.search.GetText())
	if query == "" || a.searcher == nil {
		return
	}

	a.results.Clear()
	a.results.AddItem("Searching...", "", 0, nil)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		found, err := a.searcher.Search(ctx, query, a.config.SearchResults)
		a.report("search", err)

		a.app.QueueUpdateDraw(func() {
			a.mu.Lock()
			a.found = found
			a.mu.Unlock()

			a.results.Clear()
			for _, t := range found {
				a.results.AddItem(tview.Escape(t.Title), "", 0, nil)
			}
			if len(found) > 0 {
				a.app.SetFocus(a.results)
			}
		})
	}()
}

// playResult plays a search result outside of any playlist
func (a *App) playResult(index int) {
	a.mu.Lock()
	if index < 0 || index >= len(a.found) {
		a.mu.Unlock()
		return
	}
	track := a.found[index]
	a.mu.Unlock()

	a.control("play", func(ctx context.Context) error {
		return a.player.PlayTrack(ctx, track, nil)
	})
}

// addResult stores a search result in the selected playlist
func (a *App) addResult(index int) {
	a.mu.Lock()
	name := a.selected
	if name == "" || index < 0 || index >= len(a.found) {
		a.mu.Unlock()
		return
	}
	track := a.found[index]
	a.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.report("add", a.player.AddToPlaylist(ctx, name, track))
		a.app.QueueUpdateDraw(func() { a.showPlaylist(name) })
	}()
}

// reloadPlaylists fills the playlists pane. Must run before app.Run or on
// the UI goroutine.
func (a *App) reloadPlaylists() {
	names := a.library.List()
	a.names = names
	a.playlists.Clear()
	for _, name := range names {
		a.playlists.AddItem(tview.Escape(name), "", 0, nil)
	}
	if len(names) > 0 {
		a.showPlaylist(names[0])
	}
}

// showPlaylist fills the tracks pane. Runs on the UI goroutine.
func (a *App) showPlaylist(name string) {
	items, err := a.library.Get(name)
	if err != nil {
		return
	}

	a.mu.Lock()
	a.selected = name
	a.mu.Unlock()

	current := a.tracks.GetCurrentItem()
	a.tracks.Clear()
	for i, t := range items {
		a.tracks.AddItem(fmt.Sprintf("%3d. %s", i+1, tview.Escape(t.Title)), "", 0, nil)
	}
	if current >= 0 && current < len(items) {
		a.tracks.SetCurrentItem(current)
	}
	a.tracks.SetTitle(fmt.Sprintf(" %s (%d) ", tview.Escape(name), len(items)))
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

// renderNowPlaying builds the now playing panel text
func renderNowPlaying(st player.Status, elapsed time.Duration) string {
	var sb strings.Builder
	sb.WriteString("\n")

	switch {
	case st.Downloading != nil:
		sb.WriteString(fmt.Sprintf("[yellow]Downloading[-] [white::b]%s[-:-:-]\n", tview.Escape(st.Downloading.Title)))
	case st.Track == nil || st.Status == music.StateStopped:
		sb.WriteString("[gray]No track playing[-]\n")
	default:
		sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(st.Track.Title)))
	}

	if st.Track != nil && st.Status != music.StateStopped {
		stateIcon := "[green]▶[-]" // Play triangle
		if st.Status == music.StatePaused {
			stateIcon = "[yellow]⏸[-]" // Pause icon
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", stateIcon, formatDuration(elapsed)))
	} else {
		sb.WriteString("\n")
	}

	var details []string
	if st.Playlist != "" && st.Index >= 0 {
		details = append(details, fmt.Sprintf("%s %d/%d", tview.Escape(st.Playlist), st.Index+1, len(st.Items)))
	}
	if st.PlayAll {
		details = append(details, "play all")
	}
	details = append(details, fmt.Sprintf("vol %d%%", int(st.Volume*100+0.5)))
	sb.WriteString("[gray]" + strings.Join(details, "  ") + "[-]")

	return sb.String()
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

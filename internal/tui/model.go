// Package tui is the terminal front end: a search box, a paginated listing with book buttons,
// a detail overlay, a login form and a one-line notification bar. It only renders and routes
// input; all state lives in the app components.
package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/and161185/retreat-client/internal/app"
	"github.com/and161185/retreat-client/internal/model"
	"github.com/and161185/retreat-client/internal/notify"
	"github.com/and161185/retreat-client/internal/overlay"
)

// Signal carries "something changed" from component callbacks into the event loop. Pending
// signals coalesce: the model re-reads all state on each one.
type Signal struct {
	ch chan struct{}
}

// NewSignal returns a Signal ready to be passed (as Notify) to app.New.
func NewSignal() *Signal { return &Signal{ch: make(chan struct{}, 1)} }

// Notify is safe from any goroutine and never blocks.
func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *Signal) wait() tea.Cmd {
	return func() tea.Msg {
		<-s.ch
		return changedMsg{}
	}
}

type (
	changedMsg  struct{}
	bookDoneMsg struct {
		id  int
		err error
	}
	loginDoneMsg struct{ err error }
)

type mode int

const (
	modeList mode = iota
	modeSearch
	modeLogin
)

// Model implements tea.Model.
type Model struct {
	app   *app.App
	sig   *Signal
	keys  KeyMap
	theme Theme

	mode     mode
	search   textinput.Model
	username textinput.Model
	password textinput.Model

	cursor  int
	lastSeq uint64
	booking map[int]bool // book requests in flight

	width, height int
}

// New returns the browser model over a. sig must be the Signal whose Notify was given to a.
func New(a *app.App, sig *Signal) Model {
	search := textinput.New()
	search.Prompt = "Search: "
	search.Placeholder = "title, location or tag"
	search.CharLimit = 120

	user := textinput.New()
	user.Prompt = "Username: "
	user.CharLimit = 64

	pass := textinput.New()
	pass.Prompt = "Password: "
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'
	pass.CharLimit = 128

	return Model{
		app:      a,
		sig:      sig,
		keys:     DefaultKeyMap,
		theme:    DefaultTheme,
		search:   search,
		username: user,
		password: pass,
		booking:  map[int]bool{},
	}
}

// Init loads the first page and the user's bookings.
func (m Model) Init() tea.Cmd {
	a := m.app
	return tea.Batch(
		m.sig.wait(),
		func() tea.Msg {
			a.Query.Submit()
			return nil
		},
		m.refreshBookings(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case changedMsg:
		m.syncCursor()
		return m, m.sig.wait()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.search.Width = max(10, msg.Width-len(m.search.Prompt)-2)
		m.layoutOverlay()
		return m, nil

	case bookDoneMsg:
		delete(m.booking, msg.id)
		if msg.err != nil {
			m.app.Log.Info("book", zap.Int("retreat_id", msg.id), zap.Error(msg.err))
		}
		m.app.Notes.BookingOutcome(msg.err)
		return m, nil

	case loginDoneMsg:
		m.app.Notes.LoginOutcome(msg.err)
		if msg.err == nil {
			m.leaveLogin()
		} else {
			m.password.SetValue("")
		}
		return m, nil

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.app.Overlay.ClickOutside(msg.X, msg.Y)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeLogin:
			return m.updateLogin(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := m.app
	if key.Matches(msg, m.keys.Quit) {
		a.Overlay.Release()
		return m, tea.Quit
	}

	if item, open := a.Overlay.Item(); open {
		switch {
		case key.Matches(msg, m.keys.Back):
			a.Overlay.Escape()
		case key.Matches(msg, m.keys.Book):
			return m, m.book(item.ID)
		}
		return m, nil
	}

	snap := a.Results.Snapshot()
	items := snap.Page.Items
	totalPages := snap.TotalPagesFor(a.Query.Term())
	switch {
	case key.Matches(msg, m.keys.Back):
		a.Notes.Dismiss()
	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		cmd := m.search.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Up):
		if !a.Scroll.Locked() && m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if !a.Scroll.Locked() && m.cursor < len(items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.PrevPage):
		a.Query.Prev()
	case key.Matches(msg, m.keys.NextPage):
		a.Query.Next(totalPages)
	case key.Matches(msg, m.keys.JumpPage):
		if n, err := strconv.Atoi(msg.String()); err == nil && n <= totalPages {
			a.Query.SetPage(n)
		}
	case key.Matches(msg, m.keys.Submit):
		if m.cursor < len(items) {
			a.Overlay.Select(items[m.cursor])
			m.layoutOverlay()
		}
	case key.Matches(msg, m.keys.Book):
		if m.cursor < len(items) {
			return m, m.book(items[m.cursor].ID)
		}
	case key.Matches(msg, m.keys.Refresh):
		a.Results.Refresh(a.Context())
		return m, m.refreshBookings()
	case key.Matches(msg, m.keys.Login):
		if !a.Session.LoggedIn() {
			m.mode = modeLogin
			m.password.SetValue("")
			m.password.Blur()
			cmd := m.username.Focus()
			return m, cmd
		}
	case key.Matches(msg, m.keys.Logout):
		if a.Session.LoggedIn() {
			if err := a.Logout(); err != nil {
				a.Log.Warn("logout", zap.Error(err))
			}
			a.Notes.Show(notify.Info, "Logged out")
		}
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.search.Blur()
		m.mode = modeList
		return m, nil
	case tea.KeyEnter:
		m.search.Blur()
		m.mode = modeList
		m.app.Query.Submit()
		return m, nil
	case tea.KeyCtrlC:
		m.app.Overlay.Release()
		return m, tea.Quit
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.app.Query.SetTerm(v)
	}
	return m, cmd
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.leaveLogin()
		return m, nil
	case tea.KeyCtrlC:
		m.app.Overlay.Release()
		return m, tea.Quit
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		cmd := m.toggleLoginFocus()
		return m, cmd
	case tea.KeyEnter:
		if m.username.Focused() {
			cmd := m.toggleLoginFocus()
			return m, cmd
		}
		return m, m.login(m.username.Value(), m.password.Value())
	}
	var cmd tea.Cmd
	if m.username.Focused() {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggleLoginFocus() tea.Cmd {
	if m.username.Focused() {
		m.username.Blur()
		return m.password.Focus()
	}
	m.password.Blur()
	return m.username.Focus()
}

func (m *Model) leaveLogin() {
	m.mode = modeList
	m.username.Blur()
	m.password.Blur()
	m.password.SetValue("")
}

// book runs the book action off the event loop. A listing already booked or already being
// booked is not sent again.
func (m Model) book(id int) tea.Cmd {
	if m.booking[id] || m.app.Bookings.Contains(id) {
		return nil
	}
	m.booking[id] = true
	a := m.app
	return func() tea.Msg {
		return bookDoneMsg{id: id, err: a.Booker.Book(a.Context(), id)}
	}
}

func (m Model) login(username, password string) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		return loginDoneMsg{err: a.Login(a.Context(), username, password)}
	}
}

func (m Model) refreshBookings() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		if err := a.Bookings.Refresh(a.Context()); err != nil {
			a.Log.Warn("refresh bookings", zap.Error(err))
		}
		return nil
	}
}

// syncCursor resets the cursor when a new page arrives and keeps it inside the item list.
func (m *Model) syncCursor() {
	snap := m.app.Results.Snapshot()
	if snap.Seq != m.lastSeq {
		m.lastSeq = snap.Seq
		m.cursor = 0
	}
	if m.cursor >= len(snap.Page.Items) {
		m.cursor = max(0, len(snap.Page.Items)-1)
	}
}

// layoutOverlay records where the detail box is drawn so clicks can be classified.
func (m *Model) layoutOverlay() {
	item, open := m.app.Overlay.Item()
	if !open {
		return
	}
	w, h := m.detailSize(item)
	m.app.Overlay.SetBounds(overlay.Bounds{
		X: max(0, (m.width-w)/2),
		Y: max(0, (m.height-h)/2),
		W: w,
		H: h,
	})
}

func (m Model) isBooked(l model.Listing) bool { return m.app.Bookings.Contains(l.ID) }

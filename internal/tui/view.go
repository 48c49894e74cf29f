package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/and161185/retreat-client/internal/errs"
	"github.com/and161185/retreat-client/internal/model"
	"github.com/and161185/retreat-client/internal/notify"
)

const detailWidth = 56

// View implements tea.Model.
func (m Model) View() string {
	if item, open := m.app.Overlay.Item(); open {
		box := m.renderDetail(item)
		if m.width == 0 || m.height == 0 {
			return box
		}
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	if m.mode == modeLogin {
		return m.renderLogin()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.search.View())
	b.WriteString("\n\n")
	b.WriteString(m.renderList())
	b.WriteString("\n")
	b.WriteString(m.renderPager())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.HeaderForeground).Render("Retreats")
	who := "not logged in"
	if u, ok := m.app.Session.Current(); ok {
		who = "logged in as " + u.Username
	}
	return title + "  " + lipgloss.NewStyle().Foreground(m.theme.FaintText).Render(who)
}

func (m Model) renderList() string {
	snap := m.app.Results.Snapshot()
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	if len(snap.Page.Items) == 0 {
		if snap.Loading {
			return faint.Render("Loading…")
		}
		return faint.Render("No retreats found.")
	}

	selected := lipgloss.NewStyle().
		Background(m.theme.SelectedBackground).
		Foreground(m.theme.SelectedForeground)
	normal := lipgloss.NewStyle().Foreground(m.theme.NormalText)

	var lines []string
	for i, l := range snap.Page.Items {
		row := fmt.Sprintf("%-28s %-12s %-10s %8s  %s",
			truncate(l.Title, 28), truncate(l.Location, 12), l.Date.String(), l.Price, m.bookLabel(l))
		if i == m.cursor {
			lines = append(lines, selected.Render("> "+row))
		} else {
			lines = append(lines, normal.Render("  "+row))
		}
	}
	return strings.Join(lines, "\n")
}

// bookLabel renders the book button: disabled "[Booked]" once the server lists the booking.
func (m Model) bookLabel(l model.Listing) string {
	switch {
	case m.isBooked(l):
		return lipgloss.NewStyle().Foreground(m.theme.Booked).Render("[Booked]")
	case m.booking[l.ID]:
		return lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("[Booking…]")
	}
	return lipgloss.NewStyle().Foreground(m.theme.BookAction).Render("[Book]")
}

func (m Model) renderPager() string {
	snap := m.app.Results.Snapshot()
	page := m.app.Query.Page()
	total := max(1, snap.Page.TotalPages)
	s := fmt.Sprintf("Page %d of %d", page, total)
	if snap.Loading {
		s += "  loading…"
	}
	if err := m.app.Results.LastError(); err != nil {
		s += "  (" + errs.Message(err) + ", showing last results)"
	}
	return lipgloss.NewStyle().Foreground(m.theme.FaintText).Render(s)
}

func (m Model) renderStatus() string {
	n, ok := m.app.Notes.Current(m.app.Clock.Now())
	if !ok {
		return ""
	}
	color := m.theme.InfoColor
	switch n.Level {
	case notify.Warning:
		color = m.theme.WarningColor
	case notify.Error:
		color = m.theme.ErrorColor
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(n.Text)
}

func (m Model) renderHelp() string {
	bindings := []struct{ keys, desc string }{
		{m.keys.Search.Help().Key, m.keys.Search.Help().Desc},
		{m.keys.Up.Help().Key + " " + m.keys.Down.Help().Key, "move"},
		{m.keys.PrevPage.Help().Key + " " + m.keys.NextPage.Help().Key, "page"},
		{m.keys.Submit.Help().Key, m.keys.Submit.Help().Desc},
		{m.keys.Book.Help().Key, m.keys.Book.Help().Desc},
		{m.keys.Refresh.Help().Key, m.keys.Refresh.Help().Desc},
	}
	if m.app.Session.LoggedIn() {
		bindings = append(bindings, struct{ keys, desc string }{m.keys.Logout.Help().Key, m.keys.Logout.Help().Desc})
	} else {
		bindings = append(bindings, struct{ keys, desc string }{m.keys.Login.Help().Key, m.keys.Login.Help().Desc})
	}
	bindings = append(bindings, struct{ keys, desc string }{m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc})

	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, b.keys+" "+b.desc)
	}
	return lipgloss.NewStyle().Foreground(m.theme.FaintText).Render(strings.Join(parts, " · "))
}

func (m Model) renderLogin() string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.BorderColor).
		Padding(1, 2)
	body := strings.Join([]string{
		lipgloss.NewStyle().Bold(true).Foreground(m.theme.HeaderForeground).Render("Log in"),
		"",
		m.username.View(),
		m.password.View(),
		"",
		lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("Tab switch · Enter submit · Esc cancel"),
	}, "\n")
	out := box.Render(body)
	if status := m.renderStatus(); status != "" {
		out += "\n" + status
	}
	return out
}

func (m Model) renderDetail(l model.Listing) string {
	label := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	field := func(name, value string) string {
		if value == "" {
			return ""
		}
		return label.Render(fmt.Sprintf("%-10s", name)) + value + "\n"
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(m.theme.HeaderForeground).Render(l.Title))
	b.WriteString("\n\n")
	if l.Description != "" {
		b.WriteString(lipgloss.NewStyle().Width(detailWidth - 4).Render(l.Description))
		b.WriteString("\n\n")
	}
	b.WriteString(field("Date", l.Date.String()))
	b.WriteString(field("Location", l.Location))
	b.WriteString(field("Price", string(l.Price)))
	if l.Duration > 0 {
		b.WriteString(field("Duration", fmt.Sprintf("%d days", l.Duration)))
	}
	b.WriteString(field("Type", l.Type))
	b.WriteString(field("Condition", l.Condition))
	b.WriteString(field("Tags", strings.Join(l.Tags, ", ")))
	b.WriteString("\n")
	b.WriteString(m.bookLabel(l))
	b.WriteString(label.Render("   b book · Esc close"))
	if status := m.renderStatus(); status != "" {
		b.WriteString("\n")
		b.WriteString(status)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.BorderColor).
		Padding(0, 1).
		Width(detailWidth).
		Render(b.String())
}

func (m Model) detailSize(l model.Listing) (int, int) {
	box := m.renderDetail(l)
	return lipgloss.Width(box), lipgloss.Height(box)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

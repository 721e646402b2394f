package center

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	notifcenter "github.com/nhle/farmfresh-notify/internal/center"
	"github.com/nhle/farmfresh-notify/internal/keys"
	"github.com/nhle/farmfresh-notify/internal/model"
	"github.com/nhle/farmfresh-notify/internal/theme"
)

// SelectedMsg is sent when the user opens a notification.
type SelectedMsg struct {
	ID string
}

// ComposeRequestMsg asks the parent to show the new-notification form.
type ComposeRequestMsg struct{}

// confirmKind identifies what the confirmation form will do.
type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmDelete
	confirmClearAll
)

// confirmBinding holds the confirm value on the heap so that huh's Value()
// pointer stays valid across Bubble Tea model copies.
type confirmBinding struct {
	ok bool
}

// Model is the notification center list view.
type Model struct {
	view        *notifcenter.View
	list        list.Model
	keys        *keys.KeyMap
	filter      notifcenter.Filter
	statusIndex int
	searchMode  bool
	searchInput textinput.Model

	confirm     *huh.Form
	confirmKind confirmKind
	confirmID   string
	cb          *confirmBinding

	width  int
	height int
}

// New creates a center view over v.
func New(v *notifcenter.View, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search notifications..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		view:        v,
		list:        l,
		keys:        k,
		filter:      notifcenter.Filter{Status: notifcenter.StatusAll},
		searchInput: si,
		cb:          &confirmBinding{},
		width:       width,
		height:      height,
	}
}

// SetNotifications merges the canonical list into the center and refreshes
// the visible rows.
func (m *Model) SetNotifications(canonical []model.Notification) tea.Cmd {
	m.view.Sync(canonical)
	return m.refresh()
}

// refresh recomputes the visible rows, keeping the selection on the same
// notification when it is still visible.
func (m *Model) refresh() tea.Cmd {
	selectedID := ""
	if it, ok := m.list.SelectedItem().(Item); ok {
		selectedID = it.Notification.ID
	}

	visible := m.view.Visible(m.filter)
	items := make([]list.Item, len(visible))
	target := -1
	for i, n := range visible {
		items[i] = Item{Notification: n}
		if n.ID == selectedID {
			target = i
		}
	}
	cmd := m.list.SetItems(items)
	if target >= 0 {
		m.list.Select(target)
	}
	return cmd
}

// Update handles messages for the center view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirm != nil {
		return m.updateConfirm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys filters as the user types; enter keeps the query, esc
// drops it.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		return m, nil

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.searchInput.Blur()
		m.filter.Query = ""
		return m, m.refresh()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.filter.Query = m.searchInput.Value()
	return m, tea.Batch(cmd, m.refresh())
}

// handleNormalKeys processes key input outside of search mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	selected, hasSelection := m.Selected()

	switch {
	case key.Matches(msg, m.keys.Select):
		if !hasSelection {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMsg{ID: selected.ID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.SetValue(m.filter.Query)
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.TabAll):
		return m, m.SetStatus(0)
	case key.Matches(msg, m.keys.TabUnread):
		return m, m.SetStatus(1)
	case key.Matches(msg, m.keys.TabStarred):
		return m, m.SetStatus(2)
	case key.Matches(msg, m.keys.TabPinned):
		return m, m.SetStatus(3)

	case key.Matches(msg, m.keys.CycleType):
		m.filter.Type = nextType(m.filter.Type)
		return m, m.refresh()

	case key.Matches(msg, m.keys.CyclePriority):
		m.filter.Priority = nextPriority(m.filter.Priority)
		return m, m.refresh()

	case key.Matches(msg, m.keys.ToggleArchive):
		return m, m.ToggleArchiveView()

	case key.Matches(msg, m.keys.ClearFilters):
		return m, m.ClearFilters()

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.MarkAllRead()

	case key.Matches(msg, m.keys.ClearAll):
		if m.view.Len() == 0 {
			return m, nil
		}
		return m, m.startConfirm(confirmClearAll, "")

	case key.Matches(msg, m.keys.Compose):
		return m, func() tea.Msg { return ComposeRequestMsg{} }
	}

	if hasSelection {
		id := selected.ID
		switch {
		case key.Matches(msg, m.keys.ToggleRead):
			m.view.ToggleRead(id)
			return m, m.refresh()
		case key.Matches(msg, m.keys.Star):
			m.view.ToggleStar(id)
			return m, m.refresh()
		case key.Matches(msg, m.keys.Pin):
			m.view.TogglePin(id)
			return m, m.refresh()
		case key.Matches(msg, m.keys.Archive):
			m.view.ToggleArchive(id)
			return m, m.refresh()
		case key.Matches(msg, m.keys.SetPriority):
			m.view.CyclePriority(id)
			return m, m.refresh()
		case key.Matches(msg, m.keys.Delete):
			return m, m.startConfirm(confirmDelete, id)
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) startConfirm(kind confirmKind, id string) tea.Cmd {
	m.confirmKind = kind
	m.confirmID = id
	m.cb.ok = false

	title := "Clear all notifications from this screen?"
	if kind == confirmDelete {
		if n, ok := m.view.Get(id); ok {
			title = fmt.Sprintf("Delete %q?", n.Title)
		}
	}

	m.confirm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description("This only affects the notification center on this device.").
				Affirmative("Yes").
				Negative("No").
				Value(&m.cb.ok),
		),
	).WithWidth(max(m.width-4, 20))
	return m.confirm.Init()
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.confirm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirm = f
	}

	switch m.confirm.State {
	case huh.StateCompleted:
		if m.cb.ok {
			switch m.confirmKind {
			case confirmDelete:
				m.view.Delete(m.confirmID)
			case confirmClearAll:
				m.view.ClearAll()
			}
		}
		m.confirm = nil
		m.confirmKind = confirmNone
		m.confirmID = ""
		return m, m.refresh()

	case huh.StateAborted:
		m.confirm = nil
		m.confirmKind = confirmNone
		m.confirmID = ""
		return m, nil
	}

	return m, cmd
}

// View renders the center.
func (m Model) View() string {
	if m.confirm != nil {
		return theme.DetailPanelStyle.
			Width(max(m.width-4, 0)).
			Render(m.confirm.View())
	}

	var body string
	if len(m.list.Items()) == 0 {
		body = m.renderEmptyState()
	} else {
		body = m.list.View()
	}

	if m.searchMode || m.filter.Query != "" {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		if !m.searchMode {
			searchBar = theme.HelpStyle.Padding(0, 1).Render("search: " + m.filter.Query)
		}
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, body)
	}

	return body
}

// renderEmptyState shows guidance text when nothing is visible.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(max(m.height-2, 1)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case !m.filter.IsZero() && m.filter.ShowArchived:
		return style.Render("The archive is empty.")
	case !m.filter.IsZero():
		return style.Render("No matching notifications.\nPress 0 to clear filters.")
	default:
		return style.Render("You're all caught up.\n\nNew notifications will appear here.")
	}
}

// Selected returns the highlighted notification.
func (m Model) Selected() (notifcenter.RichNotification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return notifcenter.RichNotification{}, false
	}
	return it.Notification, true
}

// Get returns the center entry with id, archived or not.
func (m Model) Get(id string) (notifcenter.RichNotification, bool) {
	return m.view.Get(id)
}

// Acknowledge marks id read in the center after the store already did.
func (m *Model) Acknowledge(id string) tea.Cmd {
	m.view.Acknowledge(id)
	return m.refresh()
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Confirming reports whether a confirmation form is open.
func (m Model) Confirming() bool {
	return m.confirm != nil
}

// Filter returns the active filter.
func (m Model) Filter() notifcenter.Filter {
	return m.filter
}

// StatusIndex returns the index of the active status tab.
func (m Model) StatusIndex() int {
	return m.statusIndex
}

// TabLabels returns the status tab labels with their badge counts.
func (m Model) TabLabels() []string {
	st := m.view.Stats()
	labels := []string{
		fmt.Sprintf("All %d", st.Total-st.Archived),
		fmt.Sprintf("Unread %d", st.Unread),
		fmt.Sprintf("Starred %d", st.Starred),
		fmt.Sprintf("Pinned %d", st.Pinned),
	}
	archive := fmt.Sprintf("Archive %d", st.Archived)
	if m.filter.ShowArchived {
		archive = "[" + archive + "]"
	}
	return append(labels, archive)
}

// SetStatus switches to the status tab at index i.
func (m *Model) SetStatus(i int) tea.Cmd {
	if i < 0 || i >= len(notifcenter.Statuses) {
		return nil
	}
	m.statusIndex = i
	m.filter.Status = notifcenter.Statuses[i]
	return m.refresh()
}

// SetType restricts the center to one type; "" shows all.
func (m *Model) SetType(t notifcenter.RichType) tea.Cmd {
	m.filter.Type = t
	return m.refresh()
}

// SetPriority restricts the center to one priority; "" shows all.
func (m *Model) SetPriority(p notifcenter.Priority) tea.Cmd {
	m.filter.Priority = p
	return m.refresh()
}

// ShowArchive switches between the inbox and the archive.
func (m *Model) ShowArchive(show bool) tea.Cmd {
	m.filter.ShowArchived = show
	return m.refresh()
}

// ToggleArchiveView flips between the inbox and the archive.
func (m *Model) ToggleArchiveView() tea.Cmd {
	return m.ShowArchive(!m.filter.ShowArchived)
}

// ClearFilters resets search, type, priority and status.
func (m *Model) ClearFilters() tea.Cmd {
	m.filter = notifcenter.Filter{Status: notifcenter.StatusAll, ShowArchived: m.filter.ShowArchived}
	m.statusIndex = 0
	m.searchInput.Reset()
	return m.refresh()
}

// MarkAllRead marks every inbox notification read.
func (m *Model) MarkAllRead() tea.Cmd {
	m.view.MarkAllRead()
	return m.refresh()
}

// ClearAll removes every notification from the center.
func (m *Model) ClearAll() tea.Cmd {
	m.view.ClearAll()
	return m.refresh()
}

// FilterSummary describes the active type, priority and search filters.
func (m Model) FilterSummary() string {
	var parts []string
	if m.filter.Type != "" {
		parts = append(parts, "type:"+string(m.filter.Type))
	}
	if m.filter.Priority != "" {
		parts = append(parts, "priority:"+string(m.filter.Priority))
	}
	if q := strings.TrimSpace(m.filter.Query); q != "" {
		parts = append(parts, fmt.Sprintf("search:%q", q))
	}
	return strings.Join(parts, " ")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-2, 1))
	m.searchInput.Width = width - 4
}

// nextType cycles "" -> order -> ... -> alert -> "".
func nextType(cur notifcenter.RichType) notifcenter.RichType {
	if cur == "" {
		return notifcenter.RichTypes[0]
	}
	for i, t := range notifcenter.RichTypes {
		if t == cur && i+1 < len(notifcenter.RichTypes) {
			return notifcenter.RichTypes[i+1]
		}
	}
	return ""
}

// nextPriority cycles "" -> low -> ... -> urgent -> "".
func nextPriority(cur notifcenter.Priority) notifcenter.Priority {
	if cur == "" {
		return notifcenter.Priorities[0]
	}
	for i, p := range notifcenter.Priorities {
		if p == cur && i+1 < len(notifcenter.Priorities) {
			return notifcenter.Priorities[i+1]
		}
	}
	return ""
}

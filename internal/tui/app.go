// Package tui is a terminal view over the status lists. It subscribes to the
// event bus and re-derives its tabs from the list cache snapshot on every
// cards:changed, and only once lists:hydrated has been seen.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/events"
	"github.com/mmcdole/shelf/internal/listcache"
	"github.com/mmcdole/shelf/internal/tui/components"
	"github.com/mmcdole/shelf/internal/tui/styles"
)

// ChromeHeight is the header, tab bar and footer
const ChromeHeight = 4

const toastDuration = 4 * time.Second

// Lists is the read side the view renders from
type Lists interface {
	GetCache() *listcache.Snapshot
}

// Actions is the mutation side the view triggers
type Actions interface {
	Dispatch(ctx context.Context, t domain.Trigger) bool
	MarkWatched(ctx context.Context, itemID string) bool
}

// Model is the main Bubble Tea model for the application
type Model struct {
	lists   Lists
	actions Actions
	events  <-chan events.Event
	keys    KeyMap

	// View state
	kind     domain.MediaKind
	tab      int
	list     components.StatusList
	counts   map[domain.ListRef]int
	hydrated bool
	uid      string
	showHelp bool

	// Toast
	toast    string
	toastErr bool
	toastSeq int

	Width  int
	Height int
}

// NewModel creates the view. ch is fed by Observe.
func NewModel(lists Lists, actions Actions, ch <-chan events.Event) Model {
	return Model{
		lists:   lists,
		actions: actions,
		events:  ch,
		keys:    Keys,
		kind:    domain.KindTV,
		list:    components.NewStatusList(),
		counts:  make(map[domain.ListRef]int),
	}
}

// Init starts listening for bus events
func (m Model) Init() tea.Cmd {
	return WaitForEventCmd(m.events)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.list.SetHeight(m.Height - ChromeHeight)
		return m, nil

	case EventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, WaitForEventCmd(m.events))

	case EventsClosedMsg:
		return m, nil

	case ClearToastMsg:
		if msg.Seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case ActionDoneMsg:
		if !msg.OK {
			return m, nil
		}
		cmd := m.showToast(msg.Label, false)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m *Model) handleEvent(e events.Event) tea.Cmd {
	switch {
	case e.Type == events.EventListsHydrated:
		m.hydrated = true
		m.uid = e.UID
		m.refresh()
	case e.Type == events.EventCardsChanged:
		if m.hydrated {
			m.refresh()
		}
	case e.Type.IsError():
		return m.showToast(errorText(e), true)
	}
	return nil
}

func errorText(e events.Event) string {
	op := strings.TrimSuffix(strings.TrimPrefix(string(e.Type), "item:"), ":error")
	return fmt.Sprintf("%s %s failed: %s", op, e.ItemID, e.Error)
}

func (m *Model) showToast(text string, isErr bool) tea.Cmd {
	m.toastSeq++
	m.toast = text
	m.toastErr = isErr
	return ClearToastCmd(m.toastSeq, toastDuration)
}

// refresh re-derives counters and the current tab from the snapshot. A nil
// snapshot means the identity changed under us; wait for the next hydration.
func (m *Model) refresh() {
	snap := m.lists.GetCache()
	if snap == nil {
		m.hydrated = false
		return
	}
	m.counts = snap.Counts()
	m.list.SetItems(snap.Items(m.currentRef()))
}

func (m Model) currentRef() domain.ListRef {
	return domain.ListRef{Kind: m.kind, Key: domain.ListKeys[m.tab]}
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.Filtering() {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		if m.showHelp {
			m.showHelp = false
		} else if m.list.FilterQuery() != "" {
			m.list.ClearFilter()
		}
		return m, nil
	}

	if !m.hydrated {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.list.MoveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.list.MoveCursor(1)
	case key.Matches(msg, m.keys.NextTab):
		m.switchTab((m.tab + 1) % len(domain.ListKeys))
	case key.Matches(msg, m.keys.PrevTab):
		m.switchTab((m.tab + len(domain.ListKeys) - 1) % len(domain.ListKeys))
	case key.Matches(msg, m.keys.ToggleKind):
		if m.kind == domain.KindTV {
			m.kind = domain.KindMovie
		} else {
			m.kind = domain.KindTV
		}
		m.switchTab(m.tab)
	case key.Matches(msg, m.keys.Filter):
		cmd := m.list.StartFilter()
		return m, cmd
	case key.Matches(msg, m.keys.MarkWatched):
		if item, ok := m.list.Selected(); ok {
			return m, MarkWatchedCmd(m.actions, "marked "+item.Title+" watched", item.CompoundID())
		}
	case key.Matches(msg, m.keys.ToWatching):
		return m, m.moveSelected(domain.ListWatching)
	case key.Matches(msg, m.keys.ToWishlist):
		return m, m.moveSelected(domain.ListWishlist)
	case key.Matches(msg, m.keys.Delete):
		if item, ok := m.list.Selected(); ok {
			from := domain.ListKeys[m.tab]
			return m, DispatchCmd(m.actions, "removed "+item.Title, domain.Trigger{
				ControlID: "tui:remove",
				Op:        domain.OpRemove,
				ItemID:    item.CompoundID(),
				ListKey:   string(from),
			})
		}
	}
	return m, nil
}

func (m *Model) switchTab(tab int) {
	m.tab = tab
	m.list.ClearFilter()
	m.refresh()
}

func (m Model) moveSelected(to domain.ListKey) tea.Cmd {
	item, ok := m.list.Selected()
	from := domain.ListKeys[m.tab]
	if !ok || from == to {
		return nil
	}
	return DispatchCmd(m.actions, fmt.Sprintf("moved %s to %s", item.Title, to), domain.Trigger{
		ControlID: "tui:move:" + string(to),
		Op:        domain.OpMove,
		ItemID:    item.CompoundID(),
		FromList:  string(from),
		ListKey:   string(to),
	})
}

// View renders the model
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch {
	case m.showHelp:
		b.WriteString(m.renderHelp())
	case !m.hydrated:
		b.WriteString(styles.DimStyle.Render("  Loading lists..."))
	default:
		b.WriteString(m.list.View(m.Width))
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	kind := "TV"
	if m.kind == domain.KindMovie {
		kind = "Movies"
	}
	header := styles.TitleStyle.Render("shelf") + " " + styles.KindBadgeStyle.Render(kind)
	if m.uid != "" {
		header += " " + styles.DimStyle.Render(m.uid)
	}
	return header
}

func (m Model) renderTabs() string {
	tabs := make([]string, len(domain.ListKeys))
	for i, list := range domain.ListKeys {
		label := fmt.Sprintf("%s %d", list, m.counts[domain.ListRef{Kind: m.kind, Key: list}])
		if i == m.tab {
			tabs[i] = styles.ActiveTabStyle.Render(label)
		} else {
			tabs[i] = styles.TabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderFooter() string {
	if m.toast != "" {
		if m.toastErr {
			return styles.ToastStyle.Render(m.toast)
		}
		return styles.NoticeStyle.Render(m.toast)
	}
	return renderBindings(m.keys.ShortHelp())
}

func (m Model) renderHelp() string {
	groups := m.keys.FullHelp()
	lines := make([]string, 0, len(groups))
	for _, group := range groups {
		lines = append(lines, renderBindings(group))
	}
	return strings.Join(lines, "\n")
}

func renderBindings(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

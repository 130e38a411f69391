package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/tui/styles"
)

// Sizes used until the first resize arrives
const (
	DefaultHeight = 10
	DefaultWidth  = 80
)

// StatusList renders one status list with a cursor and an in-list filter
type StatusList struct {
	items  []domain.MediaItem
	cursor int
	offset int
	height int

	// Filter state
	filterActive bool
	filterInput  textinput.Model
	filteredIdx  []int // indices into items
}

// NewStatusList creates an empty list
func NewStatusList() StatusList {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	return StatusList{filterInput: ti, height: DefaultHeight}
}

// SetItems replaces the content. An active filter is re-applied and the cursor
// stays on the same compound id when it is still present.
func (l *StatusList) SetItems(items []domain.MediaItem) {
	var keep string
	if item, ok := l.Selected(); ok {
		keep = item.CompoundID()
	}

	l.items = items
	if l.filterActive {
		l.applyFilter()
	}

	l.cursor = 0
	for i := 0; i < l.Len(); i++ {
		if l.at(i).CompoundID() == keep {
			l.cursor = i
			break
		}
	}
	l.clampOffset()
}

// SetHeight sets the number of visible rows
func (l *StatusList) SetHeight(h int) {
	if h < 1 {
		h = 1
	}
	l.height = h
	l.clampOffset()
}

// Len returns the number of visible (filtered) items
func (l StatusList) Len() int {
	if l.filteredIdx != nil {
		return len(l.filteredIdx)
	}
	return len(l.items)
}

func (l StatusList) at(i int) domain.MediaItem {
	if l.filteredIdx != nil {
		return l.items[l.filteredIdx[i]]
	}
	return l.items[i]
}

// Selected returns the item under the cursor
func (l StatusList) Selected() (domain.MediaItem, bool) {
	if l.cursor < 0 || l.cursor >= l.Len() {
		return domain.MediaItem{}, false
	}
	return l.at(l.cursor), true
}

// Filtering reports whether the filter input has focus and wants keystrokes
func (l StatusList) Filtering() bool {
	return l.filterActive && l.filterInput.Focused()
}

// FilterQuery returns the active filter text
func (l StatusList) FilterQuery() string {
	if !l.filterActive {
		return ""
	}
	return l.filterInput.Value()
}

// StartFilter focuses the filter input
func (l *StatusList) StartFilter() tea.Cmd {
	l.filterActive = true
	return l.filterInput.Focus()
}

// ClearFilter drops the filter and shows every item
func (l *StatusList) ClearFilter() {
	l.filterActive = false
	l.filteredIdx = nil
	l.filterInput.SetValue("")
	l.filterInput.Blur()
	l.cursor = 0
	l.offset = 0
}

// applyFilter filters items by fuzzy title match, best match first
func (l *StatusList) applyFilter() {
	query := l.filterInput.Value()
	if query == "" {
		l.filteredIdx = nil
		return
	}

	lowerTitles := make([]string, len(l.items))
	for i, item := range l.items {
		lowerTitles[i] = strings.ToLower(item.Title)
	}
	matches := fuzzy.Find(strings.ToLower(query), lowerTitles)

	l.filteredIdx = make([]int, len(matches))
	for i, match := range matches {
		l.filteredIdx[i] = match.Index
	}
	l.cursor = 0
	l.offset = 0
}

// Update routes keys to the filter input while it has focus
func (l StatusList) Update(msg tea.Msg) (StatusList, tea.Cmd) {
	if !l.Filtering() {
		return l, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			l.ClearFilter()
			return l, nil
		case "enter":
			// Accept filter, blur input to allow navigation
			l.filterInput.Blur()
			return l, nil
		case "backspace":
			if l.filterInput.Value() == "" {
				l.ClearFilter()
				return l, nil
			}
		}
	}

	var cmd tea.Cmd
	l.filterInput, cmd = l.filterInput.Update(msg)
	l.applyFilter()
	return l, cmd
}

// MoveCursor moves the cursor by delta rows, clamped to the list
func (l *StatusList) MoveCursor(delta int) {
	n := l.Len()
	if n == 0 {
		l.cursor = 0
		return
	}
	l.cursor = max(0, min(n-1, l.cursor+delta))
	l.clampOffset()
}

func (l *StatusList) clampOffset() {
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+l.height {
		l.offset = l.cursor - l.height + 1
	}
	if l.offset < 0 {
		l.offset = 0
	}
}

// View renders the visible rows at the given width
func (l StatusList) View(width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	var b strings.Builder
	if l.filterActive {
		b.WriteString(l.filterInput.View())
		b.WriteString("\n")
	}

	n := l.Len()
	if n == 0 {
		if l.filterActive {
			b.WriteString(styles.DimStyle.Render("  no matches"))
		} else {
			b.WriteString(styles.DimStyle.Render("  nothing here yet"))
		}
		return b.String()
	}

	end := min(n, l.offset+l.height)
	for i := l.offset; i < end; i++ {
		item := l.at(i)
		title := item.Title
		if title == "" {
			title = item.CompoundID()
		}
		if y := item.Year(); y > 0 {
			title = fmt.Sprintf("%s (%d)", title, y)
		}
		row := fmt.Sprintf("%s  %s", styles.RenderRating(item.Rating), styles.Truncate(title, width-10))
		if i == l.cursor {
			b.WriteString(styles.SelectedItemStyle.Render(row))
		} else {
			b.WriteString(styles.NormalItemStyle.Render(row))
		}
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

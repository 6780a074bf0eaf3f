package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/tasks"
)

const maxActivity = 8

// ViewState represents the current view in the TUI.
type ViewState int

const (
	GroupListView ViewState = iota
	GroupDetailView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	manager      *tasks.SyncManager
	progressChan <-chan tasks.ProgressUpdate
	width        int
	height       int
	groupList    list.Model
	groups       []models.SyncGroup
	connectors   []services.ConnectorStatus
	results      map[string]tasks.GroupResult
	selected     *models.SyncGroup
	sweeping     bool
	lastSweep    *tasks.SweepResult
	activity     []string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a dashboard over manager.
//
// progress must be the channel passed as [tasks.Options.Progress]; it may be nil.
func NewModel(ctx context.Context, manager *tasks.SyncManager, progress <-chan tasks.ProgressUpdate) *Model {
	m := &Model{
		ctx:          ctx,
		view:         GroupListView,
		manager:      manager,
		progressChan: progress,
		results:      map[string]tasks.GroupResult{},
		help:         help.New(),
		keys:         newKeyMap(),
	}
	m.groupList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.groupList.Title = "Sync Groups"
	m.groupList.SetShowHelp(false)
	if last := manager.LastSweep(); last != nil {
		m.applySweep(*last)
	}
	return m
}

// Init loads groups and starts listening for progress updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadGroups(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.groupList.SetSize(msg.Width-4, msg.Height-14)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case GroupListView:
			return m.handleGroupListKeys(msg)
		case GroupDetailView:
			return m.handleDetailKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.groupList, cmd = m.groupList.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgGroupsLoaded:
		data := msg.data.(groupsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.groups = data.groups
		m.connectors = data.connectors
		m.refreshItems()
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.pushActivity(update)
		if update.Phase == tasks.GroupDone {
			if gr, ok := update.Data.(tasks.GroupResult); ok {
				m.results[gr.GroupID] = gr
				m.refreshItems()
			}
		}
		return m, m.waitForProgress()

	case MsgSweepComplete:
		m.sweeping = false
		m.applySweep(msg.data.(tasks.SweepResult))
		return m, m.loadGroups()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case GroupDetailView:
		body = m.renderDetail()
	default:
		body = m.renderGroupList()
	}
	if m.err != nil {
		body += "\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
	return body
}

func (m *Model) handleGroupListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.sync):
		return m, m.startSweep()
	case key.Matches(msg, m.keys.refresh):
		return m, m.loadGroups()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.groupList.SelectedItem().(groupItem); ok {
			group := item.group
			m.selected = &group
			m.view = GroupDetailView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.groupList, cmd = m.groupList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = GroupListView
		m.selected = nil
	case key.Matches(msg, m.keys.sync):
		return m, m.startSweep()
	}
	return m, nil
}

func (m *Model) loadGroups() tea.Cmd {
	return func() tea.Msg {
		groups, err := m.manager.Registry().Load(m.ctx)
		return groupsLoadedMsg(groups, m.manager.Connectors().Statuses(m.ctx), err)
	}
}

// startSweep runs one sweep in the background; a second request while one runs is ignored.
func (m *Model) startSweep() tea.Cmd {
	if m.sweeping {
		return nil
	}
	m.sweeping = true
	m.activity = nil
	return func() tea.Msg {
		return sweepCompleteMsg(m.manager.RunOnce(m.ctx))
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progressChan == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update, ok := <-m.progressChan:
			if !ok {
				return nil
			}
			return progressUpdateMsg(update)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) applySweep(result tasks.SweepResult) {
	m.lastSweep = &result
	for _, gr := range result.Groups {
		m.results[gr.GroupID] = gr
	}
	m.refreshItems()
}

func (m *Model) pushActivity(update tasks.ProgressUpdate) {
	if update.Message == "" {
		return
	}
	m.activity = append(m.activity, update.Message)
	if len(m.activity) > maxActivity {
		m.activity = m.activity[len(m.activity)-maxActivity:]
	}
}

func (m *Model) refreshItems() {
	items := make([]list.Item, len(m.groups))
	for i, g := range m.groups {
		item := groupItem{group: g}
		if gr, ok := m.results[g.ID]; ok {
			item.result = &gr
		}
		items[i] = item
	}
	m.groupList.SetItems(items)
}

func (m *Model) renderConnectors() string {
	parts := make([]string, 0, len(m.connectors))
	for _, c := range m.connectors {
		parts = append(parts, fmt.Sprintf("%s %s", styles.Ready(c.Ready), c.Name))
	}
	return strings.Join(parts, "   ")
}

func (m *Model) renderStatusLine() string {
	switch {
	case m.sweeping:
		return styles.warn.Render("Sweeping...")
	case m.lastSweep != nil:
		return styles.help.Render(fmt.Sprintf("Last sweep %s: %s", m.lastSweep.FinishedAt.Format("15:04:05"), m.lastSweep.Summary()))
	default:
		return styles.help.Render("No sweep yet")
	}
}

func (m *Model) renderGroupList() string {
	var sb strings.Builder
	sb.WriteString(m.renderConnectors())
	sb.WriteString("\n\n")
	if len(m.groups) == 0 {
		sb.WriteString(styles.help.Render("No sync groups. Create one with `plsync groups create`."))
		sb.WriteString("\n")
	} else {
		sb.WriteString(m.groupList.View())
		sb.WriteString("\n")
	}
	sb.WriteString(m.renderStatusLine())
	if len(m.activity) > 0 {
		sb.WriteString("\n")
		sb.WriteString(styles.box.Render(strings.Join(m.activity, "\n")))
	}
	sb.WriteString("\n")
	sb.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.sync, m.keys.refresh, m.keys.quit}))
	return sb.String()
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		return m.renderGroupList()
	}
	g := m.selected

	var sb strings.Builder
	sb.WriteString(styles.title.Render(g.Name))
	sb.WriteString("\n")
	source, _ := g.SourcePlaylist()
	fmt.Fprintf(&sb, "Primary: %s (%s)\n", g.PrimaryService.DisplayName(), valueOr(source, "not linked"))
	for _, t := range g.Targets() {
		fmt.Fprintf(&sb, "Mirror:  %s (%s)\n", t.Service.DisplayName(), t.PlaylistID)
	}

	sb.WriteString("\n")
	if gr, ok := m.results[g.ID]; ok {
		fmt.Fprintf(&sb, "Last run: %s", styles.RunStatus(gr.Status))
		if gr.Message != "" {
			fmt.Fprintf(&sb, " %s", styles.help.Render(gr.Message))
		}
		sb.WriteString("\n")
		for _, t := range gr.Targets {
			fmt.Fprintf(&sb, "  %-14s %s %d/%d", t.Service.DisplayName(), styles.TargetStatus(t.Status), t.Matched, t.Total)
			if t.Message != "" {
				fmt.Fprintf(&sb, " %s", t.Message)
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString(styles.help.Render("Not synced yet"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.renderStatusLine())
	sb.WriteString("\n")
	sb.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.sync, m.keys.quit}))
	return sb.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

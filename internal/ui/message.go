package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgGroupsLoaded MsgKind = iota
	MsgProgressUpdate
	MsgSweepComplete
)

type groupsLoaded struct {
	groups     []models.SyncGroup
	connectors []services.ConnectorStatus
	err        error
}

// groupsLoadedMsg is the constructor for [MsgGroupsLoaded]
func groupsLoadedMsg(groups []models.SyncGroup, connectors []services.ConnectorStatus, err error) Msg {
	return Msg{kind: MsgGroupsLoaded, data: groupsLoaded{groups, connectors, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// sweepCompleteMsg is the constructor for [MsgSweepComplete]
func sweepCompleteMsg(result tasks.SweepResult) Msg {
	return Msg{kind: MsgSweepComplete, data: result}
}

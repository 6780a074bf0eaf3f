package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/tasks"
)

var (
	_ list.Item = groupItem{}
)

// groupItem wraps [models.SyncGroup] and its latest result to implement [list.Item].
type groupItem struct {
	group  models.SyncGroup
	result *tasks.GroupResult
}

func (i groupItem) FilterValue() string { return i.group.Name }
func (i groupItem) Title() string       { return i.group.Name }
func (i groupItem) Description() string {
	desc := fmt.Sprintf("%s → %s", i.group.PrimaryService.DisplayName(), mirrorNames(i.group))
	if i.result != nil {
		desc = fmt.Sprintf("%s • %s", desc, i.result.Status)
	}
	return desc
}

// mirrorNames lists the group's mirror services, or "no mirrors".
func mirrorNames(g models.SyncGroup) string {
	targets := g.Targets()
	if len(targets) == 0 {
		return "no mirrors"
	}
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Service.DisplayName())
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

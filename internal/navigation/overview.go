package navigation

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"mixdeck/pkg/models"
)

type overviewKind int

const (
	overviewFolders overviewKind = iota
	overviewWorkingSets
	overviewMixes
)

// overviewRow is one folder, working set or mix listed by an overview.
type overviewRow struct {
	name     string
	count    int
	duration int64
	scanned  time.Time
	scope    scope
}

// overviewNode lists folders, working sets or mixes, with one child track
// view per row.
type overviewNode struct {
	nodeBase
	kind overviewKind

	rows   []overviewRow
	loaded bool
}

func newOverviewNode(env *Env, parent Node, name string, kind overviewKind) *overviewNode {
	n := &overviewNode{kind: kind}
	n.init(env, n, name, parent)
	return n
}

func (n *overviewNode) load() ([]overviewRow, error) {
	n.mu.Lock()
	if n.loaded {
		rows := n.rows
		n.mu.Unlock()
		return rows, nil
	}
	n.mu.Unlock()

	lib := n.env.Library
	var rows []overviewRow
	switch n.kind {
	case overviewFolders:
		folders, err := lib.Folders.Folders()
		if err != nil {
			return nil, err
		}
		seen := make(map[string]int, len(folders))
		for _, f := range folders {
			rows = append(rows, overviewRow{
				name:    uniqueName(seen, filepath.Base(f.Path)),
				count:   f.NumFiles,
				scanned: f.LastScannedTime,
				scope:   scope{kind: scopeFolder, folder: f},
			})
		}
	case overviewWorkingSets:
		sets, err := lib.WorkingSets.List()
		if err != nil {
			return nil, err
		}
		for _, ws := range sets {
			rows = append(rows, overviewRow{
				name:     ws.Name,
				count:    ws.TrackCount,
				duration: ws.TotalDuration,
				scanned:  ws.CreatedAt,
				scope:    scope{kind: scopeWorkingSet, workingSet: ws},
			})
		}
	case overviewMixes:
		mixes, err := lib.Mixes.List()
		if err != nil {
			return nil, err
		}
		for _, m := range mixes {
			rows = append(rows, overviewRow{
				name:     m.Name,
				count:    m.NumberOfTracks,
				duration: m.TotalDuration,
				scanned:  m.Timestamp,
				scope:    scope{kind: scopeMix, mix: m},
			})
		}
	}

	n.mu.Lock()
	n.rows = rows
	n.loaded = true
	n.mu.Unlock()
	return rows, nil
}

// uniqueName suffixes repeated names with " (2)", " (3)" and so on so
// every child stays reachable by path.
func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	if seen[name] == 1 {
		return name
	}
	for {
		candidate := fmt.Sprintf("%s (%d)", name, seen[name])
		if seen[candidate] == 0 {
			seen[candidate] = 1
			return candidate
		}
		seen[name]++
	}
}

func (n *overviewNode) rowAt(row int) (overviewRow, bool) {
	rows, err := n.load()
	if err != nil {
		n.setLastError(err)
		return overviewRow{}, false
	}
	if row < 0 || row >= len(rows) {
		return overviewRow{}, false
	}
	return rows[row], true
}

func (n *overviewNode) HasChildren() bool {
	return n.NumberOfRows() > 0
}

func (n *overviewNode) Children() []Node {
	return n.cachedChildren(func() []Node {
		rows, err := n.load()
		if err != nil {
			n.setLastError(err)
			return nil
		}
		children := make([]Node, len(rows))
		for i, r := range rows {
			children[i] = newTrackListNode(n.env, n, r.name, r.scope)
		}
		return children
	})
}

func (n *overviewNode) Columns() []models.ColumnID {
	switch n.kind {
	case overviewFolders:
		return []models.ColumnID{models.ColumnName, models.ColumnFilePath, models.ColumnCount, models.ColumnLastScanned}
	default:
		return []models.ColumnID{models.ColumnName, models.ColumnCount, models.ColumnTotalDuration, models.ColumnDateAdded}
	}
}

func (n *overviewNode) NumberOfRows() int {
	rows, err := n.load()
	if err != nil {
		n.setLastError(err)
		return 0
	}
	return len(rows)
}

func (n *overviewNode) CellText(row int, col models.ColumnID) string {
	r, ok := n.rowAt(row)
	if !ok {
		return ""
	}
	switch col {
	case models.ColumnName:
		return r.name
	case models.ColumnFilePath:
		return r.scope.folder.Path
	case models.ColumnCount:
		return strconv.Itoa(r.count)
	case models.ColumnTotalDuration:
		return FormatDuration(r.duration)
	case models.ColumnLastScanned, models.ColumnDateAdded:
		return formatTime(r.scanned)
	}
	return ""
}

func (n *overviewNode) TrackInfoForRow(int) (models.TrackInfo, bool) {
	return models.TrackInfo{}, false
}

func (n *overviewNode) NodeActions() []Action {
	if n.kind == overviewFolders {
		return []Action{ActionRefresh, ActionAddFolder}
	}
	return []Action{ActionRefresh}
}

func (n *overviewNode) RowActions(row int) []Action {
	r, ok := n.rowAt(row)
	if !ok {
		return nil
	}
	switch n.kind {
	case overviewFolders:
		return []Action{ActionRescanFolder, ActionRemoveFolder}
	case overviewWorkingSets:
		actions := []Action{ActionRemoveWorkingSet}
		if r.count > 0 {
			actions = append(actions, ActionCreateAutoMixFromView)
		}
		return actions
	default:
		var actions []Action
		if r.count > 0 {
			actions = append(actions, ActionRenderMix)
		}
		return append(actions, ActionRemoveMix)
	}
}

// Overviews are not filtered or sorted.
func (n *overviewNode) SetSearchTerms([]string)       {}
func (n *overviewNode) SetSortOrder([]models.SortKey) {}
func (n *overviewNode) QueryArgs() models.QueryArgs   { return models.NewQueryArgs() }

// RefreshCache reloads the row list. With flush the child views are rebuilt
// too; without it the existing children refresh their own pages.
func (n *overviewNode) RefreshCache(flush bool) {
	n.mu.Lock()
	n.loaded = false
	n.rows = nil
	n.mu.Unlock()

	if flush {
		n.dropChildren()
		return
	}
	n.mu.Lock()
	children := append([]Node(nil), n.children...)
	n.mu.Unlock()
	for _, child := range children {
		child.RefreshCache(false)
	}
}

// RemoveObjectAtRow deletes the folder, working set or mix at row.
func (n *overviewNode) RemoveObjectAtRow(row int) bool {
	r, ok := n.rowAt(row)
	if !ok {
		n.setLastError(fmt.Errorf("%w: row %d", models.ErrNotFound, row))
		return false
	}

	lib := n.env.Library
	var err error
	switch n.kind {
	case overviewFolders:
		err = lib.Folders.RemoveFolder(r.scope.folder.FolderID)
	case overviewWorkingSets:
		err = lib.WorkingSets.Remove(r.scope.workingSet.ID)
	case overviewMixes:
		err = lib.Mixes.Remove(r.scope.mix.MixID)
	}
	if err != nil {
		n.setLastError(err)
		return false
	}
	n.RefreshCache(true)
	return true
}

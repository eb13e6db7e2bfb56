package navigation

import (
	"fmt"

	"mixdeck/internal/cache"
	"mixdeck/pkg/models"
)

type scopeKind int

const (
	scopeLibrary scopeKind = iota
	scopeFolder
	scopeWorkingSet
	scopeMix
)

// scope restricts a track view to the whole library, one folder, one
// working set or one mix.
type scope struct {
	kind       scopeKind
	folder     models.Folder
	workingSet models.WorkingSet
	mix        models.Mix
}

func (s scope) args() models.QueryArgs {
	args := models.NewQueryArgs()
	switch s.kind {
	case scopeFolder:
		args.FolderPath = s.folder.Path
	case scopeWorkingSet:
		args.WorkingSetID = s.workingSet.ID
	case scopeMix:
		args.MixID = s.mix.MixID
	}
	return args
}

var (
	trackColumns = []models.ColumnID{
		models.ColumnTitle, models.ColumnArtist, models.ColumnAlbum, models.ColumnDuration,
		models.ColumnBPM, models.ColumnKey, models.ColumnRating, models.ColumnYear,
	}
	mixColumns = append([]models.ColumnID{models.ColumnOrderInMix, models.ColumnMixStartTime}, trackColumns...)
)

// trackListNode shows the tracks of a scope, one cached page at a time.
type trackListNode struct {
	nodeBase
	scope scope

	count   int // -1 until counted
	mixRows map[int]models.MixTrack
}

func newTrackListNode(env *Env, parent Node, name string, sc scope) *trackListNode {
	n := &trackListNode{scope: sc, count: -1}
	n.init(env, n, name, parent)
	return n
}

func (n *trackListNode) HasChildren() bool { return false }
func (n *trackListNode) Children() []Node  { return nil }

func (n *trackListNode) Columns() []models.ColumnID {
	if n.scope.kind == scopeMix {
		return mixColumns
	}
	return trackColumns
}

func (n *trackListNode) QueryArgs() models.QueryArgs {
	args := n.scope.args()
	args.SearchTerms = n.SearchTerms()
	args.SortOrder = n.SortOrder()
	return args
}

func (n *trackListNode) SetSearchTerms(terms []string) {
	n.mu.Lock()
	n.searchTerms = append([]string(nil), terms...)
	n.mu.Unlock()
	n.invalidate()
}

func (n *trackListNode) SetSortOrder(keys []models.SortKey) {
	n.mu.Lock()
	n.sortOrder = append([]models.SortKey(nil), keys...)
	n.mu.Unlock()
	n.invalidate()
}

func (n *trackListNode) invalidate() {
	n.mu.Lock()
	n.count = -1
	n.mixRows = nil
	n.mu.Unlock()
	n.env.Cache.Invalidate(n.id)
}

// RefreshCache drops the count, cached pages and mix envelopes; a track
// list has no children, so flush changes nothing more.
func (n *trackListNode) RefreshCache(bool) {
	n.invalidate()
}

func (n *trackListNode) NumberOfRows() int {
	n.mu.Lock()
	count := n.count
	n.mu.Unlock()
	if count >= 0 {
		return count
	}

	count, err := n.env.Library.Query.Count(n.QueryArgs())
	if err != nil {
		n.setLastError(err)
		return 0
	}
	n.mu.Lock()
	n.count = count
	n.mu.Unlock()
	return count
}

// page returns one page of rows, from the cache when possible.
func (n *trackListNode) page(p int) (cache.TrackPage, error) {
	if pg, ok := n.env.Cache.GetPage(n.id, p); ok {
		return pg, nil
	}

	args := n.QueryArgs()
	args.Page = p
	var pg cache.TrackPage
	var err error
	if args.IsMixQuery() {
		pg.Tracks, pg.Orders, err = n.env.Library.Query.QueryMixView(args)
	} else {
		pg.Tracks, err = n.env.Library.Query.Query(args)
	}
	if err != nil {
		return cache.TrackPage{}, err
	}
	n.env.Cache.SetPage(n.id, p, pg)
	return pg, nil
}

// row returns the track shown at row and, for mix views, its orderInMix.
func (n *trackListNode) row(row int) (models.TrackInfo, int, bool) {
	if row < 0 {
		return models.TrackInfo{}, -1, false
	}
	pg, err := n.page(row / models.PageSize)
	if err != nil {
		n.setLastError(err)
		return models.TrackInfo{}, -1, false
	}
	i := row % models.PageSize
	if i >= len(pg.Tracks) {
		return models.TrackInfo{}, -1, false
	}
	order := -1
	if i < len(pg.Orders) {
		order = pg.Orders[i]
	}
	return pg.Tracks[i], order, true
}

func (n *trackListNode) TrackInfoForRow(row int) (models.TrackInfo, bool) {
	track, _, ok := n.row(row)
	return track, ok
}

func (n *trackListNode) mixRow(order int) (models.MixTrack, bool) {
	n.mu.Lock()
	rows := n.mixRows
	n.mu.Unlock()

	if rows == nil {
		tracks, err := n.env.Library.Mixes.MixTracks(n.scope.mix.MixID)
		if err != nil {
			n.setLastError(err)
			return models.MixTrack{}, false
		}
		rows = make(map[int]models.MixTrack, len(tracks))
		for _, mt := range tracks {
			rows[mt.OrderInMix] = mt
		}
		n.mu.Lock()
		n.mixRows = rows
		n.mu.Unlock()
	}
	mt, ok := rows[order]
	return mt, ok
}

func (n *trackListNode) CellText(row int, col models.ColumnID) string {
	track, order, ok := n.row(row)
	if !ok {
		return ""
	}
	switch col {
	case models.ColumnOrderInMix:
		if order < 0 {
			return ""
		}
		return fmt.Sprintf("%d", order+1)
	case models.ColumnMixStartTime:
		if mt, ok := n.mixRow(order); ok {
			return FormatDuration(mt.MixStartTime)
		}
		return ""
	}
	return TrackCellText(track, col)
}

func (n *trackListNode) NodeActions() []Action {
	actions := []Action{ActionRefresh}
	hasRows := n.NumberOfRows() > 0
	if hasRows {
		actions = append(actions, ActionCreateWorkingSetFromView)
	}
	switch n.scope.kind {
	case scopeFolder:
		actions = append(actions, ActionRescanFolder, ActionRemoveFolder)
	case scopeWorkingSet:
		actions = append(actions, ActionRemoveWorkingSet)
	case scopeMix:
		if hasRows {
			actions = append(actions, ActionRenderMix)
		}
		actions = append(actions, ActionRemoveMix)
	}
	if hasRows && n.scope.kind != scopeMix {
		actions = append(actions, ActionCreateAutoMixFromView)
	}
	return actions
}

func (n *trackListNode) RowActions(row int) []Action {
	track, _, ok := n.row(row)
	if !ok {
		return nil
	}
	var actions []Action
	switch n.scope.kind {
	case scopeWorkingSet:
		actions = append(actions, ActionRemoveFromWorkingSet)
	case scopeMix:
		actions = append(actions, ActionRemoveFromMix)
	}
	if track.BPM <= 0 && !track.IsMissing {
		actions = append(actions, ActionAnalyseBPM)
	}
	if !track.IsMissing {
		actions = append(actions, ActionRevealFile)
	}
	return actions
}

// RemoveObjectAtRow removes the row's track from the working set or mix the
// view shows. Library and folder views cannot remove tracks.
func (n *trackListNode) RemoveObjectAtRow(row int) bool {
	track, order, ok := n.row(row)
	if !ok {
		n.setLastError(fmt.Errorf("%w: row %d", models.ErrNotFound, row))
		return false
	}

	var err error
	switch n.scope.kind {
	case scopeWorkingSet:
		_, err = n.env.Library.WorkingSets.RemoveTracks(n.scope.workingSet.ID, []int64{track.TrackID})
	case scopeMix:
		_, err = n.env.Library.Mixes.RemoveTrackAt(n.scope.mix.MixID, order)
	default:
		err = fmt.Errorf("%w: tracks cannot be removed from %s", models.ErrInvalidArgument, n.name)
	}
	if err != nil {
		n.setLastError(err)
		return false
	}
	n.RefreshCache(true)
	return true
}

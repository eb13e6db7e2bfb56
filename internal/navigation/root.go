package navigation

import (
	"mixdeck/internal/cache"
	"mixdeck/pkg/models"

	"github.com/sirupsen/logrus"
)

// Names of the top-level views.
const (
	RootName        = "Root"
	LibraryName     = "Library"
	FoldersName     = "Folders"
	WorkingSetsName = "Working Sets"
	MixesName       = "Mixes"
)

type rootNode struct {
	nodeBase
}

// NewRoot creates the root of a navigation tree over env.Library. The caller
// owns the returned reference and must Release it before closing the
// library.
func NewRoot(env Env) Node {
	if env.Logger == nil {
		env.Logger = env.Library.Logger()
	}
	ownsCache := env.Cache == nil
	if ownsCache {
		env.Cache = cache.NewPageCache(PageCacheTTL)
	}
	shared := &env

	n := &rootNode{}
	n.init(shared, n, RootName, nil)
	if ownsCache {
		n.onDestroy = shared.Cache.Stop
	}
	shared.Logger.WithField("node_id", n.id).Debug("Navigation root created")
	return n
}

func (n *rootNode) HasChildren() bool { return true }

func (n *rootNode) Children() []Node {
	return n.cachedChildren(func() []Node {
		return []Node{
			newTrackListNode(n.env, n, LibraryName, scope{kind: scopeLibrary}),
			newOverviewNode(n.env, n, FoldersName, overviewFolders),
			newOverviewNode(n.env, n, WorkingSetsName, overviewWorkingSets),
			newOverviewNode(n.env, n, MixesName, overviewMixes),
		}
	})
}

func (n *rootNode) Columns() []models.ColumnID { return nil }
func (n *rootNode) NumberOfRows() int { return 0 }
func (n *rootNode) CellText(int, models.ColumnID) string { return "" }
func (n *rootNode) TrackInfoForRow(int) (models.TrackInfo, bool) { return models.TrackInfo{}, false }
func (n *rootNode) NodeActions() []Action { return []Action{ActionRefresh} }
func (n *rootNode) RowActions(int) []Action { return nil }
func (n *rootNode) SetSearchTerms([]string) {}
func (n *rootNode) SetSortOrder([]models.SortKey) {}
func (n *rootNode) QueryArgs() models.QueryArgs { return models.NewQueryArgs() }
func (n *rootNode) RemoveObjectAtRow(int) bool { return false }

// RefreshCache refreshes every materialised child view.
func (n *rootNode) RefreshCache(flush bool) {
	for _, child := range n.Children() {
		child.RefreshCache(flush)
		child.Release()
	}
	n.env.Logger.WithFields(logrus.Fields{"flush": flush}).Debug("Navigation tree refreshed")
}

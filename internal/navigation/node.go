// Package navigation presents the catalogue as a lazy, reference-counted
// tree of browsable views: Root, then Library, Folders, Working Sets and
// Mixes, then one track view per folder, working set and mix.
package navigation

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mixdeck/internal/cache"
	"mixdeck/internal/library"
	"mixdeck/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Node is one view of the catalogue. Every node is reference counted:
// Children, Get and GetByID hand out retained references that the caller
// must Release. Parent returns a borrowed reference.
type Node interface {
	Name() string
	UniqueID() string
	Parent() Node
	HasChildren() bool
	Children() []Node

	Columns() []models.ColumnID
	NumberOfRows() int
	CellText(row int, col models.ColumnID) string
	TrackInfoForRow(row int) (models.TrackInfo, bool)

	NodeActions() []Action
	RowActions(row int) []Action

	SearchTerms() []string
	SetSearchTerms(terms []string)
	SortOrder() []models.SortKey
	SetSortOrder(keys []models.SortKey)
	QueryArgs() models.QueryArgs

	PrepareToShowData()
	DataNoLongerShowing()
	RefreshCache(flush bool)
	RemoveObjectAtRow(row int) bool
	LastError() string

	Get(path string) Node
	GetByID(id string) Node

	Retain()
	Release()
	RetainCount() int32
}

// Env is what every node needs from the rest of the engine.
type Env struct {
	Library *library.Library
	// Cache holds query pages; NewRoot creates one when nil.
	Cache *cache.PageCache
	// Tracker records live nodes when set.
	Tracker *Tracker
	Logger  *logrus.Logger
}

// PageCacheTTL is how long an unused page stays cached.
const PageCacheTTL = 5 * time.Minute

// nodeBase carries the state and behaviour shared by every node variant.
type nodeBase struct {
	env    *Env
	self   Node
	id     string
	name   string
	parent Node

	refs atomic.Int32

	mu             sync.Mutex
	children       []Node
	childrenLoaded bool
	searchTerms    []string
	sortOrder      []models.SortKey
	showing        bool
	lastErr        string

	// onDestroy runs once the last reference is gone.
	onDestroy func()
}

func (b *nodeBase) init(env *Env, self Node, name string, parent Node) {
	b.env = env
	b.self = self
	b.id = uuid.NewString()
	b.name = name
	b.parent = parent
	b.refs.Store(1)
	if env.Tracker != nil {
		env.Tracker.add(self)
	}
}

func (b *nodeBase) Name() string     { return b.name }
func (b *nodeBase) UniqueID() string { return b.id }
func (b *nodeBase) Parent() Node     { return b.parent }

func (b *nodeBase) Retain() {
	if b.refs.Add(1) == 1 {
		b.env.Logger.WithField("node", b.name).Error("Retain on a released node")
	}
}

func (b *nodeBase) Release() {
	n := b.refs.Add(-1)
	switch {
	case n == 0:
		b.destroy()
	case n < 0:
		b.env.Logger.WithFields(logrus.Fields{
			"node":  b.name,
			"count": n,
		}).Error("Unbalanced release")
	}
}

func (b *nodeBase) RetainCount() int32 {
	return b.refs.Load()
}

func (b *nodeBase) destroy() {
	b.dropChildren()
	if b.env.Cache != nil {
		b.env.Cache.Invalidate(b.id)
	}
	if b.onDestroy != nil {
		b.onDestroy()
	}
	if b.env.Tracker != nil {
		b.env.Tracker.remove(b.id)
	}
}

// dropChildren releases the parent's reference on every cached child.
func (b *nodeBase) dropChildren() {
	b.mu.Lock()
	children := b.children
	b.children = nil
	b.childrenLoaded = false
	b.mu.Unlock()

	for _, child := range children {
		child.Release()
	}
}

// cachedChildren returns the child list, building it with build on first
// use. Every returned child is retained for the caller.
func (b *nodeBase) cachedChildren(build func() []Node) []Node {
	b.mu.Lock()
	loaded := b.childrenLoaded
	b.mu.Unlock()

	if !loaded {
		built := build()
		b.mu.Lock()
		if b.childrenLoaded {
			// Lost a race with another builder; keep the first list.
			b.mu.Unlock()
			for _, child := range built {
				child.Release()
			}
			b.mu.Lock()
		} else {
			b.children = built
			b.childrenLoaded = true
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Node, len(b.children))
	for i, child := range b.children {
		child.Retain()
		out[i] = child
	}
	return out
}

func (b *nodeBase) SearchTerms() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.searchTerms...)
}

func (b *nodeBase) SortOrder() []models.SortKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.SortKey(nil), b.sortOrder...)
}

func (b *nodeBase) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *nodeBase) setLastError(err error) {
	b.mu.Lock()
	b.lastErr = err.Error()
	b.mu.Unlock()
	b.env.Logger.WithError(err).WithField("node", b.name).Warn("Navigation operation failed")
}

func (b *nodeBase) PrepareToShowData() {
	b.mu.Lock()
	b.showing = true
	b.mu.Unlock()
}

func (b *nodeBase) DataNoLongerShowing() {
	b.mu.Lock()
	b.showing = false
	b.mu.Unlock()
	b.env.Cache.Invalidate(b.id)
}

// Get resolves a slash-separated path of child names relative to the node.
func (b *nodeBase) Get(path string) Node {
	current := b.self
	current.Retain()
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		var next Node
		for _, child := range current.Children() {
			if next == nil && child.Name() == part {
				next = child
				continue
			}
			child.Release()
		}
		current.Release()
		if next == nil {
			return nil
		}
		current = next
	}
	return current
}

// GetByID searches the node and its descendants for a unique id.
func (b *nodeBase) GetByID(id string) Node {
	if b.id == id {
		b.self.Retain()
		return b.self
	}
	if !b.self.HasChildren() {
		return nil
	}
	var found Node
	for _, child := range b.self.Children() {
		if found == nil {
			found = child.GetByID(id)
		}
		child.Release()
	}
	return found
}

// Tracker records every live node so tests and debug runs can check that
// retain and release stay balanced.
type Tracker struct {
	mu   sync.Mutex
	live map[string]Node
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{live: make(map[string]Node)}
}

func (t *Tracker) add(n Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[n.UniqueID()] = n
}

func (t *Tracker) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, id)
}

// Live returns the names of all nodes that have not been freed.
func (t *Tracker) Live() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.live))
	for _, n := range t.live {
		names = append(names, n.Name())
	}
	return names
}

// Count returns the number of live nodes.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

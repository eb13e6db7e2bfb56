package library

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"mixdeck/internal/database"
	"mixdeck/pkg/models"
)

// TagManager interns tag names. Both directions are cached; the caches are
// filled on first use and rebuilt after Invalidate.
type TagManager struct {
	db *database.Database

	mu     sync.RWMutex
	loaded bool
	byName map[string]int64 // lowercased name
	byID   map[int64]string
}

// CanonicalTagName trims and collapses whitespace. Lookup is done on the
// lowercased canonical form.
func CanonicalTagName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func tagKey(name string) string {
	return strings.ToLower(CanonicalTagName(name))
}

func (m *TagManager) ensureLoaded() error {
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	var tags []models.Tag
	err := m.db.Do(func(s database.Store) error {
		var err error
		tags, err = s.ListTags()
		return err
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName = make(map[string]int64, len(tags))
	m.byID = make(map[int64]string, len(tags))
	for _, tag := range tags {
		m.byName[tagKey(tag.Name)] = tag.TagID
		m.byID[tag.TagID] = tag.Name
	}
	m.loaded = true
	return nil
}

func (m *TagManager) remember(tag models.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return
	}
	m.byName[tagKey(tag.Name)] = tag.TagID
	m.byID[tag.TagID] = tag.Name
}

// GetOrCreateTagID returns the id for name, looked up case-insensitively.
// When the tag does not exist and create is false, ErrNotFound is returned.
func (m *TagManager) GetOrCreateTagID(name string, create bool) (int64, error) {
	canonical := CanonicalTagName(name)
	if canonical == "" {
		return models.UnsetID, fmt.Errorf("%w: empty tag name", models.ErrInvalidArgument)
	}
	if err := m.ensureLoaded(); err != nil {
		return models.UnsetID, err
	}

	m.mu.RLock()
	id, ok := m.byName[tagKey(canonical)]
	m.mu.RUnlock()
	if ok {
		return id, nil
	}
	if !create {
		return models.UnsetID, fmt.Errorf("%w: tag %q", models.ErrNotFound, canonical)
	}

	var tag models.Tag
	err := m.db.Transaction(func(s database.Store) error {
		existing, err := s.TagByName(canonical)
		if err == nil {
			tag = existing
			return nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		id, err := s.InsertTag(canonical)
		if err != nil {
			return err
		}
		tag = models.Tag{TagID: id, Name: canonical}
		return nil
	})
	if err != nil {
		return models.UnsetID, err
	}
	m.remember(tag)
	return tag.TagID, nil
}

// TagIDs interns every name and returns the ids in order, skipping blanks
// and duplicates.
func (m *TagManager) TagIDs(names []string) ([]int64, error) {
	seen := make(map[int64]bool, len(names))
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		if CanonicalTagName(name) == "" {
			continue
		}
		id, err := m.GetOrCreateTagID(name, true)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// TagName returns the stored name of a tag.
func (m *TagManager) TagName(id int64) (string, error) {
	if err := m.ensureLoaded(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.byID[id]
	if !ok {
		return "", fmt.Errorf("%w: tag with ID %d", models.ErrNotFound, id)
	}
	return name, nil
}

// TagNames resolves ids to names, skipping unknown ids.
func (m *TagManager) TagNames(ids []int64) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, err := m.TagName(id); err == nil {
			names = append(names, name)
		}
	}
	return names
}

// AllTags returns every tag ordered by id.
func (m *TagManager) AllTags() ([]models.Tag, error) {
	var tags []models.Tag
	err := m.db.Do(func(s database.Store) error {
		var err error
		tags, err = s.ListTags()
		return err
	})
	return tags, err
}

// Invalidate drops both caches. Call it after the tag table was changed
// through another path.
func (m *TagManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
	m.byName = nil
	m.byID = nil
}

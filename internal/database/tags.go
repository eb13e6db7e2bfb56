package database

import (
	"database/sql"
	"errors"
	"fmt"

	"mixdeck/pkg/models"
)

// InsertTag stores a tag name and returns its id. Names are unique
// regardless of case.
func (s Store) InsertTag(name string) (int64, error) {
	if name == "" {
		return models.UnsetID, fmt.Errorf("%w: empty tag name", models.ErrInvalidArgument)
	}
	result, err := s.q.Exec(`INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return models.UnsetID, storeErr("insert tag", err)
	}
	id, err := result.LastInsertId()
	return id, storeErr("last insert id", err)
}

// TagByName looks a tag up case-insensitively.
func (s Store) TagByName(name string) (models.Tag, error) {
	var tag models.Tag
	err := s.q.QueryRow(`SELECT id, name FROM tags WHERE name = ? COLLATE NOCASE`, name).Scan(&tag.TagID, &tag.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return tag, fmt.Errorf("%w: tag %q", models.ErrNotFound, name)
	}
	return tag, storeErr("tag by name", err)
}

// ListTags returns every tag ordered by id.
func (s Store) ListTags() ([]models.Tag, error) {
	rows, err := s.q.Query(`SELECT id, name FROM tags ORDER BY id`)
	if err != nil {
		return nil, storeErr("list tags", err)
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.TagID, &tag.Name); err != nil {
			return nil, storeErr("scan tag", err)
		}
		tags = append(tags, tag)
	}
	return tags, storeErr("iterate tags", rows.Err())
}

// RemoveTag deletes a tag and its track associations.
func (s Store) RemoveTag(id int64) error {
	_, err := s.q.Exec(`DELETE FROM tags WHERE id = ?`, id)
	return storeErr("remove tag", err)
}

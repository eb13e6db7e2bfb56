package database

import (
	"database/sql"
	"errors"
	"fmt"

	"mixdeck/pkg/models"
)

// InsertFolder registers a library folder and returns its id.
func (s Store) InsertFolder(folder models.Folder) (int64, error) {
	if folder.Path == "" || folder.NumFiles < 0 {
		return models.UnsetID, fmt.Errorf("%w: invalid folder %q", models.ErrInvalidArgument, folder.Path)
	}
	result, err := s.q.Exec(`
		INSERT INTO folders (path, num_files, total_size, last_scanned)
		VALUES (?, ?, ?, ?)`,
		folder.Path, folder.NumFiles, folder.TotalSizeBytes, toMillis(folder.LastScannedTime))
	if err != nil {
		return models.UnsetID, storeErr("insert folder", err)
	}
	id, err := result.LastInsertId()
	return id, storeErr("last insert id", err)
}

// UpdateFolder stores the scan statistics of a folder.
func (s Store) UpdateFolder(folder models.Folder) error {
	if !folder.IsValid() {
		return fmt.Errorf("%w: invalid folder %q", models.ErrInvalidArgument, folder.Path)
	}
	result, err := s.q.Exec(`
		UPDATE folders SET path = ?, num_files = ?, total_size = ?, last_scanned = ?
		WHERE id = ?`,
		folder.Path, folder.NumFiles, folder.TotalSizeBytes, toMillis(folder.LastScannedTime), folder.FolderID)
	if err != nil {
		return storeErr("update folder", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: folder with ID %d", models.ErrNotFound, folder.FolderID)
	}
	return nil
}

// GetFolder returns one folder by id.
func (s Store) GetFolder(id int64) (models.Folder, error) {
	return scanFolder(s.q.QueryRow(`SELECT id, path, num_files, total_size, last_scanned FROM folders WHERE id = ?`, id), id)
}

// GetFolderByPath returns the folder registered at path.
func (s Store) GetFolderByPath(path string) (models.Folder, error) {
	f, err := scanFolder(s.q.QueryRow(`SELECT id, path, num_files, total_size, last_scanned FROM folders WHERE path = ?`, path), models.UnsetID)
	if errors.Is(err, models.ErrNotFound) {
		return f, fmt.Errorf("%w: folder %q", models.ErrNotFound, path)
	}
	return f, err
}

func scanFolder(row rowScanner, id int64) (models.Folder, error) {
	var f models.Folder
	var scanned int64
	err := row.Scan(&f.FolderID, &f.Path, &f.NumFiles, &f.TotalSizeBytes, &scanned)
	if errors.Is(err, sql.ErrNoRows) {
		return f, fmt.Errorf("%w: folder with ID %d", models.ErrNotFound, id)
	}
	if err != nil {
		return f, storeErr("scan folder", err)
	}
	f.LastScannedTime = fromMillis(scanned)
	return f, nil
}

// ListFolders returns every registered folder ordered by path.
func (s Store) ListFolders() ([]models.Folder, error) {
	rows, err := s.q.Query(`SELECT id, path, num_files, total_size, last_scanned FROM folders ORDER BY path`)
	if err != nil {
		return nil, storeErr("list folders", err)
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		f, err := scanFolder(rows, models.UnsetID)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, storeErr("iterate folders", rows.Err())
}

// RemoveFolder deletes a folder; its tracks and their memberships cascade.
func (s Store) RemoveFolder(id int64) error {
	result, err := s.q.Exec(`DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return storeErr("remove folder", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: folder with ID %d", models.ErrNotFound, id)
	}
	return nil
}

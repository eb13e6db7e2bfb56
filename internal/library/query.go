package library

import (
	"context"
	"fmt"

	"mixdeck/internal/database"
	"mixdeck/pkg/models"
)

// QueryEngine runs declarative track queries against the store.
type QueryEngine struct {
	db *database.Database
}

// Query returns the page of tracks selected by args.
func (e *QueryEngine) Query(args models.QueryArgs) ([]models.TrackInfo, error) {
	var tracks []models.TrackInfo
	err := e.db.Do(func(s database.Store) error {
		var err error
		tracks, err = s.QueryTracks(args)
		return err
	})
	return tracks, err
}

// QueryMixView returns one page of a mix-scoped query with the orderInMix
// of every row.
func (e *QueryEngine) QueryMixView(args models.QueryArgs) ([]models.TrackInfo, []int, error) {
	var tracks []models.TrackInfo
	var orders []int
	err := e.db.Do(func(s database.Store) error {
		var err error
		tracks, orders, err = s.QueryMixView(args)
		return err
	})
	return tracks, orders, err
}

// Count returns the number of rows args matches, ignoring paging.
func (e *QueryEngine) Count(args models.QueryArgs) (int, error) {
	var count int
	err := e.db.Do(func(s database.Store) error {
		var err error
		count, err = s.CountTracks(args)
		return err
	})
	return count, err
}

// TotalDuration sums the durations of every row args matches.
func (e *QueryEngine) TotalDuration(args models.QueryArgs) (int64, error) {
	var total int64
	err := e.db.Do(func(s database.Store) error {
		var err error
		total, err = s.SumDuration(args)
		return err
	})
	return total, err
}

// Stream calls fn for every track args matches, page by page starting at
// args.Page. The store is only held while a page is fetched. Returning an
// error from fn stops the stream with that error.
func (e *QueryEngine) Stream(ctx context.Context, args models.QueryArgs, fn func(models.TrackInfo) error) error {
	args.DisablePaging = false
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", models.ErrCancelled, err)
		}
		page, err := e.Query(args)
		if err != nil {
			return err
		}
		for _, track := range page {
			if err := fn(track); err != nil {
				return err
			}
		}
		if len(page) < models.PageSize {
			return nil
		}
		args.Page++
	}
}

package capture

import (
	"database/sql"

	"github.com/hpungsan/stump/internal/db"
	"github.com/hpungsan/stump/internal/errors"
)

// ListInput contains parameters for List.
type ListInput struct {
	Flavor string // optional filter
	Limit  int    // default 20, max 100
	Offset int
}

// Pagination contains pagination metadata for list output.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// ListOutput contains the result of List.
type ListOutput struct {
	Items      []db.Capture `json:"items"`
	Pagination Pagination   `json:"pagination"`
}

// List returns recorded captures, newest first.
func List(database *sql.DB, input ListInput) (*ListOutput, error) {
	if database == nil {
		return nil, ErrIndexDisabled()
	}

	limit := input.Limit
	if limit <= 0 {
		limit = db.DefaultListLimit
	}
	if limit > db.MaxListLimit {
		limit = db.MaxListLimit
	}
	offset := max(input.Offset, 0)

	items, total, err := db.List(database, db.ListFilters{Flavor: input.Flavor}, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}

// DeleteOutput contains the result of Delete.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Delete removes a capture from the index. The archive file is left in place.
func Delete(database *sql.DB, id string) (*DeleteOutput, error) {
	if database == nil {
		return nil, ErrIndexDisabled()
	}
	if id == "" {
		return nil, errors.NewInvalidRequest("capture id is required")
	}
	if err := db.Delete(database, id); err != nil {
		return nil, err
	}
	return &DeleteOutput{ID: id, Deleted: true}, nil
}

// Get returns one recorded capture.
func Get(database *sql.DB, id string) (*db.Capture, error) {
	if database == nil {
		return nil, ErrIndexDisabled()
	}
	if id == "" {
		return nil, errors.NewInvalidRequest("capture id is required")
	}
	return db.GetByID(database, id)
}

// ErrIndexDisabled is returned by index operations when no index is open.
func ErrIndexDisabled() *errors.StumpError {
	return errors.NewInvalidRequest("capture index is disabled")
}

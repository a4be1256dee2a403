package db

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/stump/internal/errors"
)

// Capture is one recorded archive.
type Capture struct {
	ID           string `json:"id"`
	TracePath    string `json:"trace_path"`
	ArchivePath  string `json:"archive_path"`
	Flavor       string `json:"flavor"`
	TaskCount    int    `json:"task_count"`
	AssetCount   int    `json:"asset_count"`
	ArchiveBytes int64  `json:"archive_bytes"`
	CreatedAt    int64  `json:"created_at"`
}

// ListFilters narrows List results. Zero values match everything.
type ListFilters struct {
	Flavor string
}

// DefaultListLimit applies when List is called with a non-positive limit.
const DefaultListLimit = 20

// MaxListLimit caps the page size.
const MaxListLimit = 100

const captureColumns = `id, trace_path, archive_path, flavor, task_count, asset_count, archive_bytes, created_at`

// Insert records a capture. A duplicate id returns ALREADY_EXISTS.
func Insert(db *sql.DB, c *Capture) error {
	query := `INSERT INTO captures (` + captureColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.Exec(query,
		c.ID, c.TracePath, c.ArchivePath, c.Flavor,
		c.TaskCount, c.AssetCount, c.ArchiveBytes, c.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewAlreadyExists(c.ID)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports primary key violations as "UNIQUE constraint failed: ..."
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves a capture by its ULID.
func GetByID(db *sql.DB, id string) (*Capture, error) {
	row := db.QueryRow(`SELECT `+captureColumns+` FROM captures WHERE id = ?`, id)
	c, err := scanCapture(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// List returns captures newest first, plus the total matching count.
func List(db *sql.DB, filters ListFilters, limit, offset int) ([]Capture, int, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	var args []any
	if filters.Flavor != "" {
		where = " WHERE flavor = ?"
		args = append(args, filters.Flavor)
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM captures`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	// id breaks created_at ties; ULIDs sort by creation time.
	query := `SELECT ` + captureColumns + ` FROM captures` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	captures := make([]Capture, 0, limit)
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		captures = append(captures, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return captures, total, nil
}

// Delete removes a capture record. The archive file is left alone.
func Delete(db *sql.DB, id string) error {
	result, err := db.Exec(`DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCapture(row scanner) (*Capture, error) {
	var c Capture
	err := row.Scan(
		&c.ID, &c.TracePath, &c.ArchivePath, &c.Flavor,
		&c.TaskCount, &c.AssetCount, &c.ArchiveBytes, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"
)

// A Filter selects the rows of a table. Where is an SQL condition without the
// WHERE keyword and its placeholders are bound to Args. A Limit of 0 selects
// all the matching rows.
type Filter struct {
	Where string
	Args  []any
	Limit int
}

func (f Filter) clause() string {
	if f.Where == "" {
		return ""
	}

	return " WHERE " + f.Where
}

// A Reader reads back the tables of a database written by a DataRecorder.
type Reader struct {
	db *sql.DB
}

// OpenReader opens a recorded database file. Unlike the recorder, it never
// creates the file.
func OpenReader(path string) (*Reader, error) {
	_, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a Reader over an open database.
func NewReaderWithDB(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Tables lists the tables stored in the database by name.
func (r *Reader) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string

	for rows.Next() {
		var name string

		err = rows.Scan(&name)
		if err != nil {
			return nil, err
		}

		tables = append(tables, name)
	}

	return tables, rows.Err()
}

// Count returns the number of rows of table that match f. The limit of f is
// ignored.
func (r *Reader) Count(ctx context.Context, table string, f Filter) (int, error) {
	var n int

	query := "SELECT COUNT(*) FROM " + table + f.clause()

	err := r.db.QueryRowContext(ctx, query, f.Args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting rows of %s: %w", table, err)
	}

	return n, nil
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Read returns the rows of table that match f, in the order they were
// recorded. T must be the flat struct the table was created from.
func Read[T any](
	ctx context.Context,
	r *Reader,
	table string,
	f Filter,
) ([]T, error) {
	var sample T

	entryMustBeFlat(sample)

	columns := structs.Names(sample)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY rowid",
		strings.Join(columns, ", "), table, f.clause())

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, f.Args...)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	defer rows.Close()

	var entries []T

	for rows.Next() {
		var entry T

		v := reflect.ValueOf(&entry).Elem()
		targets := make([]any, len(columns))

		for i, name := range columns {
			targets[i] = v.FieldByName(name).Addr().Interface()
		}

		err = rows.Scan(targets...)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", table, err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

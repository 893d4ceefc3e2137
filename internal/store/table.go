package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrTableNotFound is returned when a write targets a table that was never created.
// It indicates a configuration problem rather than a transient failure.
var ErrTableNotFound = errors.New("table not found")

// Row is one stored row addressed by its row index
type Row struct {
	Index  int64
	Values map[string]string
}

// Get returns the cell under header, or "" when absent
func (r Row) Get(header string) string {
	return r.Values[header]
}

// Filter restricts a read or replace to rows whose Column equals Value.
// The zero Filter matches every row.
type Filter struct {
	Column string
	Value  string
}

// ForAccount filters rows belonging to one account
func ForAccount(accountID string) Filter {
	return Filter{Column: ColAccountID, Value: accountID}
}

func hourColumn(h int) string {
	return strconv.Itoa(h)
}

// Headers returns the header row of table
func (s *Store) Headers(ctx context.Context, table string) ([]string, error) {
	return headers(ctx, s.db, table)
}

// ReadRows returns every row of table matching f, in row order.
// A missing table yields no rows and no error.
func (s *Store) ReadRows(ctx context.Context, table string, f Filter) ([]Row, error) {
	rows, err := readRows(ctx, s.db, table, f)
	if errors.Is(err, ErrTableNotFound) {
		return nil, nil
	}
	return rows, err
}

// AppendRows adds rows to the end of table in one batch
func (s *Store) AppendRows(ctx context.Context, table string, rows []map[string]string) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, func(q querier) error {
		return appendRows(ctx, q, table, rows)
	})
}

// UpdateCells overwrites the given cells of one row in place
func (s *Store) UpdateCells(ctx context.Context, table string, index int64, values map[string]string) error {
	return updateCells(ctx, s.db, table, index, values)
}

// DeleteRows removes rows by index, highest index first
func (s *Store) DeleteRows(ctx context.Context, table string, indexes []int64) error {
	if len(indexes) == 0 {
		return nil
	}
	return s.withTx(ctx, func(q querier) error {
		return deleteRows(ctx, q, table, indexes)
	})
}

// ReplaceRows deletes every row matching f and appends rows, atomically
func (s *Store) ReplaceRows(ctx context.Context, table string, f Filter, rows []map[string]string) error {
	return s.withTx(ctx, func(q querier) error {
		existing, err := readRows(ctx, q, table, f)
		if err != nil {
			return err
		}
		indexes := make([]int64, len(existing))
		for i, r := range existing {
			indexes[i] = r.Index
		}
		if err := deleteRows(ctx, q, table, indexes); err != nil {
			return err
		}
		return appendRows(ctx, q, table, rows)
	})
}

// upsert updates the first row matching f and match, or appends values when none does
func (s *Store) upsert(ctx context.Context, table string, f Filter, match func(Row) bool, values map[string]string) error {
	return s.withTx(ctx, func(q querier) error {
		rows, err := readRows(ctx, q, table, f)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if match(r) {
				return updateCells(ctx, q, table, r.Index, values)
			}
		}
		return appendRows(ctx, q, table, []map[string]string{values})
	})
}

// updateMatching overwrites values in every row matching f and match and
// returns how many rows changed
func (s *Store) updateMatching(ctx context.Context, table string, f Filter, match func(Row) bool, values map[string]string) (int, error) {
	n := 0
	err := s.withTx(ctx, func(q querier) error {
		rows, err := readRows(ctx, q, table, f)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if !match(r) {
				continue
			}
			if err := updateCells(ctx, q, table, r.Index, values); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// deleteMatching removes every row matching f and match and returns how many went
func (s *Store) deleteMatching(ctx context.Context, table string, f Filter, match func(Row) bool) (int, error) {
	n := 0
	err := s.withTx(ctx, func(q querier) error {
		indexes, err := matchingIndexes(ctx, q, table, f, match)
		if err != nil {
			return err
		}
		n = len(indexes)
		return deleteRows(ctx, q, table, indexes)
	})
	return n, err
}

// replaceMatching deletes the rows matching f and match and appends rows, atomically
func (s *Store) replaceMatching(ctx context.Context, table string, f Filter, match func(Row) bool, rows []map[string]string) error {
	return s.withTx(ctx, func(q querier) error {
		indexes, err := matchingIndexes(ctx, q, table, f, match)
		if err != nil {
			return err
		}
		if err := deleteRows(ctx, q, table, indexes); err != nil {
			return err
		}
		return appendRows(ctx, q, table, rows)
	})
}

func matchingIndexes(ctx context.Context, q querier, table string, f Filter, match func(Row) bool) ([]int64, error) {
	rows, err := readRows(ctx, q, table, f)
	if err != nil {
		return nil, err
	}
	var indexes []int64
	for _, r := range rows {
		if match(r) {
			indexes = append(indexes, r.Index)
		}
	}
	return indexes, nil
}

func headers(ctx context.Context, q querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to read headers of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan headers of %s: %w", table, err)
		}
		if name == rowIndexColumn {
			continue
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return cols, nil
}

func readRows(ctx context.Context, q querier, table string, f Filter) ([]Row, error) {
	cols, err := headers(ctx, q, table)
	if err != nil {
		return nil, err
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	query := fmt.Sprintf("SELECT %s, %s FROM %s", rowIndexColumn, strings.Join(quoted, ", "), quoteIdent(table))

	var args []any
	if f.Column != "" {
		if !contains(cols, f.Column) {
			return nil, fmt.Errorf("unknown column %q in table %s", f.Column, table)
		}
		query += fmt.Sprintf(" WHERE %s = ?", quoteIdent(f.Column))
		args = append(args, f.Value)
	}
	query += " ORDER BY " + rowIndexColumn

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		cells := make([]string, len(cols))
		dest := make([]any, len(cols)+1)
		var index int64
		dest[0] = &index
		for i := range cells {
			dest[i+1] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}

		values := make(map[string]string, len(cols))
		for i, c := range cols {
			values[c] = cells[i]
		}
		out = append(out, Row{Index: index, Values: values})
	}
	return out, rows.Err()
}

func appendRows(ctx context.Context, q querier, table string, rows []map[string]string) error {
	if len(rows) == 0 {
		return nil
	}
	cols, err := headers(ctx, q, table)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := checkColumns(cols, table, r); err != nil {
			return err
		}
	}

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	for _, r := range rows {
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = r[c]
		}
		if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to append to %s: %w", table, err)
		}
	}
	return nil
}

func updateCells(ctx context.Context, q querier, table string, index int64, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	cols, err := headers(ctx, q, table)
	if err != nil {
		return err
	}
	if err := checkColumns(cols, table, values); err != nil {
		return err
	}

	// Stable column order keeps statements identical across calls.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets[i] = quoteIdent(k) + " = ?"
		args = append(args, values[k])
	}
	args = append(args, index)

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", quoteIdent(table), strings.Join(sets, ", "), rowIndexColumn)
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s row %d: %w", table, index, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("row %d not found in %s", index, table)
	}
	return nil
}

func deleteRows(ctx context.Context, q querier, table string, indexes []int64) error {
	if len(indexes) == 0 {
		return nil
	}
	sorted := append([]int64(nil), indexes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(table), rowIndexColumn)
	for _, idx := range sorted {
		if _, err := q.ExecContext(ctx, stmt, idx); err != nil {
			return fmt.Errorf("failed to delete %s row %d: %w", table, idx, err)
		}
	}
	return nil
}

func checkColumns(cols []string, table string, values map[string]string) error {
	for k := range values {
		if !contains(cols, k) {
			return fmt.Errorf("unknown column %q in table %s", k, table)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Package filter narrows the line layer before assignment: an attribute
// expression selects rows and a polygon set clips geometry.
package filter

import (
	"context"
	"database/sql"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/segment-assigner/internal/model"
)

const rowIdx = "__row_idx"

// Match evaluates expr against every feature's attributes and returns the
// indices of matching features in ascending order.
//
// The expression is a SQLite boolean expression over the layer columns, so
// pandas-style filters such as STRUCTURE == 'OH' or
// VOLTAGE_KV >= 12 and OWNER != 'X' work unchanged. Values that parse as
// numbers compare numerically; empty values are NULL.
func Match(ctx context.Context, layer *model.Layer, expr string) ([]int, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		out := make([]int, layer.Len())
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	if strings.Contains(expr, ";") {
		return nil, eris.Errorf("filter: invalid expression %q: statements are not allowed", expr)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, eris.Wrap(err, "filter: open sqlite")
	}
	defer db.Close() //nolint:errcheck
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	cols := uniqueColumns(layer.Columns)
	if err := load(ctx, db, layer, cols); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT "+rowIdx+" FROM features WHERE ("+expr+") ORDER BY "+rowIdx)
	if err != nil {
		return nil, eris.Wrapf(err, "filter: invalid expression %q", expr)
	}
	defer rows.Close() //nolint:errcheck

	var out []int
	for rows.Next() {
		var i int
		if err := rows.Scan(&i); err != nil {
			return nil, eris.Wrap(err, "filter: scan row")
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "filter: invalid expression %q", expr)
	}
	return out, nil
}

// Apply returns a layer holding only the features matching expr.
func Apply(ctx context.Context, layer *model.Layer, expr string) (*model.Layer, error) {
	idx, err := Match(ctx, layer, expr)
	if err != nil {
		return nil, err
	}
	out := &model.Layer{EPSG: layer.EPSG, Columns: layer.Columns, Features: make([]model.Feature, 0, len(idx))}
	for _, i := range idx {
		out.Features = append(out.Features, layer.Features[i])
	}
	zap.L().Debug("filter: expression applied",
		zap.String("expr", expr),
		zap.Int("before", layer.Len()),
		zap.Int("after", out.Len()),
	)
	return out, nil
}

func load(ctx context.Context, db *sql.DB, layer *model.Layer, cols []string) error {
	defs := make([]string, 0, len(cols)+1)
	defs = append(defs, rowIdx+" INTEGER PRIMARY KEY")
	marks := make([]string, 0, len(cols)+1)
	marks = append(marks, "?")
	for _, c := range cols {
		// No declared type: values keep the storage class they are bound with.
		defs = append(defs, quoteIdent(c))
		marks = append(marks, "?")
	}

	if _, err := db.ExecContext(ctx, "CREATE TABLE features ("+strings.Join(defs, ", ")+")"); err != nil {
		return eris.Wrap(err, "filter: create table")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "filter: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	names := make([]string, 0, len(cols)+1)
	names = append(names, rowIdx)
	for _, c := range cols {
		names = append(names, quoteIdent(c))
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO features ("+strings.Join(names, ", ")+") VALUES ("+strings.Join(marks, ", ")+")")
	if err != nil {
		return eris.Wrap(err, "filter: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	args := make([]any, len(cols)+1)
	for i, f := range layer.Features {
		args[0] = i
		for j, c := range cols {
			args[j+1] = sqlValue(f.Props[c])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return eris.Wrap(err, "filter: insert row")
		}
	}
	return eris.Wrap(tx.Commit(), "filter: commit")
}

// uniqueColumns drops names SQLite would treat as duplicates, keeping the
// first spelling.
func uniqueColumns(cols []string) []string {
	seen := make(map[string]bool, len(cols))
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		k := strings.ToLower(c)
		if c == "" || seen[k] || k == rowIdx {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func sqlValue(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

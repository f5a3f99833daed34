package store

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/scholaraid/apiserver/types"
)

// builder accumulates positional arguments shared by the WHERE and SET
// clauses of a single statement.
type builder struct {
	args  []any
	conds []string
	sets  []string
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) eq(col string, v any) {
	b.conds = append(b.conds, col+" = "+b.arg(v))
}

func (b *builder) neq(col string, v any) {
	b.conds = append(b.conds, col+" <> "+b.arg(v))
}

func (b *builder) cond(sql string) {
	b.conds = append(b.conds, sql)
}

// ilike matches value as a case-insensitive substring of any of cols.
func (b *builder) ilike(value string, cols ...string) {
	placeholder := b.arg("%" + escapeLike(value) + "%")
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = col + " ILIKE " + placeholder
	}
	if len(parts) == 1 {
		b.conds = append(b.conds, parts[0])
		return
	}
	b.conds = append(b.conds, "("+strings.Join(parts, " OR ")+")")
}

func (b *builder) in(col string, values []string) {
	b.conds = append(b.conds, col+" = ANY("+b.arg(pq.Array(values))+")")
}

func (b *builder) where() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func (b *builder) set(col string, v any) {
	b.sets = append(b.sets, col+" = "+b.arg(v))
}

func (b *builder) assignments() string {
	return strings.Join(b.sets, ", ")
}

func (b *builder) page(offset, limit int) string {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}
	return " OFFSET " + b.arg(offset) + " LIMIT " + b.arg(limit)
}

func setOptional[T any](b *builder, col string, o types.Optional[T]) {
	if o.Set {
		b.set(col, o.Ptr())
	}
}

func setPtr[T any](b *builder, col string, v *T) {
	if v != nil {
		b.set(col, *v)
	}
}

func setJSON(b *builder, col string, o types.Optional[json.RawMessage]) {
	if o.Set {
		b.set(col, jsonParam(o.Value, o.Valid))
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// jsonParam passes JSON as text so lib/pq does not encode it as bytea.
func jsonParam(raw json.RawMessage, valid bool) any {
	if !valid || len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func textArray(values []string) any {
	if values == nil {
		values = []string{}
	}
	return pq.Array(values)
}

func textArrayPtr(values *[]string) any {
	if values == nil {
		return textArray(nil)
	}
	return textArray(*values)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Package sqlstore implements interfaces.LedgerStore on database/sql. Engine
// differences (DDL, placeholders, which errors mean "lost a race") live behind
// Dialect so Postgres and SQLite share one code path.
package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect describes one SQL engine.
type Dialect interface {
	Name() string
	// Schema returns idempotent DDL creating every table and index.
	Schema() string
	// Rebind rewrites '?' placeholders into the engine's syntax.
	Rebind(query string) string
	// IsConflict reports errors that mean a concurrent writer won: unique
	// violations, serialization failures, lock timeouts.
	IsConflict(err error) bool
}

// QuestionRebind leaves '?' placeholders untouched.
func QuestionRebind(query string) string {
	return query
}

// DollarRebind rewrites '?' placeholders to $1, $2, ...
func DollarRebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

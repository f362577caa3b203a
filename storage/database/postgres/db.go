// Package pgdb implements the repositories on PostgreSQL with sqlx.
package pgdb

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/sciencequest/core"
)

// Postgres error codes
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

// pqError returns the postgres error code and constraint name of err, if any.
func pqError(err error) (code, constraint string) {
	if pqErr, ok := err.(*pq.Error); ok {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

// trapNoRowsErr maps sql.ErrNoRows to notFound.
func trapNoRowsErr(err, notFound error) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return err
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// validUUIDs drops the ids that are not UUIDs (they cannot match any row).
func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

// where accumulates AND-ed conditions written with `?` bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// query appends the WHERE and ORDER BY clauses to `base` and rebinds it for postgres.
func (w *where) query(db *sqlx.DB, base string, orderBy string) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(base)
	if len(w.conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(w.conds, " AND "))
	}
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}
	return db.Rebind(sb.String()), w.args
}

// orderClause maps API orderings to columns, falling back to `byDefault`.
func orderClause(ordering []core.DBOrdering, columns map[string]string, byDefault string) string {
	allowed := core.AllowedOrderings(ordering, columns)
	if len(allowed) == 0 {
		return byDefault
	}
	terms := make([]string, 0, len(allowed)+1)
	for _, ord := range allowed {
		terms = append(terms, ord.String())
	}
	terms = append(terms, byDefault)
	return strings.Join(terms, ", ")
}

func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

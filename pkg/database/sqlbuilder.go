package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Excluded references the proposed row inside ON CONFLICT DO UPDATE
func Excluded(column string) string {
	return fmt.Sprintf("%s = EXCLUDED.%s", column, column)
}

func NewInsertBuilder() *sqlbuilder.InsertBuilder {
	return sqlbuilder.PostgreSQL.NewInsertBuilder()
}

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return sqlbuilder.PostgreSQL.NewSelectBuilder()
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return sqlbuilder.PostgreSQL.NewUpdateBuilder()
}

func NewDeleteBuilder() *sqlbuilder.DeleteBuilder {
	return sqlbuilder.PostgreSQL.NewDeleteBuilder()
}

// OnConflictUpdate appends an upsert clause that overwrites the listed columns
func OnConflictUpdate(ib *sqlbuilder.InsertBuilder, conflict []string, update ...string) {
	sets := make([]string, len(update))
	for i, col := range update {
		sets[i] = Excluded(col)
	}
	ib.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflict, ", "), strings.Join(sets, ", ")))
}

// OnConflictDoNothing appends an insert-or-skip clause
func OnConflictDoNothing(ib *sqlbuilder.InsertBuilder) {
	ib.SQL("ON CONFLICT DO NOTHING")
}

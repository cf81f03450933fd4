package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func stringOrNil(value *string) any {
	if value == nil {
		return nil
	}
	if *value == "" {
		return nil
	}
	return *value
}

func uuidOrNil(value *uuid.UUID) any {
	if value == nil || *value == uuid.Nil {
		return nil
	}
	return *value
}

func stringSliceOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullStringToPtr(value sql.NullString) *string {
	if value.Valid {
		val := value.String
		return &val
	}
	return nil
}

func nullUUIDToPtr(value sql.NullString) (*uuid.UUID, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// setBuilder accumulates "column = $n" fragments for partial updates.
type setBuilder struct {
	clauses []string
	args    []any
}

func (b *setBuilder) add(column string, value any) {
	b.args = append(b.args, value)
	b.clauses = append(b.clauses, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

func (b *setBuilder) empty() bool {
	return len(b.clauses) == 0
}

// build returns the SET list and the placeholder index for the trailing id argument.
func (b *setBuilder) build(id any) (string, []any, int) {
	args := append(append([]any{}, b.args...), id)
	return strings.Join(append(b.clauses, "updated_at = NOW()"), ", "), args, len(args)
}

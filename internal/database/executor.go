package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

const statusOK = "OK"

// Query executes a SurrealQL statement and decodes the rows of its first result into T.
//
// Example:
//
//	msgs, err := Query[messageRecord](ctx, db, "SELECT * FROM messages WHERE path = $path", map[string]any{"path": p})
func Query[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]T, error) {
	queryResults, err := surrealdb.Query[[]T](ctx, db, query, params)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	if queryResults == nil || len(*queryResults) == 0 {
		return nil, nil
	}
	first := (*queryResults)[0]
	if first.Status != "" && !strings.EqualFold(first.Status, statusOK) {
		return nil, fmt.Errorf("query failed with status: %s", first.Status)
	}
	return first.Result, nil
}

// Execute runs a statement whose rows are not needed and reports only its error.
func Execute(ctx context.Context, db *surrealdb.DB, query string, params map[string]any) error {
	queryResults, err := surrealdb.Query[any](ctx, db, query, params)
	if err != nil {
		return fmt.Errorf("query execution failed: %w", err)
	}
	if queryResults != nil {
		for _, r := range *queryResults {
			if r.Status != "" && !strings.EqualFold(r.Status, statusOK) {
				return fmt.Errorf("statement failed with status: %s", r.Status)
			}
		}
	}
	return nil
}

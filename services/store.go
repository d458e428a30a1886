package services

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Predicate is the set of conditions a row must satisfy, ANDed together.
type Predicate []clause.Expression

func Eq(column string, value any) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: column}, Value: value}
}

func Neq(column string, value any) clause.Expression {
	return clause.Neq{Column: clause.Column{Name: column}, Value: value}
}

func IsNull(column string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: column}, Value: nil}
}

func NotNull(column string) clause.Expression {
	return clause.Neq{Column: clause.Column{Name: column}, Value: nil}
}

func In(column string, values ...any) clause.Expression {
	return clause.IN{Column: clause.Column{Name: column}, Values: values}
}

func NotIn(column string, values ...any) clause.Expression {
	return clause.Not(clause.IN{Column: clause.Column{Name: column}, Values: values})
}

func Before(column string, value any) clause.Expression {
	return clause.Lt{Column: clause.Column{Name: column}, Value: value}
}

func AtOrBefore(column string, value any) clause.Expression {
	return clause.Lte{Column: clause.Column{Name: column}, Value: value}
}

func After(column string, value any) clause.Expression {
	return clause.Gt{Column: clause.Column{Name: column}, Value: value}
}

// CompareAndSwap applies next to the row(s) of model matching key, but
// only while they still satisfy expected. It is a single conditional
// UPDATE, so of any number of concurrent callers whose expectations
// conflict exactly one observes swapped == true.
func CompareAndSwap(ctx context.Context, db *gorm.DB, model any, key, expected Predicate, next map[string]any) (bool, error) {
	n, err := CompareAndSwapAll(ctx, db, model, key, expected, next)
	return n > 0, err
}

// CompareAndSwapAll is CompareAndSwap for bulk transitions; it returns the
// number of rows swapped.
func CompareAndSwapAll(ctx context.Context, db *gorm.DB, model any, key, expected Predicate, next map[string]any) (int64, error) {
	conds := make([]clause.Expression, 0, len(key)+len(expected))
	conds = append(conds, key...)
	conds = append(conds, expected...)

	result := db.WithContext(ctx).
		Model(model).
		Clauses(clause.Where{Exprs: conds}).
		Updates(next)
	if result.Error != nil {
		return 0, storageErr("compare and swap", result.Error)
	}
	return result.RowsAffected, nil
}

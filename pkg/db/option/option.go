package option

import (
	"fmt"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type Operator string

const (
	EQ  Operator = "="
	LT  Operator = "<"
	LTE Operator = "<="
	GT  Operator = ">"
	GTE Operator = ">="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type conditionOption struct {
	cond Condition
}

func (o conditionOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s %s ?", o.cond.Field, o.cond.Operator), o.cond.Value)
}

func ApplyOperator(cond Condition) QueryOption {
	return conditionOption{cond: cond}
}

type orderOption struct {
	order string
}

func (o orderOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(o.order)
}

func WithOrder(order string) QueryOption {
	return orderOption{order: order}
}

type limitOption struct {
	limit int
}

func (o limitOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(o.limit)
}

func WithLimit(limit int) QueryOption {
	return limitOption{limit: limit}
}

type whereOption struct {
	query string
	args  []any
}

func (o whereOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(o.query, o.args...)
}

func Where(query string, args ...any) QueryOption {
	return whereOption{query: query, args: args}
}

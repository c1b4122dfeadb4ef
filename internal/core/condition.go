package core

import (
	"fmt"
	"strings"
)

const (
	connAnd = " AND "
	connOr  = " OR "
)

// ConditionBuilder accumulates the clauses of one WHERE group.
//
// Every clause but the first carries its connective, so rendering is plain
// concatenation. A nested group links to its parent only; it is merged into
// the parent once, when EndWhereGroup is called, and the parent never keeps
// a list of its children.
//
// Example:
//
//	db.With("user").
//	    Where("status", "active").
//	    BeginWhereGroup().
//	        Where("role", "admin").
//	        WhereOR("role", "owner").
//	    End().
//	    All()
//	// SELECT * FROM user WHERE status = :p1 AND (role = :p2 OR role = :p3)
type ConditionBuilder struct {
	clauses []string
	params  Params
	parent  *ConditionBuilder
	query   *QueryBuilder
	ended   bool
}

func newConditionBuilder(qb *QueryBuilder, parent *ConditionBuilder) *ConditionBuilder {
	return &ConditionBuilder{
		params: make(Params),
		parent: parent,
		query:  qb,
	}
}

// Where adds an AND clause with a bound value.
//
// With one argument the operator is "=":
//
//	Where("id", 1)         // id = :p1
//
// With two arguments the first is the operator:
//
//	Where("id", "<", 2)    // id < :p1
//	Where("name", "LIKE", "ja%")
//
// Any other arity, or a non-string operator, panics.
func (cb *ConditionBuilder) Where(field string, args ...any) *ConditionBuilder {
	return cb.bind(connAnd, field, args)
}

// WhereOR adds an OR clause with a bound value. Arguments follow Where.
func (cb *ConditionBuilder) WhereOR(field string, args ...any) *ConditionBuilder {
	return cb.bind(connOr, field, args)
}

// WhereRaw adds an AND clause whose right-hand side is inlined verbatim.
//
//	WhereRaw("created_at", "<", "NOW()")   // created_at < NOW()
//
// The fragment is not bound or escaped.
func (cb *ConditionBuilder) WhereRaw(field, op, fragment string) *ConditionBuilder {
	cb.add(connAnd, field+" "+op+" "+fragment)
	return cb
}

// WhereORRaw adds an OR clause whose right-hand side is inlined verbatim.
func (cb *ConditionBuilder) WhereORRaw(field, op, fragment string) *ConditionBuilder {
	cb.add(connOr, field+" "+op+" "+fragment)
	return cb
}

// BeginWhereGroup opens a nested group. Clauses added to the returned
// builder are combined with this one's by EndWhereGroup.
func (cb *ConditionBuilder) BeginWhereGroup() *ConditionBuilder {
	return newConditionBuilder(cb.query, cb)
}

// EndWhereGroup merges this group into its parent with AND and returns the
// parent. A group with several clauses is parenthesized, a single clause is
// merged as is, and an empty group leaves the parent untouched.
// Calling it on the root group, or twice on the same group, returns ErrInvalidState.
func (cb *ConditionBuilder) EndWhereGroup() (*ConditionBuilder, error) {
	if cb.parent == nil {
		return nil, fmt.Errorf("%w: root condition group has no parent", ErrInvalidState)
	}
	if cb.ended {
		return nil, fmt.Errorf("%w: condition group already ended", ErrInvalidState)
	}
	cb.ended = true

	if len(cb.clauses) == 0 {
		return cb.parent, nil
	}

	cond := cb.CondStr()
	if len(cb.clauses) > 1 {
		cond = "(" + cond + ")"
	}
	cb.parent.add(connAnd, cond)
	cb.parent.params.merge(cb.params)

	return cb.parent, nil
}

// End ends a top-level group and returns the owning QueryBuilder so the
// chain can continue with a terminal operation. It panics when called on
// the root group or on a group nested more than one level deep.
func (cb *ConditionBuilder) End() *QueryBuilder {
	parent, err := cb.EndWhereGroup()
	if err != nil {
		panic(err)
	}
	if parent.parent != nil {
		panic(fmt.Errorf("%w: End called on a nested group, use EndWhereGroup", ErrInvalidState))
	}
	return cb.query
}

// CondStr renders the accumulated clauses. It returns "" for an empty group.
func (cb *ConditionBuilder) CondStr() string {
	return strings.Join(cb.clauses, "")
}

// Params returns a copy of the values bound in this group.
func (cb *ConditionBuilder) Params() map[string]any {
	return cb.params.clone()
}

// Len returns the number of clauses in this group.
func (cb *ConditionBuilder) Len() int {
	return len(cb.clauses)
}

// bind registers the value under a fresh placeholder and adds "field op :pN".
func (cb *ConditionBuilder) bind(conn, field string, args []any) *ConditionBuilder {
	var op string
	var value any

	switch len(args) {
	case 1:
		op, value = "=", args[0]
	case 2:
		s, ok := args[0].(string)
		if !ok {
			panic(fmt.Sprintf("Where(%q): operator must be a string, got %T", field, args[0]))
		}
		op, value = s, args[1]
	default:
		panic(fmt.Sprintf("Where(%q): expects (value) or (operator, value), got %d arguments", field, len(args)))
	}

	name := cb.query.alloc.nextParamName()
	cb.params[name] = value
	cb.add(conn, field+" "+op+" "+name)
	return cb
}

func (cb *ConditionBuilder) add(conn, clause string) {
	if len(cb.clauses) > 0 {
		clause = conn + clause
	}
	cb.clauses = append(cb.clauses, clause)
}

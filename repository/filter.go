package repository

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

type FilterOp string

const (
	OpEq FilterOp = "=="
	OpNe FilterOp = "!="
	OpIn FilterOp = "in"
)

// Filter is one query predicate. Eq and Ne compare whole values; a missing
// field never equals anything.
type Filter struct {
	Field  string
	Op     FilterOp
	Value  any
	Values []any
}

func Eq(field string, v any) Filter { return Filter{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Filter { return Filter{Field: field, Op: OpNe, Value: v} }

func In(field string, values ...any) Filter {
	return Filter{Field: field, Op: OpIn, Values: values}
}

type OrderBy struct {
	Field string
	Desc  bool
}

func Asc(field string) *OrderBy  { return &OrderBy{Field: field} }
func Desc(field string) *OrderBy { return &OrderBy{Field: field, Desc: true} }

func matches(doc map[string]any, filters []Filter) (bool, error) {
	for _, f := range filters {
		v, present := lookup(doc, f.Field)
		switch f.Op {
		case OpEq, OpNe:
			want, err := normalize(f.Value)
			if err != nil {
				return false, err
			}
			eq := present && reflect.DeepEqual(v, want)
			if (f.Op == OpEq) != eq {
				return false, nil
			}
		case OpIn:
			found := false
			for _, candidate := range f.Values {
				want, err := normalize(candidate)
				if err != nil {
					return false, err
				}
				if present && reflect.DeepEqual(v, want) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		}
	}
	return true, nil
}

// compareValues orders generic JSON values. RFC 3339 strings compare as times.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			at, aerr := time.Parse(time.RFC3339Nano, av)
			bt, berr := time.Parse(time.RFC3339Nano, bv)
			if aerr == nil && berr == nil {
				return at.Compare(bt)
			}
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	return 0
}

// sortDocs orders docs by the given field, breaking ties by id.
func sortDocs(docs []map[string]any, order *OrderBy) {
	if order == nil {
		sort.SliceStable(docs, func(i, j int) bool {
			return compareValues(docs[i]["id"], docs[j]["id"]) < 0
		})
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := lookup(docs[i], order.Field)
		b, _ := lookup(docs[j], order.Field)
		c := compareValues(a, b)
		if c == 0 {
			return compareValues(docs[i]["id"], docs[j]["id"]) < 0
		}
		if order.Desc {
			return c > 0
		}
		return c < 0
	})
}

// Package condition: álgebra cerrada de predicados para menciones legales condicionales.
//
// Un Condition es uno de PathCheck, Compare, And, Or, Not o Unknown. Evaluate recorre el
// árbol con un switch exhaustivo; cualquier forma desconocida evalúa a false.
package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Facts fuente de hechos consultables por ruta con puntos ("transaction.isIntraEU").
type Facts interface {
	Lookup(path string) (any, bool)
}

// Condition variante del union; el método sellado impide implementaciones externas.
type Condition interface {
	isCondition()
}

// PathCheck verdadero si la ruta existe y su valor es verdadero (bool) o no vacío (string).
type PathCheck struct {
	Path string
}

// Operator operador de comparación.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpIn        Operator = "in"
	OpGT        Operator = "gt"
	OpGTE       Operator = "gte"
	OpLT        Operator = "lt"
	OpLTE       Operator = "lte"
	OpContains  Operator = "contains"
	OpMatches   Operator = "matches"
	OpExists    Operator = "exists"
)

// Compare compara el valor de Property con Value.
type Compare struct {
	Property string
	Operator Operator
	Value    any
}

// And verdadero si todas las condiciones lo son (vacío = true).
type And []Condition

// Or verdadero si alguna condición lo es (vacío = false).
type Or []Condition

// Not niega Inner; un Inner desconocido sigue siendo false tras negar.
type Not struct {
	Inner Condition
}

// Unknown forma no reconocida; conserva la representación para el log.
type Unknown struct {
	Raw string
}

func (PathCheck) isCondition() {}
func (Compare) isCondition()   {}
func (And) isCondition()       {}
func (Or) isCondition()        {}
func (Not) isCondition()       {}
func (Unknown) isCondition()   {}

// Evaluate evalúa c contra f. Nunca entra en pánico.
func Evaluate(c Condition, f Facts) bool {
	switch v := c.(type) {
	case PathCheck:
		val, ok := f.Lookup(v.Path)
		return ok && truthy(val)
	case Compare:
		return evalCompare(v, f)
	case And:
		for _, sub := range v {
			if !Evaluate(sub, f) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range v {
			if Evaluate(sub, f) {
				return true
			}
		}
		return false
	case Not:
		if v.Inner == nil || HasUnknown(v.Inner) {
			return false
		}
		return !Evaluate(v.Inner, f)
	default:
		return false
	}
}

// HasUnknown indica si el árbol contiene alguna forma no reconocida.
func HasUnknown(c Condition) bool {
	switch v := c.(type) {
	case PathCheck, Compare:
		return false
	case And:
		for _, sub := range v {
			if HasUnknown(sub) {
				return true
			}
		}
		return false
	case Or:
		for _, sub := range v {
			if HasUnknown(sub) {
				return true
			}
		}
		return false
	case Not:
		return v.Inner == nil || HasUnknown(v.Inner)
	default:
		return true
	}
}

func evalCompare(c Compare, f Facts) bool {
	actual, ok := f.Lookup(c.Property)
	switch c.Operator {
	case OpExists:
		return ok && actual != nil && actual != ""
	case OpEquals:
		return ok && equal(actual, c.Value)
	case OpNotEquals:
		return ok && !equal(actual, c.Value)
	case OpIn:
		if !ok {
			return false
		}
		for _, candidate := range toSlice(c.Value) {
			if equal(actual, candidate) {
				return true
			}
		}
		return false
	case OpGT, OpGTE, OpLT, OpLTE:
		if !ok {
			return false
		}
		a, okA := toFloat(actual)
		b, okB := toFloat(c.Value)
		if !okA || !okB {
			return false
		}
		switch c.Operator {
		case OpGT:
			return a > b
		case OpGTE:
			return a >= b
		case OpLT:
			return a < b
		default:
			return a <= b
		}
	case OpContains:
		if !ok {
			return false
		}
		if list, isList := actual.([]string); isList {
			for _, s := range list {
				if equal(s, c.Value) {
					return true
				}
			}
			return false
		}
		s, isStr := actual.(string)
		needle, isNeedle := c.Value.(string)
		return isStr && isNeedle && strings.Contains(s, needle)
	case OpMatches:
		if !ok {
			return false
		}
		pattern, isStr := c.Value.(string)
		if !isStr {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(fmt.Sprint(actual))
	default:
		return false
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	default:
		return false
	}
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out
	default:
		return []any{v}
	}
}

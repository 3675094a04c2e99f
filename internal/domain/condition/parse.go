package condition

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// named condiciones heredadas referenciadas por nombre en la tabla de países.
var named = map[string]Condition{
	"intra_eu":       PathCheck{Path: "transaction.isIntraEU"},
	"export":         PathCheck{Path: "transaction.isExport"},
	"domestic":       PathCheck{Path: "transaction.isDomestic"},
	"b2b":            Compare{Property: "transaction.type", Operator: OpEquals, Value: "B2B"},
	"b2g":            Compare{Property: "transaction.type", Operator: OpEquals, Value: "B2G"},
	"b2c":            Compare{Property: "transaction.type", Operator: OpEquals, Value: "B2C"},
	"goods":          Compare{Property: "transaction.nature", Operator: OpEquals, Value: "goods"},
	"services":       Compare{Property: "transaction.nature", Operator: OpEquals, Value: "services"},
	"mixed":          Compare{Property: "transaction.nature", Operator: OpEquals, Value: "mixed"},
	"public_entity":  PathCheck{Path: "customer.isPublicEntity"},
	"customer_vat":   Compare{Property: "customer.vatNumber", Operator: OpExists},
	"reverse_charge": ReverseCharge(),
}

// ReverseCharge intracomunitario + cliente con NIF-IVA válido + B2B/B2G.
func ReverseCharge() Condition {
	return And{
		PathCheck{Path: "transaction.isIntraEU"},
		PathCheck{Path: "customer.isVatRegistered"},
		Compare{Property: "transaction.type", Operator: OpIn, Value: []any{"B2B", "B2G"}},
	}
}

// Named resuelve un nombre heredado; un nombre desconocido devuelve Unknown.
func Named(name string) Condition {
	if c, ok := named[name]; ok {
		return c
	}
	return Unknown{Raw: name}
}

// Parse convierte la forma genérica (decodificada de YAML o JSON) en un Condition:
//
//	"transaction.isIntraEU"                          -> PathCheck
//	"reverse_charge"                                 -> tabla de nombres
//	{path: ...}                                      -> PathCheck
//	{property: ..., operator: ..., value: ...}       -> Compare
//	{and: [...]} / {or: [...]} / {not: ...}          -> And / Or / Not
//
// Cualquier otra forma produce Unknown.
func Parse(raw any) Condition {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if strings.Contains(s, ".") {
			return PathCheck{Path: s}
		}
		return Named(s)
	case map[string]any:
		return parseMap(v)
	default:
		return Unknown{Raw: fmt.Sprintf("%v", raw)}
	}
}

func parseMap(m map[string]any) Condition {
	if len(m) == 1 {
		for k, val := range m {
			switch k {
			case "and":
				return And(parseList(val))
			case "or":
				return Or(parseList(val))
			case "not":
				return Not{Inner: Parse(val)}
			case "path":
				if p, ok := val.(string); ok && p != "" {
					return PathCheck{Path: p}
				}
			}
		}
	}
	prop, okProp := m["property"].(string)
	op, okOp := m["operator"].(string)
	if okProp && okOp && prop != "" {
		return Compare{Property: prop, Operator: Operator(op), Value: m["value"]}
	}
	return Unknown{Raw: fmt.Sprintf("%v", m)}
}

func parseList(raw any) []Condition {
	items, ok := raw.([]any)
	if !ok {
		return []Condition{Unknown{Raw: fmt.Sprintf("%v", raw)}}
	}
	out := make([]Condition, 0, len(items))
	for _, it := range items {
		out = append(out, Parse(it))
	}
	return out
}

// Spec envuelve un Condition decodificable desde YAML y JSON.
type Spec struct {
	Condition
}

// UnmarshalYAML implementa yaml.Unmarshaler.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	s.Condition = Parse(raw)
	return nil
}

// UnmarshalJSON implementa json.Unmarshaler.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Condition = Parse(raw)
	return nil
}

// MarshalJSON expone la condición en la forma genérica que acepta Parse.
func (s Spec) MarshalJSON() ([]byte, error) {
	return json.Marshal(toRaw(s.Condition))
}

func toRaw(c Condition) any {
	switch v := c.(type) {
	case PathCheck:
		return map[string]any{"path": v.Path}
	case Compare:
		return map[string]any{"property": v.Property, "operator": string(v.Operator), "value": v.Value}
	case And:
		return map[string]any{"and": rawList(v)}
	case Or:
		return map[string]any{"or": rawList(v)}
	case Not:
		return map[string]any{"not": toRaw(v.Inner)}
	case Unknown:
		return v.Raw
	default:
		return nil
	}
}

func rawList(list []Condition) []any {
	out := make([]any, len(list))
	for i, c := range list {
		out[i] = toRaw(c)
	}
	return out
}

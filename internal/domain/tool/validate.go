package tool

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseArguments decodes the raw JSON arguments of a tool call.
func ParseArguments(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	return args, nil
}

// ValidateArgs checks raw arguments against the tool's parameter schema and
// returns typed values. Missing required parameters and non-coercible values
// are rejected before any HTTP request is made. Parameters not present in
// the schema are dropped silently.
func ValidateArgs(t Tool, args map[string]interface{}) (map[string]Value, error) {
	validated := make(map[string]Value, len(t.Params))

	for _, p := range t.Params {
		raw, ok := args[p.Name]
		if !ok || raw == nil {
			if p.Required {
				return nil, fmt.Errorf("tool %s: missing required parameter %q", t.Slug, p.Name)
			}
			continue
		}

		value, err := coerce(p, raw)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Slug, err)
		}
		validated[p.Name] = value
	}

	return validated, nil
}

func coerce(p Param, raw interface{}) (Value, error) {
	switch p.Type {
	case ParamString:
		switch v := raw.(type) {
		case string:
			return StringValue(v), nil
		case float64:
			return StringValue(strconv.FormatFloat(v, 'f', -1, 64)), nil
		case bool:
			return StringValue(strconv.FormatBool(v)), nil
		default:
			return Value{}, fmt.Errorf("parameter %q must be a string", p.Name)
		}
	case ParamNumber:
		switch v := raw.(type) {
		case float64:
			return NumberValue(v), nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return Value{}, fmt.Errorf("parameter %q must be a number, got %q", p.Name, v)
			}
			return NumberValue(n), nil
		default:
			return Value{}, fmt.Errorf("parameter %q must be a number", p.Name)
		}
	default:
		return Value{}, fmt.Errorf("parameter %q has unsupported type %q", p.Name, p.Type)
	}
}

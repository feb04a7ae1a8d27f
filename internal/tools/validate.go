package tools

import (
	"fmt"
	"math"
	"strings"
)

// ValidateParams checks args against a JSON-Schema object before tool
// execution. It returns one message per violated constraint, phrased so
// the LLM can correct the call. Supported keywords: type, enum,
// minimum/maximum, minLength/maxLength, required, properties, items.
func ValidateParams(schema, args map[string]interface{}) []string {
	value := make(map[string]interface{}, len(args))
	for k, v := range args {
		value[k] = v
	}
	return validateValue(value, schema, "params")
}

func validateValue(value interface{}, schema map[string]interface{}, label string) []string {
	var errs []string

	if t, ok := schema["type"].(string); ok {
		if !typeMatches(value, t) {
			errs = append(errs, fmt.Sprintf("%s should be %s", label, t))
			return errs
		}
	}

	if enum, ok := schema["enum"].([]interface{}); ok && len(enum) > 0 {
		if !enumContains(enum, value) {
			errs = append(errs, fmt.Sprintf("%s must be one of %s", label, formatEnum(enum)))
		}
	}

	if n, ok := asNumber(value); ok {
		if min, has := asSchemaNumber(schema["minimum"]); has && n < min {
			errs = append(errs, fmt.Sprintf("%s must be >= %v", label, min))
		}
		if max, has := asSchemaNumber(schema["maximum"]); has && n > max {
			errs = append(errs, fmt.Sprintf("%s must be <= %v", label, max))
		}
	}

	if s, ok := value.(string); ok {
		if min, has := asSchemaNumber(schema["minLength"]); has && len(s) < int(min) {
			errs = append(errs, fmt.Sprintf("%s must have length >= %d", label, int(min)))
		}
		if max, has := asSchemaNumber(schema["maxLength"]); has && len(s) > int(max) {
			errs = append(errs, fmt.Sprintf("%s must have length <= %d", label, int(max)))
		}
	}

	if obj, ok := value.(map[string]interface{}); ok {
		if required, rok := schema["required"].([]interface{}); rok {
			for _, rk := range required {
				key, _ := rk.(string)
				if _, present := obj[key]; key != "" && !present {
					errs = append(errs, fmt.Sprintf("missing required %s", key))
				}
			}
		}
		if required, rok := schema["required"].([]string); rok {
			for _, key := range required {
				if _, present := obj[key]; !present {
					errs = append(errs, fmt.Sprintf("missing required %s", key))
				}
			}
		}
		if props, pok := schema["properties"].(map[string]interface{}); pok {
			for key, sub := range props {
				subSchema, sok := sub.(map[string]interface{})
				if !sok {
					continue
				}
				if v, present := obj[key]; present {
					errs = append(errs, validateValue(v, subSchema, key)...)
				}
			}
		}
	}

	if arr, ok := value.([]interface{}); ok {
		if items, iok := schema["items"].(map[string]interface{}); iok {
			for i, item := range arr {
				errs = append(errs, validateValue(item, items, fmt.Sprintf("%s[%d]", label, i))...)
			}
		}
	}

	return errs
}

func typeMatches(value interface{}, t string) bool {
	switch t {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "integer":
		n, ok := asNumber(value)
		return ok && n == math.Trunc(n)
	case "number":
		_, ok := asNumber(value)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	}
	return true
}

// asNumber accepts the numeric shapes JSON decoding and Go callers produce.
func asNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func asSchemaNumber(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return asNumber(v)
}

func enumContains(enum []interface{}, value interface{}) bool {
	for _, e := range enum {
		if e == value {
			return true
		}
		en, eok := asNumber(e)
		vn, vok := asNumber(value)
		if eok && vok && en == vn {
			return true
		}
	}
	return false
}

func formatEnum(enum []interface{}) string {
	parts := make([]string, len(enum))
	for i, e := range enum {
		parts[i] = fmt.Sprintf("%v", e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// ValidationError locates the first mismatch between a document and its
// schema.
type ValidationError struct {
	Path        string
	Expected    string
	Actual      string
	ActualValue any
	Message     string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		if e.Path == "" {
			return e.Message
		}
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	detail := formatActualDetail(e.Actual, e.ActualValue)
	if e.Path == "" {
		return fmt.Sprintf("expected %s, got %s", e.Expected, detail)
	}
	return fmt.Sprintf("%s: expected %s, got %s", e.Path, e.Expected, detail)
}

// ValidateObject validates a decoded document whose root is an object.
func ValidateObject(s *jsonschema.Schema, object map[string]any) error {
	if s == nil {
		return nil
	}
	return validateObject(s, object, "")
}

// ValidateValue validates any decoded value.
func ValidateValue(s *jsonschema.Schema, value any) error {
	return validateSchema(s, value, "")
}

func validateSchema(s *jsonschema.Schema, value any, path string) error {
	if s == nil {
		return nil
	}
	if value == nil {
		if allowsNull(s) {
			return nil
		}
		return &ValidationError{Path: path, Expected: expectedType(s), Actual: "null"}
	}

	if len(s.AnyOf) > 0 {
		for _, option := range s.AnyOf {
			if validateSchema(option, value, path) == nil {
				return nil
			}
		}
		return mismatch(path, expectedType(s), value)
	}
	if len(s.OneOf) > 0 {
		matches := 0
		for _, option := range s.OneOf {
			if validateSchema(option, value, path) == nil {
				matches++
			}
		}
		if matches == 1 {
			return nil
		}
		return mismatch(path, expectedType(s), value)
	}

	switch resolvedType(s) {
	case "object":
		object, ok := asStringMap(value)
		if !ok {
			return mismatch(path, "object", value)
		}
		return validateObject(s, object, path)
	case "array":
		items, ok := asSlice(value)
		if !ok {
			return mismatch(path, "array", value)
		}
		if s.Items == nil {
			return nil
		}
		for index, item := range items {
			if err := validateSchema(s.Items, item, fmt.Sprintf("%s[%d]", path, index)); err != nil {
				return err
			}
		}
		return nil
	case "string":
		if _, ok := value.(string); !ok {
			return mismatch(path, "string", value)
		}
		return validateEnum(s, value, path)
	case "boolean":
		if _, ok := value.(bool); !ok {
			return mismatch(path, "boolean", value)
		}
		return nil
	case "integer":
		if !isInteger(value) {
			return mismatch(path, "integer", value)
		}
		return nil
	case "number":
		if !isInteger(value) && !isFloat(value) {
			return mismatch(path, "number", value)
		}
		return nil
	default:
		return nil
	}
}

func validateObject(s *jsonschema.Schema, object map[string]any, path string) error {
	for _, required := range s.Required {
		if _, ok := object[required]; !ok {
			return &ValidationError{Path: joinPath(path, required), Message: "missing required field"}
		}
	}

	properties := map[string]*jsonschema.Schema{}
	if s.Properties != nil {
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			properties[pair.Key] = pair.Value
		}
	}

	for key, value := range object {
		propertyPath := joinPath(path, key)
		if propertySchema, ok := properties[key]; ok {
			if err := validateSchema(propertySchema, value, propertyPath); err != nil {
				return err
			}
			continue
		}
		if s.AdditionalProperties == nil {
			continue
		}
		if isFalseSchema(s.AdditionalProperties) {
			return &ValidationError{Path: propertyPath, Message: "unknown field", ActualValue: value}
		}
		if err := validateSchema(s.AdditionalProperties, value, propertyPath); err != nil {
			return err
		}
	}
	return nil
}

func validateEnum(s *jsonschema.Schema, value any, path string) error {
	if len(s.Enum) == 0 {
		return nil
	}
	for _, candidate := range s.Enum {
		if reflect.DeepEqual(candidate, value) {
			return nil
		}
	}
	return mismatch(path, "one of "+formatValidationValue(s.Enum), value)
}

func mismatch(path, expected string, value any) *ValidationError {
	return &ValidationError{Path: path, Expected: expected, Actual: actualType(value), ActualValue: value}
}

func resolvedType(s *jsonschema.Schema) string {
	switch {
	case s == nil:
		return ""
	case s.Type != "":
		return s.Type
	case s.Properties != nil || s.AdditionalProperties != nil:
		return "object"
	case s.Items != nil:
		return "array"
	default:
		return ""
	}
}

func allowsNull(s *jsonschema.Schema) bool {
	if s.Type == "null" {
		return true
	}
	for _, option := range append(append([]*jsonschema.Schema{}, s.AnyOf...), s.OneOf...) {
		if resolvedType(option) == "null" {
			return true
		}
	}
	return false
}

func expectedType(s *jsonschema.Schema) string {
	if s.Type != "" {
		return s.Type
	}
	types := []string{}
	for _, option := range append(append([]*jsonschema.Schema{}, s.AnyOf...), s.OneOf...) {
		if t := resolvedType(option); t != "" {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return "unknown"
	}
	return strings.Join(types, " or ")
}

// actualType names decoded values the way JSON schema does. TOML documents
// also decode datetimes, which are reported as strings.
func actualType(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string, time.Time:
		return "string"
	case bool:
		return "boolean"
	case float32, float64:
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case json.Number:
		return "number"
	}
	if _, ok := asStringMap(value); ok {
		return "object"
	}
	if _, ok := asSlice(value); ok {
		return "array"
	}
	return fmt.Sprintf("%T", value)
}

func asStringMap(value any) (map[string]any, bool) {
	if typed, ok := value.(map[string]any); ok {
		return typed, true
	}
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Map || val.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	result := make(map[string]any, val.Len())
	iter := val.MapRange()
	for iter.Next() {
		result[iter.Key().String()] = iter.Value().Interface()
	}
	return result, true
}

func asSlice(value any) ([]any, bool) {
	if typed, ok := value.([]any); ok {
		return typed, true
	}
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Slice && val.Kind() != reflect.Array {
		return nil, false
	}
	result := make([]any, val.Len())
	for i := range result {
		result[i] = val.Index(i).Interface()
	}
	return result, true
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}

func isFalseSchema(s *jsonschema.Schema) bool {
	if s == nil {
		return false
	}
	marshaled, err := json.Marshal(s)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(marshaled)) == "false"
}

func isInteger(value any) bool {
	switch typed := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return typed == float32(int64(typed))
	case float64:
		return typed == float64(int64(typed))
	case json.Number:
		_, err := typed.Int64()
		return err == nil
	}
	return false
}

func isFloat(value any) bool {
	switch value.(type) {
	case float32, float64, json.Number:
		return true
	}
	return false
}

func formatActualDetail(actualType string, value any) string {
	formatted := formatValidationValue(value)
	switch {
	case formatted == "":
		return actualType
	case actualType == "":
		return formatted
	default:
		return fmt.Sprintf("%s (%s)", actualType, formatted)
	}
}

func formatValidationValue(value any) string {
	if value == nil {
		return ""
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	text := string(payload)
	const maxLength = 160
	if len(text) > maxLength {
		return text[:maxLength-3] + "..."
	}
	return text
}

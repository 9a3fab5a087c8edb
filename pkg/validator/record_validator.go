package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// FieldType is the declared type of a catalog record field.
type FieldType string

const (
	FieldTypeString    FieldType = "STRING"
	FieldTypeInteger   FieldType = "INTEGER"
	FieldTypeFloat     FieldType = "FLOAT"
	FieldTypeBoolean   FieldType = "BOOLEAN"
	FieldTypeTimestamp FieldType = "TIMESTAMP"
	FieldTypeList      FieldType = "LIST"
)

// FieldDefinition declares one field of a record.
type FieldDefinition struct {
	Type        FieldType `json:"type" yaml:"type"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Allowed     []string  `json:"allowed,omitempty" yaml:"allowed,omitempty"`
	MaxLength   int       `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors"`
}

// RecordValidator checks records against field definitions. In strict mode
// fields without a definition are errors.
type RecordValidator struct {
	fields map[string]FieldDefinition
	strict bool
}

// NewRecordValidator normalizes definitions and rejects unknown types.
func NewRecordValidator(fields map[string]FieldDefinition, strict bool) (*RecordValidator, error) {
	normalized := make(map[string]FieldDefinition, len(fields))
	for name, def := range fields {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("field definition without a name")
		}
		if def.Type == "" {
			def.Type = FieldTypeString
		}
		def.Type = normalizeFieldType(def.Type)
		switch def.Type {
		case FieldTypeString, FieldTypeInteger, FieldTypeFloat, FieldTypeBoolean, FieldTypeTimestamp, FieldTypeList:
		default:
			return nil, fmt.Errorf("field '%s' has unknown type %s", name, def.Type)
		}
		normalized[name] = def
	}
	return &RecordValidator{fields: normalized, strict: strict}, nil
}

// Validate checks one record. Errors are ordered by field name.
func (rv *RecordValidator) Validate(properties map[string]any) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []ValidationError{}}

	names := make([]string, 0, len(rv.fields))
	for name := range rv.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, fieldName := range names {
		fieldDef := rv.fields[fieldName]
		value, exists := properties[fieldName]

		if !exists || value == nil || value == "" {
			if fieldDef.Required {
				result.add(ValidationError{
					Field:   fieldName,
					Message: fmt.Sprintf("required field '%s' is missing", fieldName),
				})
			}
			continue
		}

		if err := validateFieldType(fieldName, value, fieldDef.Type); err != nil {
			result.add(ValidationError{Field: fieldName, Message: err.Error(), Value: value})
			continue
		}
		if err := validateRules(fieldName, value, fieldDef); err != nil {
			result.add(ValidationError{Field: fieldName, Message: err.Error(), Value: value})
		}
	}

	if rv.strict {
		extra := make([]string, 0)
		for propertyName := range properties {
			if _, defined := rv.fields[propertyName]; !defined {
				extra = append(extra, propertyName)
			}
		}
		sort.Strings(extra)
		for _, propertyName := range extra {
			result.add(ValidationError{
				Field:   propertyName,
				Message: fmt.Sprintf("property '%s' is not defined in schema", propertyName),
				Value:   properties[propertyName],
			})
		}
	}

	return result
}

func (r *ValidationResult) add(err ValidationError) {
	r.IsValid = false
	r.Errors = append(r.Errors, err)
}

// normalizeFieldType ensures consistent uppercase enum comparison
func normalizeFieldType(ft FieldType) FieldType {
	return FieldType(strings.ToUpper(strings.TrimSpace(string(ft))))
}

func validateFieldType(fieldName string, value any, expectedType FieldType) error {
	switch expectedType {
	case FieldTypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field '%s' must be a string, got %T", fieldName, value)
		}
	case FieldTypeInteger:
		if !isInteger(value) {
			return fmt.Errorf("field '%s' must be an integer, got %T", fieldName, value)
		}
	case FieldTypeFloat:
		if !isFloat(value) {
			return fmt.Errorf("field '%s' must be a float, got %T", fieldName, value)
		}
	case FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' must be a boolean, got %T", fieldName, value)
		}
	case FieldTypeTimestamp:
		switch v := value.(type) {
		case string:
			if _, err := parseTimestamp(v); err != nil {
				return fmt.Errorf("field '%s' must be a date or RFC3339 timestamp: %v", fieldName, err)
			}
		case time.Time:
		default:
			return fmt.Errorf("field '%s' must be a timestamp string, got %T", fieldName, value)
		}
	case FieldTypeList:
		items, ok := value.([]any)
		if !ok {
			if _, ok := value.([]string); ok {
				return nil
			}
			return fmt.Errorf("field '%s' must be a list, got %T", fieldName, value)
		}
		for _, item := range items {
			switch item.(type) {
			case string, bool, json.Number:
			case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			default:
				return fmt.Errorf("field '%s' list values must be scalars, got %T", fieldName, item)
			}
		}
	default:
		return fmt.Errorf("unknown field type: %s", expectedType)
	}
	return nil
}

func validateRules(fieldName string, value any, def FieldDefinition) error {
	strVal, isString := value.(string)
	if def.MaxLength > 0 && isString && len([]rune(strVal)) > def.MaxLength {
		return fmt.Errorf("field '%s' length %d is greater than maximum %d", fieldName, len([]rune(strVal)), def.MaxLength)
	}
	if len(def.Allowed) > 0 && isString {
		for _, allowed := range def.Allowed {
			if strVal == allowed {
				return nil
			}
		}
		return fmt.Errorf("field '%s' value '%s' is not one of %s", fieldName, strVal, strings.Join(def.Allowed, ", "))
	}
	return nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return !math.IsInf(v, 0) && v == math.Trunc(v)
	case interface{ Int64() (int64, error) }:
		_, err := v.Int64()
		return err == nil
	default:
		return false
	}
}

func isFloat(value any) bool {
	switch v := value.(type) {
	case float32, float64:
		return true
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case interface{ Float64() (float64, error) }:
		_, err := v.Float64()
		return err == nil
	default:
		return false
	}
}

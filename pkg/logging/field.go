package logging

import "digital.vasic.cctests/pkg/condition"

// LogField creates a Field from a key-value pair. This is a
// convenience function for constructing structured log fields.
func LogField(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// StringField creates a Field with a string value.
func StringField(key, value string) Field {
	return Field{Key: key, Value: value}
}

// IntField creates a Field with an integer value.
func IntField(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// BoolField creates a Field with a boolean value.
func BoolField(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// ErrorField creates a Field for an error value. If err is nil,
// the value is set to the string "<nil>".
func ErrorField(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// ConditionFields describes c: its kind and, when c carries
// them, the source location and asserted expression.
func ConditionFields(c condition.Condition) []Field {
	if c == nil {
		return nil
	}
	fields := []Field{StringField("kind", c.Kind().String())}
	if l, ok := c.(condition.Located); ok {
		loc := l.Where()
		fields = append(fields,
			StringField("file", loc.File),
			StringField("func", loc.Func),
			IntField("line", loc.Line),
		)
	}
	if a, ok := c.(*condition.Assertion); ok {
		fields = append(fields, StringField("expr", a.Expr))
	}
	return fields
}

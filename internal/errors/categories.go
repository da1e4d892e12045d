package errors

// Category-specific error constructors for plan decoding and binding

// Wire decoding errors
func MissingVariantError(message, raw string) *Error {
	return Newf(MissingVariant, "missing %s", message).
		WithDetail(raw)
}

func MissingFieldError(node, field string) *Error {
	return Newf(MissingRequiredField, "missing required field %q", field).
		WithNode(node).
		WithField(field)
}

func UnknownEnumError(node, enum string, value int32) *Error {
	return Newf(UnknownEnumValue, "unknown %s %d", enum, value).
		WithNode(node).
		WithHint("The scheduler and executor may be running incompatible versions.")
}

func UnsupportedVariantError(kind, variant string) *Error {
	return Newf(UnsupportedVariant, "unsupported %s %s", kind, variant).
		WithNode(variant)
}

func ConstructionError(node string, cause error) *Error {
	return Wrap(ConstructionFailed, cause, "failed to construct operator").
		WithNode(node)
}

func InvalidPlanError(node, message string) *Error {
	return New(InvalidPlan, message).
		WithNode(node)
}

func InvalidPartitionLocationError(message string) *Error {
	return New(InvalidPartition, message).
		WithNode("PartitionLocation")
}

// Binding errors
func ColumnNotFoundError(columnName string) *Error {
	return Newf(UndefinedColumn, "column %q does not exist", columnName).
		WithColumn(columnName)
}

func FunctionNotFoundError(funcName string) *Error {
	return Newf(UndefinedFunction, "function %s() does not exist", funcName)
}

func VariableNotFoundError(name string) *Error {
	return Newf(UndefinedObject, "variable %s is not defined", name)
}

func DataTypeMismatchError(op, left, right string) *Error {
	return Newf(DatatypeMismatch, "operator %s is not defined for %s and %s", op, left, right).
		WithDataType(left)
}

func InvalidCastError(fromType, toType string) *Error {
	return Newf(CannotCoerce, "cannot cast type %s to %s", fromType, toType).
		WithDataType(toType)
}

func FeatureNotSupportedError(feature string) *Error {
	return Newf(FeatureNotSupported, "%s is not supported", feature)
}

// Execution errors
func DivisionByZeroError() *Error {
	return New(DivisionByZero, "division by zero")
}

func InvalidTextRepresentationError(dataType, value string) *Error {
	return Newf(InvalidTextRepresentation, "invalid input syntax for type %s: %q", dataType, value).
		WithDataType(dataType)
}

// IOErrorf creates an I/O error
func IOErrorf(format string, args ...interface{}) *Error {
	return Newf(IOError, format, args...)
}

// InternalErrorf creates an internal error
func InternalErrorf(format string, args ...interface{}) *Error {
	return Newf(InternalError, format, args...)
}

package errors

// Error codes follow the five character SQLSTATE layout. Class XP is local to
// plan decoding; the remaining classes reuse the PostgreSQL assignments.

// Class XP - Plan Decoding
const (
	MissingVariant       = "XP001"
	MissingRequiredField = "XP002"
	UnknownEnumValue     = "XP003"
	UnsupportedVariant   = "XP004"
	ConstructionFailed   = "XP005"
	InvalidPlan          = "XP006"
	InvalidPartition     = "XP007"
)

// Class 0A - Feature Not Supported
const (
	FeatureNotSupported = "0A000"
)

// Class 22 - Data Exception
const (
	DataException             = "22000"
	DivisionByZero            = "22012"
	InvalidParameterValue     = "22023"
	NumericValueOutOfRange    = "22003"
	InvalidTextRepresentation = "22P02"
)

// Class 42 - Syntax Error or Access Rule Violation
const (
	DatatypeMismatch  = "42804"
	UndefinedColumn   = "42703"
	UndefinedFunction = "42883"
	UndefinedObject   = "42704"
	AmbiguousColumn   = "42702"
	CannotCoerce      = "42846"
)

// Class 58 - System Error
const (
	IOError = "58030"
)

// Class XX - Internal Error
const (
	InternalError = "XX000"
)

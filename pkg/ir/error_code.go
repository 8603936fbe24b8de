package ir

// ErrorCode is the closed set of error kinds a value-level error can carry
// (§7). Validation-family codes are used by pkg/validate, not by the
// evaluator, but live in the same closed set since validation diagnostics
// are reported through the same shape.
type ErrorCode string

const (
	ErrTypeError          ErrorCode = "TypeError"
	ErrArityError         ErrorCode = "ArityError"
	ErrDomainError        ErrorCode = "DomainError"
	ErrDivideByZero       ErrorCode = "DivideByZero"
	ErrUnknownOperator    ErrorCode = "UnknownOperator"
	ErrUnknownDefinition  ErrorCode = "UnknownDefinition"
	ErrUnboundIdentifier  ErrorCode = "UnboundIdentifier"
	ErrNonTermination     ErrorCode = "NonTermination"
	ErrTimeoutError       ErrorCode = "TimeoutError"
	ErrSelectTimeout      ErrorCode = "SelectTimeout"

	ErrValidationError       ErrorCode = "ValidationError"
	ErrMissingRequiredField  ErrorCode = "MissingRequiredField"
	ErrInvalidIDFormat       ErrorCode = "InvalidIdFormat"
	ErrInvalidTypeFormat     ErrorCode = "InvalidTypeFormat"
	ErrInvalidExprFormat     ErrorCode = "InvalidExprFormat"
	ErrDuplicateNodeID       ErrorCode = "DuplicateNodeId"
	ErrInvalidResultRef      ErrorCode = "InvalidResultReference"
	ErrCyclicReference       ErrorCode = "CyclicReference"

	// Host-raised conditions represented with the same value shape (§7).
	ErrCancelled        ErrorCode = "Cancelled"
	ErrChannelClosed    ErrorCode = "ChannelClosed"
	ErrSchedulerOverrun ErrorCode = "SchedulerOverrun"
	ErrDeadlockDetected ErrorCode = "DeadlockDetected"
)

// Package apperr defines the engine's domain error codes and the
// first-writer-wins error cell used by the request context (§4.12, §7 of
// the design).
package apperr

import (
	"errors"
	"fmt"
)

// Code is a domain error code, independent of the Go error type used to
// carry it. The set mirrors the canonical error codes enumerated in the
// request context contract.
type Code int

const (
	// Unknown is the zero value; never assigned deliberately.
	Unknown Code = iota
	SQLExecutionException
	InactiveTransactionException
	TargetNotFoundException
	TargetAlreadyExistsException
	UniqueConstraintViolationException
	NotNullConstraintViolationException
	DataCorruptionException
	SecondaryIndexCorruptionException
	SQLLimitReachedException
	TransactionExceededLimitException
	SQLRequestTimedOutException
	RequestCanceled
	CCException
	CompileException
	ValueEvaluationException
	UnsupportedRuntimeFeatureException
	PermissionError
	InternalError
	RestrictedOperation
)

var names = map[Code]string{
	Unknown:                             "unknown_exception",
	SQLExecutionException:               "sql_execution_exception",
	InactiveTransactionException:        "inactive_transaction_exception",
	TargetNotFoundException:             "target_not_found_exception",
	TargetAlreadyExistsException:        "target_already_exists_exception",
	UniqueConstraintViolationException:  "unique_constraint_violation_exception",
	NotNullConstraintViolationException: "not_null_constraint_violation_exception",
	DataCorruptionException:             "data_corruption_exception",
	SecondaryIndexCorruptionException:   "secondary_index_corruption_exception",
	SQLLimitReachedException:            "sql_limit_reached_exception",
	TransactionExceededLimitException:   "transaction_exceeded_limit_exception",
	SQLRequestTimedOutException:         "sql_request_timed_out_exception",
	RequestCanceled:                     "request_canceled",
	CCException:                         "cc_exception",
	CompileException:                    "compile_exception",
	ValueEvaluationException:            "value_evaluation_exception",
	UnsupportedRuntimeFeatureException:  "unsupported_runtime_feature_exception",
	PermissionError:                     "permission_error",
	InternalError:                       "internal_error",
	RestrictedOperation:                 "restricted_operation",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "unknown_exception"
}

// Error carries a domain Code alongside the message and an optional
// wrapped cause, so callers can branch on Code while %w-unwrapping still
// works for stdlib errors.Is/As.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Message: cause.Error(), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// CodeOf extracts the domain Code from err, walking the unwrap chain.
// Returns InternalError for errors that never carried a Code.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	if err == nil {
		return Unknown
	}
	return InternalError
}

package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorEmptyInput   ErrorCode = "EMPTY_INPUT"
	ErrorDecode       ErrorCode = "DECODE_ERROR"
	ErrorExtraction   ErrorCode = "EXTRACTION_ERROR"
	ErrorGeneration   ErrorCode = "GENERATION_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// Level is the severity a Notice is rendered with.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Notice is a user-visible message produced while handling a submission.
// Every failure in a cycle is recovered into a Notice.
type Notice struct {
	Level   Level
	Message string
	Err     *Error
}

func warning(code ErrorCode, reason, message string) Notice {
	return Notice{Level: LevelWarning, Message: message, Err: newError(code, reason, nil)}
}

func failure(code ErrorCode, reason, message string, err error) Notice {
	return Notice{Level: LevelError, Message: message, Err: newError(code, reason, err)}
}

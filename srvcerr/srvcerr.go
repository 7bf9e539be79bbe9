package srvcerr

import "net/http"

// Error carries a stable error code and a message that is safe to show
// to the end user. The wrapped debug error is for operators only and
// must never reach the UI.
type Error struct {
	errorCode string
	msgToUser string // public
	dbgErr    error  // private, for diagnostics

	httpStatus int // optional, for HTTP responses
}

func (e *Error) Error() string {
	return e.msgToUser
}

func (e *Error) ErrorCode() string {
	return e.errorCode
}

func (e *Error) DebugInfo() error {
	return e.dbgErr
}

func (e *Error) SetDebug(err error) *Error {
	e.dbgErr = err
	return e
}

// Unwrap exposes the debug error to errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.dbgErr
}

func (e *Error) HttpStatusCode() int {
	if e.httpStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.httpStatus
}

func (e *Error) SetHttpStatusCode(code int) *Error {
	e.httpStatus = code
	return e
}

func New(errorCode string, msgToUser string) *Error {
	return &Error{
		errorCode: errorCode,
		msgToUser: msgToUser,
	}
}

const ErrCodeInternalServerError = "internal_server_error"

func ErrInternalSE() *Error {
	return New(
		ErrCodeInternalServerError,
		"internal server error",
	).SetHttpStatusCode(http.StatusInternalServerError)
}

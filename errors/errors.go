package errors

import "net/http"

// Code is the business-level category of a failure. Handlers map a Code
// to an HTTP status; clients branch on it without parsing messages.
type Code string

const (
	CodeNotFound              Code = "NOT_FOUND"
	CodeNotAuthorized         Code = "NOT_AUTHORIZED"
	CodeAlreadyInState        Code = "ALREADY_IN_STATE"
	CodeRelationshipViolation Code = "RELATIONSHIP_VIOLATION"
	CodeInvalidPayload        Code = "INVALID_PAYLOAD"
	CodeContentDeletionFailed Code = "CONTENT_DELETION_FAILED"
	CodeUnknown               Code = "UNKNOWN"
)

// Error is a business-rule failure carried as a value across the
// store -> service -> handler boundary. It is never worth a panic.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Code    Code   `json:"code"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is match two *Error values by code and message, so
// sentinel comparisons survive wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(message string, status int) *Error {
	return &Error{Message: message, Status: status, Code: CodeUnknown}
}

func NewWithCode(code Code, message string, status int) *Error {
	return &Error{Message: message, Status: status, Code: code}
}

// Wrap attaches an underlying cause to a copy of a sentinel error.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Message: sentinel.Message, Status: sentinel.Status, Code: sentinel.Code, Cause: cause}
}

func NotFound(message string) *Error {
	return NewWithCode(CodeNotFound, message, http.StatusNotFound)
}

func NotAuthorized(message string) *Error {
	return NewWithCode(CodeNotAuthorized, message, http.StatusForbidden)
}

func AlreadyInState(message string) *Error {
	return NewWithCode(CodeAlreadyInState, message, http.StatusConflict)
}

func RelationshipViolation(message string) *Error {
	return NewWithCode(CodeRelationshipViolation, message, http.StatusForbidden)
}

func InvalidPayload(message string) *Error {
	return NewWithCode(CodeInvalidPayload, message, http.StatusBadRequest)
}

func Unknown(message string) *Error {
	return NewWithCode(CodeUnknown, message, http.StatusInternalServerError)
}

var (
	ErrBadRequest          = NewWithCode(CodeInvalidPayload, "bad request", http.StatusBadRequest)
	ErrNotFound            = NotFound("resource not found")
	ErrUnauthorized        = NewWithCode(CodeNotAuthorized, "unauthorized", http.StatusUnauthorized)
	ErrInternalServerError = Unknown("internal server error")
)

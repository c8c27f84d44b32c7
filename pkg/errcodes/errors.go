package errcodes

import (
	"fmt"
	"net/http"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.HTTPCode = err.HTTPCode
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode &&
		te.Message == err.Message &&
		te.Code == err.Code
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		http.StatusNotFound,
		resource + " not found.",
		"not_found",
	}
}

func UnsupportedMediaType() error {
	return &Error{
		http.StatusUnsupportedMediaType,
		"Unsupported Media Type",
		"unsupported_media_type",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Unknown Parameter %q", param),
		"unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_error",
	}
}

func MalformedPayload() error {
	return &Error{
		http.StatusBadRequest,
		"Malformed Payload",
		"malformed_payload",
	}
}

func EmptyRequestBody() error {
	return &Error{
		http.StatusBadRequest,
		"Request body can't be empty.",
		"empty_request_body",
	}
}

// Conflict returns a 409 error, e.g. when a job of the same type is already
// running.
func Conflict(msg string) error {
	return &Error{
		http.StatusConflict,
		msg,
		"conflict",
	}
}

// RootUnreadable is returned when a scan root cannot be listed.
func RootUnreadable(path string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Scan root %q cannot be read.", path),
		"root_unreadable",
	}
}

// CollisionExhausted is returned when no free "[n]" suffix could be found for
// an organizer target.
func CollisionExhausted(target string) error {
	return &Error{
		http.StatusConflict,
		fmt.Sprintf("No free path found for %q.", target),
		"collision_exhausted",
	}
}

// ApplyIncomplete is returned when an organizer apply stopped partway. The
// transaction log still records the operations that completed.
func ApplyIncomplete(completed, total int, logPath string) error {
	msg := fmt.Sprintf("Organize stopped after %d of %d operations.", completed, total)
	if logPath != "" {
		msg += fmt.Sprintf(" Completed operations were logged to %s.", logPath)
	}
	return &Error{
		http.StatusInternalServerError,
		msg,
		"apply_incomplete",
	}
}

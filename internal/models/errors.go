package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies failures so callers can choose between retry, re-auth and correcting input.
type ErrorCode string

const (
	CodeFormat           ErrorCode = "FORMAT"            // raw input cannot be parsed
	CodeDomainRange      ErrorCode = "DOMAIN_RANGE"      // invalid calculator input
	CodeBadRequest       ErrorCode = "BAD_REQUEST"       // malformed request parameters
	CodeStorage          ErrorCode = "STORAGE"           // key-value store failure
	CodeAuth             ErrorCode = "AUTH"              // provider rejected credentials
	CodeTransientNetwork ErrorCode = "TRANSIENT_NETWORK" // retryable provider failure
	CodeMint             ErrorCode = "MINT"              // mint sink failure
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewFormatError(message string, cause error) *Error {
	return &Error{Code: CodeFormat, Message: message, Err: cause}
}

func NewDomainRangeError(format string, args ...any) *Error {
	return &Error{Code: CodeDomainRange, Message: fmt.Sprintf(format, args...)}
}

func NewBadRequestError(format string, args ...any) *Error {
	return &Error{Code: CodeBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NewStorageError(op string, cause error) *Error {
	return &Error{Code: CodeStorage, Message: op, Err: cause}
}

func NewAuthError(message string, cause error) *Error {
	return &Error{Code: CodeAuth, Message: message, Err: cause}
}

func NewTransientError(message string, cause error) *Error {
	return &Error{Code: CodeTransientNetwork, Message: message, Err: cause}
}

func NewMintError(message string, cause error) *Error {
	return &Error{Code: CodeMint, Message: message, Err: cause}
}

// CodeOf returns the code of the first *Error in the chain, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps an error to the response status of the API layer.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeFormat, CodeDomainRange, CodeBadRequest:
		return http.StatusBadRequest
	case CodeAuth:
		return http.StatusUnauthorized
	case CodeTransientNetwork:
		return http.StatusServiceUnavailable
	case CodeMint:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/samcharles93/nextword/internal/predict"
	"github.com/samcharles93/nextword/internal/similar"
	"github.com/samcharles93/nextword/internal/vocab"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// Error types returned in the JSON error body.
const (
	errTypeInvalidRequest     = "invalid_request_error"
	errTypeUnrecognizedInput  = "unrecognized_input"
	errTypeNoCandidate        = "no_candidate"
	errTypeNotFound           = "not_found_error"
	errTypeServer             = "server_error"
	errTypeRequestCancelled   = "request_cancelled"
	statusClientClosedRequest = 499
)

// classify maps a domain error to an HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, predict.ErrInvalidWordCount),
		errors.Is(err, predict.ErrInvalidTopN):
		return http.StatusBadRequest, errTypeInvalidRequest
	case errors.Is(err, predict.ErrUnrecognizedInput):
		return http.StatusUnprocessableEntity, errTypeUnrecognizedInput
	case errors.Is(err, predict.ErrNoCandidate):
		return http.StatusUnprocessableEntity, errTypeNoCandidate
	case errors.Is(err, vocab.ErrUnknownWord), errors.Is(err, similar.ErrNoEmbedding):
		return http.StatusNotFound, errTypeNotFound
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, errTypeRequestCancelled
	default:
		return http.StatusInternalServerError, errTypeServer
	}
}

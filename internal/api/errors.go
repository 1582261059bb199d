package api

import (
	"errors"

	"github.com/samcharles93/wordgen/internal/generate"
	"github.com/samcharles93/wordgen/internal/logits"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	param string
	msg   string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(param, msg string) error {
	return invalidRequestError{param: param, msg: msg}
}

// errorParam returns the request field an invalid request error refers to.
func errorParam(err error) string {
	var ir invalidRequestError
	if errors.As(err, &ir) {
		return ir.param
	}
	return ""
}

// invalidParam names the first option of cfg that fails validation.
func invalidParam(cfg generate.Config) string {
	switch {
	case logits.CheckTemperature(cfg.Temperature) != nil:
		return "temperature"
	case cfg.WordCount <= 0:
		return "words"
	default:
		return ""
	}
}

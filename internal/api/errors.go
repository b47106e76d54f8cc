package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/visionnode/internal/processors"
	"github.com/smazurov/visionnode/internal/streams"
)

// mapStreamError maps domain errors to HTTP errors
func mapStreamError(err error) error {
	msg := err.Error()
	var se *streams.StreamError
	if errors.As(err, &se) {
		msg = se.Message
	}

	switch {
	case errors.Is(err, streams.ErrNotFound), errors.Is(err, processors.ErrUnknownProcessor):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, streams.ErrConfigInvalid):
		return huma.Error422UnprocessableEntity(msg, err)
	case errors.Is(err, streams.ErrSourceUnavailable):
		return huma.Error502BadGateway(msg, err)
	case errors.Is(err, streams.ErrNotStreaming):
		return huma.Error409Conflict(msg, err)
	case errors.Is(err, streams.ErrClosed):
		return huma.Error503ServiceUnavailable(msg, err)
	default:
		return huma.Error500InternalServerError("internal server error", err)
	}
}

package endpoints

import (
	"context"
	"errors"

	"guild-metrics/internal/domain"
)

const (
	API_SUCCESS      = iota + 303000 // 303000
	API_FAILURE                      // 303001 - Generic API failure
	API_UNAUTHORIZED                 // 303002 - Authentication/Authorization failure
)

const (
	UNKNOWN_METRIC       = iota + 101 // 101 - Metric kind is not members or messages
	INVALID_REQUEST_BODY              // 102 - Error parsing request body
	INVALID_PARAMETERS                // 103 - Missing guild id or bad query parameter
	STORAGE_FAILURE                   // 104 - Metric store read or write failed
	RENDER_FAILURE                    // 105 - Dataset could not be built or drawn
	REQUEST_CANCELLED                 // 106 - Request was cancelled by client or server timeout
)

var (
	ErrInvalidRequestBody = errors.New("invalid request body format or missing fields")
	ErrInvalidParameters  = errors.New("invalid parameters; guild id is required")
	ErrRequestCancelled   = errors.New("request cancelled by client or server timeout")
)

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	switch {
	case errors.Is(err, domain.ErrUnknownMetric):
		return UNKNOWN_METRIC
	case errors.Is(err, ErrInvalidRequestBody):
		return INVALID_REQUEST_BODY
	case errors.Is(err, ErrInvalidParameters), errors.Is(err, domain.ErrEmptyGuild):
		return INVALID_PARAMETERS
	case errors.Is(err, ErrRequestCancelled), errors.Is(err, context.Canceled):
		return REQUEST_CANCELLED
	case domain.IsStorageError(err):
		return STORAGE_FAILURE
	case domain.IsRenderError(err):
		return RENDER_FAILURE
	default:
		return API_FAILURE // Default for any unhandled error
	}
}

package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")

	ErrLLMDisabled    = errors.New("AI interpretation is not configured")
	ErrUpstreamLLM    = errors.New("upstream LLM failure")
	ErrInvalidLLMJSON = errors.New("LLM returned invalid JSON after retry")
)

package domain

import "errors"

var (
	ErrMissingRoot       = errors.New("missing view root")
	ErrReservedParameter = errors.New("parameter name is reserved")
	ErrViewNotFound      = errors.New("view not found")
	ErrLoadFailed        = errors.New("failed to load view")
	ErrRender            = errors.New("failed to render view")
)

package rbac

import "errors"

var (
	ErrNotFound       = errors.New("rbac: not found")
	ErrInvalidInput   = errors.New("rbac: invalid input")
	ErrAlreadyGranted = errors.New("rbac: role already granted")
	ErrUnknownRole    = errors.New("rbac: unknown role")
)

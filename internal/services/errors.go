package services

import "errors"

var (
	ErrNotMember             = errors.New("user is not a member of the group")
	ErrInsufficientRole      = errors.New("role does not allow this operation")
	ErrCategoryGroupMismatch = errors.New("category belongs to a different group")
	ErrNoGroup               = errors.New("user belongs to no group")
)

package service

import "errors"

var (
	ErrPermissionDenied = errors.New("you don't have permission to edit brackets")

	ErrBracketNotFound = errors.New("bracket not found")
	ErrBracketUnusable = errors.New("unknown or unusable bracket")
	ErrMatchNotFound   = errors.New("match not found")

	ErrInvalidBracketInput = errors.New("invalid bracket input")
	ErrInvalidScore        = errors.New("invalid score")
	ErrMatchNotReady       = errors.New("match does not have two teams yet")
)

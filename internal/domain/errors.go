package domain

import "errors"

var (
	errMissingUser   = errors.New("session requires a user id")
	errInvalidRole   = errors.New("session role is not recognized")
	errMissingBranch = errors.New("branch session requires a branch id")
	errMissingChef   = errors.New("chef session requires a chef id")
)

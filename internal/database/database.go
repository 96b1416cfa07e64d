package database

import "errors"

// ErrUserNotFound is returned when a user record does not exist.
var ErrUserNotFound = errors.New("user not found")

var errEmptyURI = errors.New("MongoDB connection string is empty")

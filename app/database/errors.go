package database

import "errors"

var ErrNotFound = errors.New("not found")

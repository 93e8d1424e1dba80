package config

import (
	"errors"
)

var (
	// ErrDBNameEmpty error if config db.name is empty.
	ErrDBNameEmpty = errors.New("config db.name can not be empty")
)

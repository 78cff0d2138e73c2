package model

import (
	"errors"
)

var ErrInvalidConfig = errors.New("invalid configuration")

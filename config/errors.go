package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// ConfigError reports a configuration that can not be used to set up the checker.
//
// It is fatal: the search must not start when it is returned, since an unsound abstraction
// would silently match states that differ.
type ConfigError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config: %v: %v", e.Key, e.Reason)
	}
	return fmt.Sprintf("config: %v=%q: %v", e.Key, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

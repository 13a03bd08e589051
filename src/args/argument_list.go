// Package args contains the argument list, defined as a struct, along with a method that validates passed-in args
package args

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ArgumentList struct that holds all memsql-top arguments
type ArgumentList struct {
	Username       string
	Password       string
	Hostname       string
	Port           string
	Database       string
	Timeout        string
	UpdateInterval time.Duration
	DisplayRows    int
	LogLevel       string
}

// Validate validates connection and display arguments
func (al *ArgumentList) Validate() error {
	if al.Username == "" {
		return errors.New("invalid configuration: must specify a username")
	}

	if al.Hostname == "" {
		return errors.New("invalid configuration: must specify a hostname")
	}

	if al.Port == "" {
		al.Port = "3306"
	}
	if _, err := strconv.Atoi(al.Port); err != nil {
		return fmt.Errorf("invalid configuration: port %q is not a number", al.Port)
	}

	if al.Timeout != "" {
		if t, err := strconv.Atoi(al.Timeout); err != nil || t < 0 {
			return fmt.Errorf("invalid configuration: timeout %q must be a non-negative number of seconds", al.Timeout)
		}
	}

	if al.UpdateInterval <= 0 {
		return fmt.Errorf("invalid configuration: update interval must be positive, got %s", al.UpdateInterval)
	}

	if al.DisplayRows <= 0 {
		return fmt.Errorf("invalid configuration: display row limit must be positive, got %d", al.DisplayRows)
	}

	return nil
}

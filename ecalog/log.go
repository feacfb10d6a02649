// Package ecalog provides the structured logger shared by every ecaengine
// component: a small interface backed by logrus, injected into components
// rather than reached for globally.
package ecalog

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface every component depends on.
type Logger interface {
	Debug(...interface{})
	Info(...interface{})
	Warn(...interface{})
	Error(...interface{})
}

// New returns a logrus-backed Logger. Verbosity is raised to Debug when
// ECAENGINE_DEBUG is set to a truthy value.
func New() *logrus.Logger {
	l := logrus.New()
	if debug() {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

func debug() bool {
	v, err := strconv.ParseBool(os.Getenv("ECAENGINE_DEBUG"))
	if err != nil {
		return false
	}
	return v
}

// Nop is a Logger that discards everything, used as a safe zero value.
type Nop struct{}

func (Nop) Debug(...interface{}) {}
func (Nop) Info(...interface{})  {}
func (Nop) Warn(...interface{})  {}
func (Nop) Error(...interface{}) {}

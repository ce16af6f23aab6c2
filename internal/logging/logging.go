// Package logging provides the bracket-tagged logger used across agentkernel,
// matching the plain-stdlib logging style of the rest of the codebase.
package logging

import (
	"fmt"
	"log"
)

// Logger writes lines prefixed with a fixed "[TAG]" component marker.
type Logger struct {
	tag string
}

// New returns a Logger that prefixes every line with "[tag]".
func New(tag string) *Logger {
	return &Logger{tag: tag}
}

func (l *Logger) Printf(format string, args ...interface{}) {
	log.Printf("[%s] %s", l.tag, fmt.Sprintf(format, args...))
}

func (l *Logger) Println(args ...interface{}) {
	log.Println(append([]interface{}{"[" + l.tag + "]"}, args...)...)
}

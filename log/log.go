// Package log provides a minimal key-value logger used by the data layer.
package log

import (
	"fmt"
	"log"
	"strings"
)

var Root Logger = &Default{}

// Logger is the logger interface. The variadic arguments are key value pairs. The key must be a
// string and the value should have a meaningful string representation.
type Logger interface {
	Debug(string, ...interface{})
	Error(string, ...interface{})
	Crit(string, ...interface{})
	With(...interface{}) Logger
}

// Default logs to the standard library logger. Debug messages are dropped unless Verbose is set,
// so store failures are logged with full detail only in debugging deployments.
type Default struct {
	Verbose bool
	Tags    []interface{}
}

func (l *Default) Debug(m string, s ...interface{}) {
	if !l.Verbose {
		return
	}
	log.Print(tfmt("DEB ", m, s, l.Tags))
}
func (l *Default) Error(m string, s ...interface{}) { log.Print(tfmt("ERR ", m, s, l.Tags)) }
func (l *Default) Crit(m string, s ...interface{})  { log.Print(tfmt("CRI ", m, s, l.Tags)) }
func (l *Default) With(tags ...interface{}) Logger {
	return l.with(tags...)
}
func (l *Default) with(tags ...interface{}) *Default {
	t := make([]interface{}, 0, len(tags)+len(l.Tags))
	t = append(t, tags...)
	t = append(t, l.Tags...)
	return &Default{Verbose: l.Verbose, Tags: t}
}

// Discard drops all messages. It silences a component in tests.
type Discard struct{}

func (Discard) Debug(string, ...interface{}) {}
func (Discard) Error(string, ...interface{}) {}
func (Discard) Crit(string, ...interface{})  {}
func (d Discard) With(...interface{}) Logger { return d }

func tfmt(lvl, msg string, all ...[]interface{}) string {
	var b strings.Builder
	b.WriteString(lvl)
	b.WriteString(msg)
	for _, tags := range all {
		for i, v := range tags {
			if i%2 == 0 {
				b.WriteByte(' ')
			} else {
				b.WriteByte('=')
			}
			b.WriteString(fmt.Sprint(v))
		}
	}
	return b.String()
}

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Colored level labels.
var (
	infoColor  = color.New(color.FgGreen).SprintFunc()
	debugColor = color.New(color.FgCyan).SprintFunc()
	traceColor = color.New(color.FgYellow).SprintFunc()
	errorColor = color.New(color.FgRed).SprintFunc()
)

// SimpleLogSink implements logr.LogSink for human-readable, optionally
// colorized output to any io.Writer.
type SimpleLogSink struct {
	writer       io.Writer
	minVerbosity int
	name         string
	keyValues    []interface{}
	mutex        *sync.Mutex
	useColor     bool
}

// NewSimpleLogSink builds a SimpleLogSink. If writer is nil it defaults to
// os.Stdout, wrapped with mattn/go-colorable so ANSI sequences behave on
// Windows consoles too. When the writer is an *os.File, useColor is forced
// off unless that file is a terminal (mattn/go-isatty); any other writer
// keeps the useColor value passed in.
func NewSimpleLogSink(writer io.Writer, minVerbosity int, useColor bool) *SimpleLogSink {
	if writer == nil {
		writer = colorable.NewColorableStdout()
	}
	if f, ok := writer.(*os.File); ok && useColor {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &SimpleLogSink{
		writer:       writer,
		minVerbosity: minVerbosity,
		keyValues:    []interface{}{},
		mutex:        &sync.Mutex{},
		useColor:     useColor,
	}
}

// NewSimpleLogger is a convenience wrapper returning a ready-to-use logr.Logger.
func NewSimpleLogger(writer io.Writer, minVerbosity int, useColor bool) logr.Logger {
	return logr.New(NewSimpleLogSink(writer, minVerbosity, useColor))
}

func (s *SimpleLogSink) Init(info logr.RuntimeInfo) {}

func (s *SimpleLogSink) Enabled(level int) bool {
	return level <= s.minVerbosity
}

func (s *SimpleLogSink) label(level int) string {
	switch level {
	case LEVEL_TRACE:
		if s.useColor {
			return traceColor("TRACE")
		}
		return "TRACE"
	case LEVEL_DEBUG:
		if s.useColor {
			return debugColor("DEBUG")
		}
		return "DEBUG"
	default:
		if s.useColor {
			return infoColor("INFO")
		}
		return "INFO"
	}
}

func (s *SimpleLogSink) write(label, msg string, keysAndValues []interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(label)
	b.WriteString("] ")
	if s.name != "" {
		b.WriteString(s.name)
		b.WriteString(": ")
	}
	b.WriteString(msg)

	all := append(append([]interface{}{}, s.keyValues...), keysAndValues...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&b, " %v=%v", all[i], all[i+1])
	}
	b.WriteString("\n")
	io.WriteString(s.writer, b.String())
}

func (s *SimpleLogSink) Info(level int, msg string, keysAndValues ...interface{}) {
	s.write(s.label(level), msg, keysAndValues)
}

func (s *SimpleLogSink) Error(err error, msg string, keysAndValues ...interface{}) {
	label := "ERROR"
	if s.useColor {
		label = errorColor("ERROR")
	}
	kvs := append([]interface{}{"error", err}, keysAndValues...)
	s.write(label, msg, kvs)
}

func (s *SimpleLogSink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	return &SimpleLogSink{
		writer:       s.writer,
		minVerbosity: s.minVerbosity,
		name:         s.name,
		keyValues:    append(append([]interface{}{}, s.keyValues...), keysAndValues...),
		mutex:        s.mutex,
		useColor:     s.useColor,
	}
}

func (s *SimpleLogSink) WithName(name string) logr.LogSink {
	newName := name
	if s.name != "" {
		newName = s.name + "." + name
	}
	return &SimpleLogSink{
		writer:       s.writer,
		minVerbosity: s.minVerbosity,
		name:         newName,
		keyValues:    s.keyValues,
		mutex:        s.mutex,
		useColor:     s.useColor,
	}
}

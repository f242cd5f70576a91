// Package log provides a simple leveled logging facility used
// throughout this repository instead of bare fmt.Println/log.Print
// calls. Time/date are left to the caller's log shipper; each level
// can be silenced independently by redirecting its writer.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]  "
	InfoPrefix  string = "<6>[INFO]   "
	WarnPrefix  string = "<4>[WARNING]"
	ErrPrefix   string = "<3>[ERROR]  "
)

var (
	DebugLog *log.Logger = log.New(DebugWriter, DebugPrefix, 0)
	InfoLog  *log.Logger = log.New(InfoWriter, InfoPrefix, 0)
	WarnLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	ErrLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.Llongfile)

	DebugTimeLog *log.Logger = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	InfoTimeLog  *log.Logger = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	WarnTimeLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	ErrTimeLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel silences everything below lvl by redirecting its writer(s)
// to io.Discard, cascading the same way the teacher's logger does.
func SetLevel(lvl string) {
	switch lvl {
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
		// nothing to discard
	default:
		fmt.Fprintf(os.Stderr, "pkg/log: unknown level %q, defaulting to debug\n", lvl)
	}
}

func SetDateTime(on bool) { logDateTime = on }

func printStr(v ...interface{}) string { return fmt.Sprint(v...) }

func Debug(v ...interface{}) {
	if DebugWriter == io.Discard {
		return
	}
	out := printStr(v...)
	if logDateTime {
		DebugTimeLog.Output(2, out)
	} else {
		DebugLog.Output(2, out)
	}
}

func Info(v ...interface{}) {
	if InfoWriter == io.Discard {
		return
	}
	out := printStr(v...)
	if logDateTime {
		InfoTimeLog.Output(2, out)
	} else {
		InfoLog.Output(2, out)
	}
}

func Warn(v ...interface{}) {
	if WarnWriter == io.Discard {
		return
	}
	out := printStr(v...)
	if logDateTime {
		WarnTimeLog.Output(2, out)
	} else {
		WarnLog.Output(2, out)
	}
}

func Error(v ...interface{}) {
	if ErrWriter == io.Discard {
		return
	}
	out := printStr(v...)
	if logDateTime {
		ErrTimeLog.Output(2, out)
	} else {
		ErrLog.Output(2, out)
	}
}

// Fatal logs at error level and terminates the process.
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

func Debugf(format string, v ...interface{}) { Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...interface{})  { Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...interface{})  { Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...interface{}) { Error(fmt.Sprintf(format, v...)) }
func Fatalf(format string, v ...interface{}) { Fatal(fmt.Sprintf(format, v...)) }

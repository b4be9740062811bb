package logger

import (
	"io"
	"log"
	"os"
)

var (
	Info  *log.Logger
	Warn  *log.Logger
	Error *log.Logger
	Debug *log.Logger
)

func init() {
	logFlags := log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

	Info = log.New(os.Stdout, "INFO: ", logFlags)
	Warn = log.New(os.Stdout, "WARN: ", logFlags)
	Error = log.New(os.Stderr, "ERROR: ", logFlags)

	// Debug output is silent unless explicitly enabled.
	debugOut := io.Writer(io.Discard)
	if os.Getenv("VODMILL_DEBUG") != "" {
		debugOut = os.Stdout
	}
	Debug = log.New(debugOut, "DEBUG: ", logFlags)
}

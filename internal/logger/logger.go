// Package logger provides the leveled, colorized logging used throughout
// ircservd, plus a separate audit sink for modcmd's dispatch-time audit
// trail (§4.5.3, §7 of the design).
package logger

import (
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
)

type LogLevel string

const (
	LevelInfo    LogLevel = "INFO"
	LevelSuccess LogLevel = "SUCCESS"
	LevelWarning LogLevel = "WARNING"
	LevelError   LogLevel = "ERROR"
	LevelDebug   LogLevel = "DEBUG"
	LevelNotice  LogLevel = "NOTICE"
)

// AuditSeverity mirrors the three audit severities named in §4.5.3.
type AuditSeverity string

const (
	AuditStaff    AuditSeverity = "STAFF"
	AuditOverride AuditSeverity = "OVERRIDE"
	AuditCommand  AuditSeverity = "COMMAND"
)

var (
	errorLogger  *stdlog.Logger
	errorLogFile *os.File

	auditLogger  *stdlog.Logger
	auditLogFile *os.File
)

func init() {
	dataDir := filepath.Join("data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Printf("Error creating data directory: %v\n", err)
		return
	}

	logPath := filepath.Join(dataDir, "error.log")
	var err error
	errorLogFile, err = os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Printf("Error opening error log file: %v\n", err)
	} else {
		errorLogger = stdlog.New(errorLogFile, "", 0)
	}

	auditPath := filepath.Join(dataDir, "audit.log")
	auditLogFile, err = os.OpenFile(auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Printf("Error opening audit log file: %v\n", err)
	} else {
		auditLogger = stdlog.New(auditLogFile, "", 0)
	}
}

// CloseLogFile should be called during shutdown to properly close all log files.
func CloseLogFile() {
	if errorLogFile != nil {
		errorLogFile.Close()
	}
	if auditLogFile != nil {
		auditLogFile.Close()
	}
}

var colorMap = map[string]func(a ...interface{}) string{
	string(LevelInfo):    color.New(color.FgBlue).SprintFunc(),
	string(LevelSuccess): color.New(color.FgGreen).SprintFunc(),
	string(LevelWarning): color.New(color.FgYellow).SprintFunc(),
	string(LevelError):   color.New(color.FgRed).SprintFunc(),
	string(LevelDebug):   color.New(color.FgCyan).SprintFunc(),
	string(LevelNotice):  color.New(color.FgMagenta).SprintFunc(),
}

func colorFor(level LogLevel) func(a ...interface{}) string {
	if fn, ok := colorMap[string(level)]; ok {
		return fn
	}
	return color.New(color.FgWhite).SprintFunc()
}

func logMessage(level LogLevel, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	colorFunc := colorFor(level)
	fmt.Println(colorFunc(fmt.Sprintf("[%s] ", level)) + message)

	if level == LevelError || level == LevelWarning {
		if errorLogger != nil {
			errorLogger.Printf("[%s] %s: %s", level, timestamp, message)
		}
	}
}

func Infof(format string, args ...interface{})    { logMessage(LevelInfo, format, args...) }
func Successf(format string, args ...interface{}) { logMessage(LevelSuccess, format, args...) }
func Warnf(format string, args ...interface{})    { logMessage(LevelWarning, format, args...) }
func Errorf(format string, args ...interface{})   { logMessage(LevelError, format, args...) }
func Debugf(format string, args ...interface{})   { logMessage(LevelDebug, format, args...) }
func Noticef(format string, args ...interface{})  { logMessage(LevelNotice, format, args...) }

// Auditf writes a dispatch-time audit line at the given severity. It never
// touches the console, matching how the teacher kept its AI debug stream
// separate from the error log.
func Auditf(severity AuditSeverity, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	if auditLogger != nil {
		auditLogger.Printf("[%s] %s: %s", severity, timestamp, message)
	}
}

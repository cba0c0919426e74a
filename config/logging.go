package config

import (
	"bufio"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// LogWriter is the writer used for application, request and database logs.
var LogWriter io.Writer = os.Stdout

// LogFilePath returns the path to the backend log file.
func LogFilePath() string {
	return filepath.Join("logs", "dispatch-api.log")
}

// InitLogging prepares the log file and points the standard logger and gin's
// request logger at stdout plus the file.
func InitLogging() (*os.File, io.Writer) {
	logPath := filepath.Dir(LogFilePath())
	if err := os.MkdirAll(logPath, os.ModePerm); err != nil {
		log.Printf("Warning: Failed to create logs directory: %v", err)
	}

	logFile, err := os.OpenFile(LogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("Warning: Failed to open log file: %v", err)
		LogWriter = os.Stdout
	} else {
		LogWriter = io.MultiWriter(os.Stdout, logFile)
	}

	log.SetOutput(LogWriter)
	gin.DefaultWriter = LogWriter
	gin.DefaultErrorWriter = LogWriter
	return logFile, LogWriter
}

// TailLogFile returns up to n trailing lines of the log file.
func TailLogFile(n int) ([]string, error) {
	f, err := os.Open(LogFilePath())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if n <= 0 {
		n = 200
	}
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	return ring, scanner.Err()
}

package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/rs/zerolog"
	"github.com/ziflex/lecho/v3"
)

// Logger logs to STDOUT unless a log file path is configured.
// A path without extension gets a dated .log suffix, one file per day.
func Logger(logFilePath string) *lecho.Logger {
	var target io.Writer = os.Stdout
	var fileErr error
	if logFilePath != "" {
		file, err := GetLoggingFile(logFilePath)
		if err != nil {
			fileErr = err
		} else {
			target = file
		}
	}

	zl := zerolog.New(target)
	logger := lecho.From(zl,
		lecho.WithLevel(log.INFO),
		lecho.WithTimestamp(),
	)
	if fileErr != nil {
		logger.Errorf("failed to create logging file, falling back to stdout: %v", fileErr)
	}
	return logger
}

func GetLoggingFile(path string) (*os.File, error) {
	if filepath.Ext(path) == "" {
		path = path + time.Now().Format("-2006-01-02") + ".log"
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
}

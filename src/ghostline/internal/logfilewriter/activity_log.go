package logfilewriter

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ghostline-dev/ghostline/src/ghostline/internal/fs"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/serverinfofile"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//go:generate mockgen -destination logfilewritermock/activity_log_mock.go -package logfilewritermock . ActivityLog

const (
	_fmtOutputKey        = "output:%s"
	_activityOutputName  = "activity"
	_activityLogFileName = "ghostline.log"
	_configKeyStorageDir = "storage.dir"
)

// Module provides the ActivityLog.
var Module = fx.Provide(New)

// ActivityLog is the user facing, append-only record of what the daemon did.
// Each entry is a single timestamped line. The file is never rotated or truncated.
type ActivityLog interface {
	io.Writer
	Info(action string, keysAndValues ...interface{})
	Error(action string, err error, keysAndValues ...interface{})
	Path() string
}

// Params define the dependencies for the ActivityLog.
type Params struct {
	fx.In

	Config         config.Provider
	FS             fs.GhostlineFS
	Lifecycle      fx.Lifecycle
	ServerInfoFile serverinfofile.ServerInfoFile
}

type activityLog struct {
	path   string
	logger *zap.SugaredLogger
	writer *loggerWriter
}

// New opens (or creates) ghostline.log in the storage directory for appending.
// The file path is stored in the server info file for reference by the IDE.
func New(p Params) (ActivityLog, error) {
	var storageDir string
	if err := p.Config.Get(_configKeyStorageDir).Populate(&storageDir); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyStorageDir, err)
	}
	if storageDir == "" {
		return nil, fmt.Errorf("missing field %q in config", _configKeyStorageDir)
	}

	if err := p.FS.MkdirAll(storageDir); err != nil {
		return nil, err
	}

	logPath := filepath.Join(storageDir, _activityLogFileName)
	logFile, err := p.FS.OpenAppend(logPath)
	if err != nil {
		return nil, fmt.Errorf("opening activity log: %w", err)
	}

	if err := p.ServerInfoFile.UpdateField(fmt.Sprintf(_fmtOutputKey, _activityOutputName), logPath); err != nil {
		logFile.Close()
		return nil, err
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(activityEncoderConfig()),
		zapcore.AddSync(logFile),
		zap.InfoLevel,
	)
	logger := zap.New(core).Sugar()

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Sync()
			return logFile.Close()
		},
	})

	return newActivityLog(logPath, logger), nil
}

func newActivityLog(path string, logger *zap.SugaredLogger) *activityLog {
	return &activityLog{
		path:   path,
		logger: logger,
		writer: &loggerWriter{logger: logger},
	}
}

func activityEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// Info records a completed action.
func (a *activityLog) Info(action string, keysAndValues ...interface{}) {
	a.logger.Infow(action, keysAndValues...)
}

// Error records a failed action.
func (a *activityLog) Error(action string, err error, keysAndValues ...interface{}) {
	a.logger.Errorw(action, append(keysAndValues, "error", err.Error())...)
}

// Path returns the location of the log file.
func (a *activityLog) Path() string {
	return a.path
}

// Write adds each non-empty line of p as its own entry.
func (a *activityLog) Write(p []byte) (int, error) {
	return a.writer.Write(p)
}

type loggerWriter struct {
	logger *zap.SugaredLogger
}

// Write implements the io.Writer interface by sending data to the given logger.
func (o *loggerWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if len(line) > 0 {
			o.logger.Info(line)
		}
	}

	return len(p), nil
}

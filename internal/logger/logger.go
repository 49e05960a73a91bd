package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig 日志配置，由 config.LogConfig 实现
type LogConfig interface {
	GetLevel() string
	GetOutput() string
	GetFile() string
}

// 进程级日志器，Init 之前输出 info 级别到标准输出
var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar = build(zapcore.Lock(os.Stdout))
)

// Init 按配置设置级别和输出位置，output 支持 stdout、stderr、file
func Init(cfg LogConfig) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(cfg.GetLevel()))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.GetLevel(), err)
	}

	var sink zapcore.WriteSyncer
	switch strings.ToLower(cfg.GetOutput()) {
	case "", "stdout":
		sink = zapcore.Lock(os.Stdout)
	case "stderr":
		sink = zapcore.Lock(os.Stderr)
	case "file":
		if cfg.GetFile() == "" {
			return fmt.Errorf("log file path is empty")
		}
		// 单个文件 100MB，保留 3 个、28 天
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.GetFile(),
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	default:
		return fmt.Errorf("unsupported log output %s, supported types: stdout, stderr, file", cfg.GetOutput())
	}

	Sync()
	level.SetLevel(lvl)
	sugar = build(sink)
	return nil
}

func build(sink zapcore.WriteSyncer) *zap.SugaredLogger {
	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "timestamp"
	encoder.MessageKey = "message"
	encoder.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder.EncodeCaller = zapcore.ShortCallerEncoder
	encoder.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05"))
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoder), sink, level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

func Debug(format string, args ...interface{}) {
	sugar.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	sugar.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	sugar.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	sugar.Errorf(format, args...)
}

// Fatal 记录日志后退出进程
func Fatal(format string, args ...interface{}) {
	sugar.Fatalf(format, args...)
}

// Sync 刷新缓冲的日志
func Sync() {
	_ = sugar.Sync()
}

package utils

import (
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig - настройки логгера
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json или text
	Output      string // путь к файлу; пусто = stderr
	Development bool
}

// Logger - обёртка над zap.Logger с доменными хелперами
//
// Встраивает *zap.Logger, поэтому Info/Warn/Error/Sync доступны напрямую.
// sugar используется для форматированных сообщений.
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// InitLogger создает логгер по конфигурации
//
// Никогда не возвращает nil: при ошибке открытия файла пишет в stderr.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "text" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	sink := zapcore.Lock(os.Stderr)
	if cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err == nil {
			sink = zapcore.AddSync(f)
		}
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	z := zap.New(core, opts...)
	return &Logger{Logger: z, sugar: z.Sugar()}
}

// NewLogger оборачивает готовый zap.Logger
func NewLogger(z *zap.Logger) *Logger {
	return &Logger{Logger: z, sugar: z.Sugar()}
}

// NewNopLogger возвращает логгер, который ничего не пишет (для тестов)
func NewNopLogger() *Logger {
	z := zap.NewNop()
	return &Logger{Logger: z, sugar: z.Sugar()}
}

// parseLevel переводит строку в уровень zap, по умолчанию info
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ============ Глобальный логгер ============

// InitGlobalLogger создает логгер и делает его глобальным
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger заменяет глобальный логгер
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger возвращает глобальный логгер, создавая логгер по умолчанию при первом вызове
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - короткий алиас GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// ============ Методы Logger ============

// With возвращает дочерний логгер с дополнительными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	z := l.Logger.With(fields...)
	return &Logger{Logger: z, sugar: z.Sugar()}
}

// WithComponent - дочерний логгер для компонента (session, gateway, onboarding...)
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithOperation - дочерний логгер для операции удаленного сервиса
func (l *Logger) WithOperation(op string) *Logger {
	return l.With(Operation(op))
}

// WithRequestID - дочерний логгер для конкретного запроса
func (l *Logger) WithRequestID(id string) *Logger {
	return l.With(RequestID(id))
}

// Sugar возвращает SugaredLogger
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============ Глобальные функции логирования ============

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

func Debugf(format string, args ...interface{}) { L().sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{}) { L().sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{}) { L().sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { L().sugar.Errorf(format, args...) }

// ============ Доменные конструкторы полей ============

func Component(name string) zap.Field { return zap.String("component", name) }
func Operation(op string) zap.Field { return zap.String("operation", op) }
func Method(method string) zap.Field { return zap.String("method", method) }
func Path(path string) zap.Field { return zap.String("path", path) }
func StatusCode(code int) zap.Field { return zap.Int("status_code", code) }
func Latency(ms float64) zap.Field { return zap.Float64("latency_ms", ms) }
func RequestID(id string) zap.Field { return zap.String("request_id", id) }
func State(state string) zap.Field { return zap.String("state", state) }
func Exchange(name string) zap.Field { return zap.String("exchange", name) }
func Symbol(symbol string) zap.Field { return zap.String("symbol", symbol) }
func AccountType(accType string) zap.Field { return zap.String("account_type", accType) }
func Category(category string) zap.Field { return zap.String("category", category) }

// Переэкспорт стандартных конструкторов zap, чтобы пакеты не импортировали zap напрямую

func String(key, val string) zap.Field { return zap.String(key, val) }
func Int(key string, val int) zap.Field { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field { return zap.Int64(key, val) }
func Float64(key string, val float64) zap.Field { return zap.Float64(key, val) }
func Bool(key string, val bool) zap.Field { return zap.Bool(key, val) }
func Err(err error) zap.Field { return zap.Error(err) }
func Any(key string, val interface{}) zap.Field { return zap.Any(key, val) }
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }

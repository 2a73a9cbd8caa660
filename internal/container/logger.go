package container

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/garyjia/approval-engine/internal/application/service"
)

// kvLogger turns key/value calls from the services into typed zap fields
type kvLogger struct {
	z *zap.Logger
}

// NewServiceLogger also satisfies the HTTP layer's narrower Logger
func NewServiceLogger(logger *zap.Logger) service.Logger {
	return kvLogger{z: logger.WithOptions(zap.AddCallerSkip(2))}
}

func (l kvLogger) Info(msg string, kv ...interface{})  { l.log(zapcore.InfoLevel, msg, kv) }
func (l kvLogger) Warn(msg string, kv ...interface{})  { l.log(zapcore.WarnLevel, msg, kv) }
func (l kvLogger) Error(msg string, kv ...interface{}) { l.log(zapcore.ErrorLevel, msg, kv) }

func (l kvLogger) log(level zapcore.Level, msg string, kv []interface{}) {
	if ce := l.z.Check(level, msg); ce != nil {
		ce.Write(toFields(kv)...)
	}
}

// toFields drops pairs whose key is not a string and a trailing unpaired value
func toFields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 1; i < len(kv); i += 2 {
		key, ok := kv[i-1].(string)
		if !ok {
			continue
		}
		if err, isErr := kv[i].(error); isErr && key == "error" {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Any(key, kv[i]))
		}
	}
	return fields
}

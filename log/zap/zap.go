package zap

import (
	"github.com/unkn0wn-root/querycache"
	"go.uber.org/zap"
)

var _ querycache.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names the logger "querycache".
func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l.Named("querycache")} }

func (z ZapLogger) Debug(msg string, f querycache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f querycache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f querycache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f querycache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f querycache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}

package log

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultLevel = "info"

var base atomic.Pointer[zap.Logger]

func init() { base.Store(zap.NewNop()) }

// New builds a JSON zap logger writing to stdout and any extra sinks.
func New(level string, extra ...io.Writer) *zap.Logger {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		_ = lvl.UnmarshalText([]byte(defaultLevel))
	}

	encCfg := zapcore.EncoderConfig{
		MessageKey: "message",
		TimeKey:    "ts",
		LevelKey:   "level",
		CallerKey:  "caller",
		EncodeTime: zapcore.RFC3339TimeEncoder,
		EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(l.String())
		},
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}

	writers := []io.Writer{os.Stdout}
	writers = append(writers, extra...)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(io.MultiWriter(writers...)), lvl)
	return zap.New(core, zap.AddCaller())
}

// SetDefault replaces the logger used by the request helpers below.
func SetDefault(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	base.Store(l)
}

// L returns the process logger.
func L() *zap.Logger { return base.Load() }

func requestFields(c *fiber.Ctx) []zap.Field {
	if c == nil {
		return nil
	}
	out := []zap.Field{
		zap.String("ip", c.IP()),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
	}
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		out = append(out, zap.String("req_id", rid))
	}
	if uid, ok := c.Locals("actor_id").(int64); ok && uid > 0 {
		out = append(out, zap.Int64("user_id", uid))
	}
	return out
}

func write(level zapcore.Level, kind string, c *fiber.Ctx, action string, err error, fields map[string]any) {
	zf := append(requestFields(c), zap.String("action", action))
	if kind != "" {
		zf = append(zf, zap.String("kind", kind))
	}
	if len(fields) > 0 {
		zf = append(zf, zap.Any("fields", fields))
	}
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	if ce := L().Check(level, action); ce != nil {
		ce.Write(zf...)
	}
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	write(zapcore.InfoLevel, "", c, action, nil, fields)
}

func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	write(zapcore.InfoLevel, "audit", c, action, nil, fields)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	write(zapcore.WarnLevel, "security", c, action, nil, fields)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(zapcore.ErrorLevel, "", c, action, err, fields)
}

package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type (
	requestIDKey struct{}
	loggerKey    struct{}
)

// RequestIDLogMiddleware puts the request ID and a logger carrying it into
// the user context, so engine and source calls made with c.UserContext() log
// under the same request.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		ctx := context.WithValue(c.UserContext(), requestIDKey{}, rid)
		ctx = context.WithValue(ctx, loggerKey{}, slog.Default().With("request_id", rid))
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// LoggerFromCtx returns the request logger, or the default logger outside
// a request.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// RequestIDFromCtx returns the request ID, or "" outside a request.
func RequestIDFromCtx(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

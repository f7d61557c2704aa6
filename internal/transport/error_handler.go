package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/widget-claims/internal/observability"
	"github.com/kursadbilgin/widget-claims/internal/web"
	"go.uber.org/zap"
)

const defaultErrorMessage = "Something went wrong. Please try again."

// ErrorHandler renders every failed request as the error page. Messages of
// *fiber.Error are shown to the visitor; anything else becomes a generic 500.
func ErrorHandler(logger *zap.Logger, site web.Site) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := defaultErrorMessage

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}

		log := observability.WithContextLogger(logger, c.UserContext())
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("request error", fields...)
		} else {
			log.Warn("request rejected", fields...)
		}

		c.Status(code)
		renderErr := c.Render("error", web.Page{
			Site:    site,
			Title:   "Something went wrong",
			Message: message,
		})
		if renderErr != nil {
			log.Error("failed to render error page", zap.Error(renderErr))
			return c.Status(code).SendString(message)
		}
		return nil
	}
}

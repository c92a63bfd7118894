package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/septivank/city-signals/internal/auth"
	"go.uber.org/zap"
)

const actorKey = "actor"

// logRequests writes one line per request
func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusOf(err)
	}

	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
		zap.String("request_id", requestID(c)),
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Warn("request failed", fields...)
	} else {
		s.logger.Debug("request served", fields...)
	}
	return err
}

// resolveActor maps the bearer token to the caller's role
func (s *Server) resolveActor(c *fiber.Ctx) error {
	c.Locals(actorKey, s.resolver.FromAuthorization(c.Get(fiber.HeaderAuthorization)))
	return c.Next()
}

func actor(c *fiber.Ctx) auth.Actor {
	if a, ok := c.Locals(actorKey).(auth.Actor); ok {
		return a
	}
	return auth.Anonymous
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}

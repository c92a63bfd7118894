package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/septivank/city-signals/internal/errs"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
	// Distance is set on proximity rejections
	Distance *int `json:"distance,omitempty"`
	// SignalID is set on duplicate rejections
	SignalID string `json:"signalId,omitempty"`
}

// handleError is the fiber error handler. Service errors keep their
// message unless they are infrastructure failures.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}

	var e *errs.Error
	if !errors.As(err, &e) {
		s.logger.Error("unhandled error", zap.String("path", c.Path()), zap.String("request_id", requestID(c)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal server error"})
	}

	resp := ErrorResponse{Error: e.Message, Distance: e.Distance, SignalID: e.SignalID}
	if e.Kind == errs.KindInfrastructure {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.String("request_id", requestID(c)), zap.Error(err))
	}
	return c.Status(e.Kind.HTTPStatus()).JSON(resp)
}

// statusOf returns the status code handleError will reply with
func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return errs.KindOf(err).HTTPStatus()
}

func badRequest(msg string) error {
	return errs.Validation("%s", msg)
}

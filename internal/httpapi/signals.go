package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/validator"
)

// DocResponse wraps a created or updated document
type DocResponse[T any] struct {
	Doc     T      `json:"doc"`
	Message string `json:"message"`
}

func (s *Server) createSignal(c *fiber.Ctx) error {
	var in validator.SignalInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest("invalid request body")
	}

	signal, err := s.signals.Submit(c.UserContext(), in, actor(c), requestID(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(DocResponse[*db.Signal]{
		Doc:     signal,
		Message: "Signal successfully created.",
	})
}

func (s *Server) getSignal(c *fiber.Ctx) error {
	signal, err := s.signals.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(signal)
}

func (s *Server) updateSignal(c *fiber.Ctx) error {
	var in validator.SignalUpdateInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest("invalid request body")
	}

	signal, err := s.signals.Update(c.UserContext(), c.Params("id"), in, actor(c), requestID(c))
	if err != nil {
		return err
	}
	return c.JSON(DocResponse[*db.Signal]{
		Doc:     signal,
		Message: "Updated successfully.",
	})
}

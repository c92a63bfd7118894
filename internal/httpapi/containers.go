package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/nearby"
)

func (s *Server) nearbyContainers(c *fiber.Ctx) error {
	q, err := nearby.ParseQuery(func(key string) string { return c.Query(key) }, s.cfg.Limits)
	if err != nil {
		return err
	}

	page, err := s.containers.Nearby(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (s *Server) containersWithSignals(c *fiber.Ctx) error {
	p := nearby.ParsePagination(func(key string) string { return c.Query(key) }, s.cfg.Limits)
	page, err := s.containers.WithOpenSignals(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (s *Server) getContainer(c *fiber.Ctx) error {
	container, err := s.containers.Get(c.UserContext(), c.Params("publicNumber"))
	if err != nil {
		return err
	}
	return c.JSON(container)
}

func (s *Server) cleanContainer(c *fiber.Ctx) error {
	container, err := s.containers.Clean(c.UserContext(), c.Params("publicNumber"), actor(c), requestID(c))
	if err != nil {
		return err
	}
	return c.JSON(DocResponse[*db.WasteContainer]{
		Doc:     container,
		Message: "Container marked as cleaned.",
	})
}

package httpapi

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/turnstile-stats/internal/turnstile"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *turnstile.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/stats", func(c *fiber.Ctx) error {
		q := rangeQuery{Start: c.Query("start"), End: c.Query("end")}
		return stats(c, service, q)
	})

	// Form post with the field names of the date picker page.
	v1.Post("/stats", func(c *fiber.Ctx) error {
		q := rangeQuery{Start: c.FormValue("startdate"), End: c.FormValue("enddate")}
		return stats(c, service, q)
	})

	v1.Get("/files", func(c *fiber.Ctx) error {
		q := rangeQuery{Start: c.Query("start"), End: c.Query("end")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		files, err := service.Files(q.Start, q.End)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{
			"start": q.Start,
			"end":   q.End,
			"files": files,
		})
	})
}

// rangeQuery holds the two boundary dates of a stats request.
type rangeQuery struct {
	Start string `validate:"required,datetime=2006-01-02"`
	End   string `validate:"required,datetime=2006-01-02"`
}

func stats(c *fiber.Ctx, service *turnstile.Service, q rangeQuery) error {
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	summary, err := service.QueryStats(c.UserContext(), q.Start, q.End)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(summary)
}

// toHTTPError maps pipeline failures onto status codes.
func toHTTPError(err error) error {
	switch {
	case turnstile.IsPrecondition(err):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, turnstile.ErrSourceUnavailable):
		log.Printf("ERROR: %v", err)
		return fiber.NewError(fiber.StatusBadGateway, "turnstile data source unavailable")
	case errors.Is(err, turnstile.ErrMalformedRecord):
		log.Printf("ERROR: %v", err)
		return fiber.NewError(fiber.StatusBadGateway, "turnstile data file is malformed")
	default:
		log.Printf("ERROR: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute station traffic")
	}
}

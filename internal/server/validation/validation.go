package validation

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Middleware converts validation failures bubbling out of handlers into 400s.
func Middleware(c *fiber.Ctx) error {
	err := c.Next()
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return fiber.NewError(fiber.StatusBadRequest, validationErrs.Error())
	}

	return err
}

// DecorateWithBodyEx parses and validates the request body before invoking the
// handler with the typed payload.
func DecorateWithBodyEx[T any](
	validate *validator.Validate,
	handler func(c *fiber.Ctx, req *T) error,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(T)
		if err := c.BodyParser(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.StructCtx(c.Context(), req); err != nil {
			return err
		}

		return handler(c, req)
	}
}

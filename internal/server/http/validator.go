package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"chessanalysis/internal/board"
	"chessanalysis/internal/core"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Rejects control characters and anything that cannot be FEN
	_ = v.RegisterValidation("fen", func(fl validator.FieldLevel) bool {
		return board.IsSafeFEN(fl.Field().String())
	})
	// UCI coordinate move: e2e4, e7e8q
	_ = v.RegisterValidation("ucimove", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 4 && len(s) != 5 {
			return false
		}
		for i := 0; i < 4; i += 2 {
			if s[i] < 'a' || s[i] > 'h' || s[i+1] < '1' || s[i+1] > '8' {
				return false
			}
		}
		return len(s) == 4 || strings.ContainsRune("qrbn", rune(s[4]))
	})
	return v
}

func validationMiddleware(c *fiber.Ctx) error {
	// Skip validation for GET, DELETE, OPTIONS
	method := c.Method()
	if method != fiber.MethodPost {
		return c.Next()
	}

	// Determine request type based on path
	path := c.Path()
	var requestType interface{}

	switch {
	case strings.HasSuffix(path, "/boards"):
		requestType = &core.CreateBoardRequest{}
	case strings.HasSuffix(path, "/moves"):
		requestType = &core.MoveRequest{}
	case strings.HasSuffix(path, "/pgn"):
		requestType = &core.LoadPGNRequest{}
	default:
		return c.Next() // reset and engine take no body
	}

	// An empty body validates as the zero request
	if len(c.Body()) > 0 {
		if err := c.BodyParser(requestType); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
				Error:   "invalid request body",
				Code:    core.ErrInvalidRequest,
				Details: err.Error(),
			})
		}
	}

	if err := validate.Struct(requestType); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "validation failed",
			Code:    core.ErrInvalidRequest,
			Details: validationDetails(err),
		})
	}

	// Store validated body for handler use
	c.Locals("validatedBody", requestType)
	c.Locals("validated", true)

	return c.Next()
}

func validationDetails(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}

	var details strings.Builder
	for _, err := range errs {
		if details.Len() > 0 {
			details.WriteString("; ")
		}
		switch err.Tag() {
		case "required":
			details.WriteString(fmt.Sprintf("%s is required", err.Field()))
		case "min":
			if err.Type().Kind() == reflect.String {
				details.WriteString(fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param()))
			} else {
				details.WriteString(fmt.Sprintf("%s must be at least %s", err.Field(), err.Param()))
			}
		case "max":
			if err.Type().Kind() == reflect.String {
				details.WriteString(fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param()))
			} else {
				details.WriteString(fmt.Sprintf("%s must be at most %s", err.Field(), err.Param()))
			}
		case "fen":
			details.WriteString(fmt.Sprintf("%s is not a valid FEN string", err.Field()))
		case "ucimove":
			details.WriteString(fmt.Sprintf("%s must be a coordinate move like e2e4 or e7e8q", err.Field()))
		default:
			details.WriteString(fmt.Sprintf("%s failed %s validation", err.Field(), err.Tag()))
		}
	}
	return details.String()
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

package http

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chessanalysis/internal/core"
	"chessanalysis/internal/position"
	"chessanalysis/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const rateLimitRate = 10 // req/sec

// RateLimit returns the per-client request limit per second. Dev mode
// doubles it.
func RateLimit(devMode bool) int {
	if devMode {
		return rateLimitRate * 2
	}
	return rateLimitRate
}

// HTTPHandler routes REST requests to the analysis service
type HTTPHandler struct {
	svc *service.Service
}

func NewHTTPHandler(svc *service.Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

func NewFiberApp(svc *service.Service, devMode bool) *fiber.App {
	h := NewHTTPHandler(svc)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second, // above the long-poll limit
		IdleTimeout:  60 * time.Second,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check (no rate limit)
	app.Get("/health", h.Health)

	api := app.Group("/api/v1")

	api.Use(limiter.New(limiter.Config{
		Max:        RateLimit(devMode),
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrRateLimitExceeded,
				Details: fmt.Sprintf("%d requests per second allowed", RateLimit(devMode)),
			})
		},
	}))

	api.Use(contentTypeValidator)
	api.Use(validationMiddleware)

	api.Post("/boards", h.CreateBoard)
	api.Get("/boards/:boardId", h.GetBoard)
	api.Delete("/boards/:boardId", h.DeleteBoard)
	api.Post("/boards/:boardId/moves", h.MakeMove)
	api.Post("/boards/:boardId/reset", h.ResetBoard)
	api.Post("/boards/:boardId/pgn", h.LoadPGN)
	api.Post("/boards/:boardId/engine", h.RestartEngine)
	api.Get("/boards/:boardId/ascii", h.GetASCII)
	api.Get("/analyses", h.GetAnalyses)

	return app
}

// contentTypeValidator ensures POST requests carry application/json
func contentTypeValidator(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
				Error:   "unsupported media type",
				Code:    core.ErrInvalidContent,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrInternalError,
	}

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		response.Error = e.Message

		switch code {
		case fiber.StatusNotFound:
			response.Code = core.ErrBoardNotFound
		case fiber.StatusBadRequest:
			response.Code = core.ErrInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.ErrRateLimitExceeded
		}
	}

	return c.Status(code).JSON(response)
}

// serviceError renders a service failure with its status and error code
func serviceError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, core.ErrInternalError
	switch {
	case errors.Is(err, service.ErrBoardNotFound):
		status, code = fiber.StatusNotFound, core.ErrBoardNotFound
	case errors.Is(err, service.ErrInvalidMove), errors.Is(err, position.ErrIllegalMove):
		status, code = fiber.StatusBadRequest, core.ErrInvalidMove
	case errors.Is(err, position.ErrGameOver):
		status, code = fiber.StatusBadRequest, core.ErrGameOver
	case errors.Is(err, position.ErrInvalidFEN):
		status, code = fiber.StatusBadRequest, core.ErrInvalidFEN
	case errors.Is(err, position.ErrInvalidPGN):
		status, code = fiber.StatusBadRequest, core.ErrInvalidPGN
	case errors.Is(err, service.ErrInvalidDepth):
		status, code = fiber.StatusBadRequest, core.ErrInvalidRequest
	case errors.Is(err, service.ErrResourceLimit):
		status, code = fiber.StatusServiceUnavailable, core.ErrResourceLimit
	case errors.Is(err, service.ErrShuttingDown):
		status, code = fiber.StatusServiceUnavailable, core.ErrEngineUnavailable
	case errors.Is(err, service.ErrStorageDisabled):
		status, code = fiber.StatusNotFound, core.ErrStorageDisabled
	}

	resp := core.ErrorResponse{Error: err.Error(), Code: code}
	if status == fiber.StatusInternalServerError {
		resp.Error = "internal server error"
		resp.Details = err.Error()
	}
	return c.Status(status).JSON(resp)
}

func invalidBoardID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
		Error:   "invalid board ID format",
		Code:    core.ErrInvalidRequest,
		Details: "board ID must be a valid UUID",
	})
}

// validatedBody returns the body parsed by validationMiddleware
func validatedBody[T any](c *fiber.Ctx) (*T, error) {
	validated, ok := c.Locals("validated").(bool)
	if !ok || !validated {
		return nil, c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "validation bypass detected",
			Code:  core.ErrInternalError,
		})
	}
	req, ok := c.Locals("validatedBody").(*T)
	if !ok || req == nil {
		return nil, c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "validation data missing",
			Code:  core.ErrInternalError,
		})
	}
	return req, nil
}

// Health check endpoint with storage status
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(core.HealthResponse{
		Status:  "healthy",
		Time:    time.Now().Unix(),
		Storage: h.svc.GetStorageHealth(),
		Boards:  h.svc.BoardCount(),
	})
}

// CreateBoard sets up a board and starts its engine
func (h *HTTPHandler) CreateBoard(c *fiber.Ctx) error {
	req, err := validatedBody[core.CreateBoardRequest](c)
	if req == nil {
		return err
	}

	resp, err := h.svc.CreateBoard(c.UserContext(), req.FEN, req.Depth)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetBoard returns the board, optionally long-polling until its analysis
// version moves past the one the client holds
func (h *HTTPHandler) GetBoard(c *fiber.Ctx) error {
	boardID := c.Params("boardId")
	if !isValidUUID(boardID) {
		return invalidBoardID(c)
	}

	if c.Query("wait", "false") != "true" {
		resp, err := h.svc.GetBoard(boardID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(resp)
	}

	version, err := strconv.ParseUint(c.Query("version", "0"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid version",
			Code:    core.ErrInvalidRequest,
			Details: "version must be a non-negative integer",
		})
	}

	// fasthttp's request context only ends at server shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notify, err := h.svc.RegisterWait(boardID, version, ctx)
	if err != nil {
		return serviceError(c, err)
	}
	<-notify

	// Board might have been deleted meanwhile
	resp, err := h.svc.GetBoard(boardID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(resp)
}

// DeleteBoard stops the board's engine and removes it
func (h *HTTPHandler) DeleteBoard(c *fiber.Ctx) error {
	boardID := c.Params("boardId")
	if !isValidUUID(boardID) {
		return invalidBoardID(c)
	}

	if err := h.svc.DeleteBoard(boardID); err != nil {
		return serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MakeMove applies a UCI coordinate move
func (h *HTTPHandler) MakeMove(c *fiber.Ctx) error {
	boardID := c.Params("boardId")
	if !isValidUUID(boardID) {
		return invalidBoardID(c)
	}
	req, err := validatedBody[core.MoveRequest](c)
	if req == nil {
		return err
	}

	resp, err := h.svc.MakeMove(boardID, req.Move)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(resp)
}

// ResetBoard returns the board to the starting position
func (h *HTTPHandler) ResetBoard(c *fiber.Ctx) error {
	boardID := c.Params("boardId")
	if !isValidUUID(boardID) {
		return invalidBoardID(c)
	}

	resp, err := h.svc.Reset(boardID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(resp)
}

// LoadPGN replaces the board's game with a PGN
func (h *HTTPHandler) LoadPGN(c *fiber.Ctx) error {
	boardID := c.Params("boardId")
	if !isValidUUID(boardID) {
		return invalidBoardID(c)
	}
	req, err := validatedBody[core.LoadPGNRequest](c)
	if req == nil {
		return err
	}

	resp, err := h.svc.LoadPGN(boardID, req.PGN)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(resp)
}

// RestartEngine replaces the board's engine connection
func (h *HTTPHandler) RestartEngine(c *fiber.Ctx) error {
	boardID := c.Params("boardId")
	if !isValidUUID(boardID) {
		return invalidBoardID(c)
	}

	resp, err := h.svc.RestartEngine(c.UserContext(), boardID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(resp)
}

// GetASCII returns an ASCII rendering of the board
func (h *HTTPHandler) GetASCII(c *fiber.Ctx) error {
	boardID := c.Params("boardId")
	if !isValidUUID(boardID) {
		return invalidBoardID(c)
	}

	resp, err := h.svc.BoardASCII(boardID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(resp)
}

// GetAnalyses lists logged analyses, filtered by board and position
func (h *HTTPHandler) GetAnalyses(c *fiber.Ctx) error {
	boardID := c.Query("boardId")
	if boardID != "" && !isValidUUID(boardID) {
		return invalidBoardID(c)
	}

	records, err := h.svc.Analyses(boardID, c.Query("fen"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(core.AnalysesResponse{Analyses: records})
}

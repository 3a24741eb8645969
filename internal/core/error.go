package core

// Error codes
const (
	ErrBoardNotFound     = "BOARD_NOT_FOUND"
	ErrInvalidMove       = "INVALID_MOVE"
	ErrInvalidPGN        = "INVALID_PGN"
	ErrInvalidFEN        = "INVALID_FEN"
	ErrGameOver          = "GAME_OVER"
	ErrEngineUnavailable = "ENGINE_UNAVAILABLE"
	ErrRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrInvalidContent    = "INVALID_CONTENT_TYPE"
	ErrInvalidRequest    = "INVALID_REQUEST"
	ErrInternalError     = "INTERNAL_ERROR"
	ErrResourceLimit     = "RESOURCE_LIMIT"
	ErrStorageDisabled   = "STORAGE_DISABLED"
)

package storage

import "time"

// AnalysisRecord represents a row in the analyses table: one completed
// search, keyed by the board and the position searched
type AnalysisRecord struct {
	AnalysisID   int64     `db:"analysis_id"`
	BoardID      string    `db:"board_id"`
	FEN          string    `db:"fen"`
	SideToMove   string    `db:"side_to_move"`
	TargetDepth  int       `db:"target_depth"`
	ReachedDepth int       `db:"reached_depth"`
	ScoreKind    string    `db:"score_kind"` // "cp", "mate" or empty when no score was reported
	ScoreValue   int       `db:"score_value"`
	BestMove     string    `db:"best_move"` // UCI move, "(none)" for positions without legal moves
	RecordedAt   time.Time `db:"recorded_at"`
}

// Schema defines the SQLite database structure
const Schema = `
CREATE TABLE IF NOT EXISTS analyses (
	analysis_id INTEGER PRIMARY KEY AUTOINCREMENT,
	board_id TEXT NOT NULL,
	fen TEXT NOT NULL,
	side_to_move TEXT NOT NULL CHECK(side_to_move IN ('w', 'b')),
	target_depth INTEGER NOT NULL,
	reached_depth INTEGER NOT NULL DEFAULT 0,
	score_kind TEXT NOT NULL DEFAULT '' CHECK(score_kind IN ('', 'cp', 'mate')),
	score_value INTEGER NOT NULL DEFAULT 0,
	best_move TEXT NOT NULL,
	recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_analyses_board_id ON analyses(board_id);
CREATE INDEX IF NOT EXISTS idx_analyses_fen ON analyses(fen);
`

package storage

import (
	"database/sql"
	"fmt"
)

// QueryLimit caps the rows returned by QueryAnalyses
const QueryLimit = 500

// RecordAnalysis asynchronously records a completed analysis
func (s *Store) RecordAnalysis(record AnalysisRecord) {
	s.enqueue("analysis", func(tx *sql.Tx) error {
		query := `INSERT INTO analyses (
			board_id, fen, side_to_move, target_depth, reached_depth,
			score_kind, score_value, best_move, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

		_, err := tx.Exec(query,
			record.BoardID, record.FEN, record.SideToMove, record.TargetDepth, record.ReachedDepth,
			record.ScoreKind, record.ScoreValue, record.BestMove, record.RecordedAt.UTC(),
		)
		return err
	})
}

// QueryAnalyses retrieves analyses, newest first. Empty or "*" filters match all.
func (s *Store) QueryAnalyses(boardID, fen string) ([]AnalysisRecord, error) {
	query := `SELECT
		analysis_id, board_id, fen, side_to_move, target_depth, reached_depth,
		score_kind, score_value, best_move, recorded_at
	FROM analyses WHERE 1=1`

	var args []interface{}

	if boardID != "" && boardID != "*" {
		query += " AND board_id = ?"
		args = append(args, boardID)
	}

	if fen != "" && fen != "*" {
		query += " AND fen = ?"
		args = append(args, fen)
	}

	query += fmt.Sprintf(" ORDER BY recorded_at DESC, analysis_id DESC LIMIT %d", QueryLimit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var r AnalysisRecord
		err := rows.Scan(
			&r.AnalysisID, &r.BoardID, &r.FEN, &r.SideToMove, &r.TargetDepth, &r.ReachedDepth,
			&r.ScoreKind, &r.ScoreValue, &r.BestMove, &r.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return records, nil
}

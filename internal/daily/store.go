package daily

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Result is one finished game in the daily_results table.
type Result struct {
	PlayerID string `json:"playerId"`
	Kind     string `json:"kind"`
	Date     string `json:"date"`
	Day      int64  `json:"day"`
	Status   string `json:"status"` // won | lost
	Rounds   int    `json:"rounds"`
	Grid     string `json:"grid"`
}

// Stats summarizes a player's history for one kind.
type Stats struct {
	Played        int `json:"played"`
	Won           int `json:"won"`
	CurrentStreak int `json:"currentStreak"`
	MaxStreak     int `json:"maxStreak"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Find returns the player's recorded result for kind on date, if any.
func (s *Store) Find(ctx context.Context, playerID, kind, date string) (Result, bool, error) {
	r := Result{PlayerID: playerID, Kind: kind, Date: date}
	err := s.db.QueryRowContext(ctx,
		"SELECT day, status, rounds, grid FROM daily_results WHERE player_id=? AND kind=? AND date=?",
		playerID, kind, date,
	).Scan(&r.Day, &r.Status, &r.Rounds, &r.Grid)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("find result: %w", err)
	}
	return r, true, nil
}

// Record inserts r. A second result for the same player, kind and date is ignored.
func (s *Store) Record(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(player_id, kind, date, day, status, rounds, grid)
		 VALUES(?,?,?,?,?,?,?)`, r.PlayerID, r.Kind, r.Date, r.Day, r.Status, r.Rounds, r.Grid,
	)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// Stats aggregates the player's results for kind. The current streak only counts
// when the latest win was today or yesterday.
func (s *Store) Stats(ctx context.Context, playerID, kind string, today int64) (Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, status FROM daily_results
		 WHERE player_id=? AND kind=?
		 ORDER BY day ASC`, playerID, kind,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var (
		st      Stats
		run     int
		prevDay int64
		lastWin int64 = -1 << 62
	)
	for rows.Next() {
		var (
			day    int64
			status string
		)
		if err := rows.Scan(&day, &status); err != nil {
			return Stats{}, err
		}
		st.Played++
		if status != "won" {
			run = 0
			prevDay = day
			continue
		}
		st.Won++
		if run > 0 && day == prevDay+1 {
			run++
		} else {
			run = 1
		}
		if run > st.MaxStreak {
			st.MaxStreak = run
		}
		prevDay, lastWin = day, day
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}
	if lastWin == prevDay && today-lastWin <= 1 {
		st.CurrentStreak = run
	}
	return st, nil
}

// History returns the player's most recent results for kind, newest first.
func (s *Store) History(ctx context.Context, playerID, kind string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, kind, date, day, status, rounds, grid
		 FROM daily_results
		 WHERE player_id=? AND kind=?
		 ORDER BY day DESC
		 LIMIT ?`, playerID, kind, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Result, 0, limit)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.PlayerID, &r.Kind, &r.Date, &r.Day, &r.Status, &r.Rounds, &r.Grid); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

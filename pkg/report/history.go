package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/soniclab-network/soniclab/pkg/verify"
)

// History persists verification runs to a local SQLite database so past
// outcomes stay queryable after the process exits.
type History struct {
	db *sql.DB
}

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topology TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	nodes_reachable INTEGER NOT NULL,
	nodes_total INTEGER NOT NULL,
	links_reachable INTEGER NOT NULL,
	links_total INTEGER NOT NULL,
	ok INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	run_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	target TEXT NOT NULL,
	state TEXT NOT NULL,
	cause TEXT NOT NULL DEFAULT '',
	latency_ns INTEGER NOT NULL,
	attempts INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pairs (
	run_id INTEGER NOT NULL,
	pair TEXT NOT NULL,
	paths_intact INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_pairs_run ON pairs(run_id);
`

// OpenHistory opens (creating if needed) the run history database.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("report: open history: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("report: migrate history: %w", err)
	}
	return &History{db: db}, nil
}

// Close releases the database handle.
func (h *History) Close() error {
	return h.db.Close()
}

// Save records one run and returns its row ID.
func (h *History) Save(ctx context.Context, rep *Report) (int64, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("report: begin save: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (topology, timestamp, nodes_reachable, nodes_total, links_reachable, links_total, ok)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rep.Topology, rep.Timestamp.Format(time.RFC3339Nano),
		rep.NodesReachable, rep.NodesTotal, rep.LinksReachable, rep.LinksTotal,
		boolInt(rep.OK))
	if err != nil {
		return 0, fmt.Errorf("report: insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("report: run id: %w", err)
	}

	for _, r := range rep.Results {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO results (run_id, kind, target, state, cause, latency_ns, attempts, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, string(r.Kind), r.Target, string(r.State), r.Cause,
			int64(r.Latency), r.Attempts, r.Timestamp.Format(time.RFC3339Nano)); err != nil {
			return 0, fmt.Errorf("report: insert result %s: %w", r.Target, err)
		}
	}
	for _, p := range rep.Pairs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pairs (run_id, pair, paths_intact) VALUES (?, ?, ?)`,
			runID, p.Pair, boolInt(p.PathsIntact)); err != nil {
			return 0, fmt.Errorf("report: insert pair %s: %w", p.Pair, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("report: commit save: %w", err)
	}
	return runID, nil
}

// Last loads the most recent run, or util-style not-found when the history
// is empty.
func (h *History) Last(ctx context.Context) (*Report, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, topology, timestamp, nodes_reachable, nodes_total, links_reachable, links_total, ok
		FROM runs ORDER BY id DESC LIMIT 1`)

	var (
		id    int64
		rep   Report
		ts    string
		okInt int
	)
	if err := row.Scan(&id, &rep.Topology, &ts,
		&rep.NodesReachable, &rep.NodesTotal,
		&rep.LinksReachable, &rep.LinksTotal, &okInt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("report: no recorded runs")
		}
		return nil, fmt.Errorf("report: load last run: %w", err)
	}
	rep.OK = okInt != 0
	rep.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)

	rows, err := h.db.QueryContext(ctx, `
		SELECT kind, target, state, cause, latency_ns, attempts, timestamp
		FROM results WHERE run_id = ? ORDER BY kind DESC, target`, id)
	if err != nil {
		return nil, fmt.Errorf("report: load results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r       verify.Result
			kind    string
			state   string
			latency int64
			rts     string
		)
		if err := rows.Scan(&kind, &r.Target, &state, &r.Cause, &latency, &r.Attempts, &rts); err != nil {
			return nil, fmt.Errorf("report: scan result: %w", err)
		}
		r.Kind = verify.Kind(kind)
		r.State = verify.State(state)
		r.Latency = time.Duration(latency)
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, rts)
		rep.Results = append(rep.Results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate results: %w", err)
	}

	prows, err := h.db.QueryContext(ctx, `
		SELECT pair, paths_intact FROM pairs WHERE run_id = ? ORDER BY pair`, id)
	if err != nil {
		return nil, fmt.Errorf("report: load pairs: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var (
			p      PairStatus
			intact int
		)
		if err := prows.Scan(&p.Pair, &intact); err != nil {
			return nil, fmt.Errorf("report: scan pair: %w", err)
		}
		p.PathsIntact = intact != 0
		rep.Pairs = append(rep.Pairs, p)
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate pairs: %w", err)
	}

	return &rep, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/membrane/internal/queryir"
	"github.com/roach88/membrane/internal/querysql"
)

// ReadOutcomes returns the outcomes of a session ordered by seq. An empty
// session returns every outcome.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ReadOutcomes(ctx context.Context, session string) ([]OutcomeRecord, error) {
	return s.QueryOutcomes(ctx, queryir.Select{
		From:   queryir.TableOutcomes,
		Filter: queryir.Eq("session", session),
	})
}

// ReadFaults returns the faults of a session ordered by seq. An empty
// session returns every fault.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ReadFaults(ctx context.Context, session string) ([]FaultRecord, error) {
	return s.QueryFaults(ctx, queryir.Select{
		From:   queryir.TableFaults,
		Filter: queryir.Eq("session", session),
	})
}

// QueryOutcomes runs a query against the outcomes table.
func (s *Store) QueryOutcomes(ctx context.Context, q queryir.Select) ([]OutcomeRecord, error) {
	if q.From != queryir.TableOutcomes {
		return nil, fmt.Errorf("query outcomes: query reads %q", q.From)
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []OutcomeRecord{}
	for rows.Next() {
		var (
			r     OutcomeRecord
			value sql.NullString
		)
		if err := rows.Scan(&r.Seq, &r.Session, &r.ModuleID, &r.Success, &value, &r.Describe, &r.Error); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		r.Value = value.String
		outcomes = append(outcomes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

// QueryFaults runs a query against the faults table.
func (s *Store) QueryFaults(ctx context.Context, q queryir.Select) ([]FaultRecord, error) {
	if q.From != queryir.TableFaults {
		return nil, fmt.Errorf("query faults: query reads %q", q.From)
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query faults: %w", err)
	}
	defer rows.Close()

	faults := []FaultRecord{}
	for rows.Next() {
		var r FaultRecord
		if err := rows.Scan(&r.Seq, &r.Session, &r.Op, &r.Object, &r.Name, &r.Code); err != nil {
			return nil, fmt.Errorf("scan fault: %w", err)
		}
		faults = append(faults, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faults: %w", err)
	}
	return faults, nil
}

func (s *Store) query(ctx context.Context, q queryir.Select) (*sql.Rows, error) {
	stmt, params, err := querysql.Compile(q)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("audit query", "sql", stmt, "params", len(params))
	return s.db.QueryContext(ctx, stmt, params...)
}

// Sessions lists every session with recorded rows, in order of first
// appearance.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session FROM (
			SELECT session, MIN(seq) AS first FROM (
				SELECT session, seq FROM outcomes
				UNION ALL
				SELECT session, seq FROM faults
			)
			GROUP BY session
		)
		ORDER BY first ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var session string
		if err := rows.Scan(&session); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
	"github.com/roach88/membrane/internal/module"
)

// OutcomeRecord is one stored module outcome.
type OutcomeRecord struct {
	Seq      int64  `json:"seq"`
	Session  string `json:"session"`
	ModuleID string `json:"module_id"`
	Success  bool   `json:"success"`
	// Value is the canonical JSON of the value, empty when the value has
	// no canonical form (functions, instances, undefined).
	Value    string `json:"value,omitempty"`
	Describe string `json:"describe"`
	Error    string `json:"error,omitempty"`
}

// FaultRecord is one stored access denial.
type FaultRecord struct {
	Seq     int64  `json:"seq"`
	Session string `json:"session"`
	Op      string `json:"op"`
	Object  string `json:"object"`
	Name    string `json:"name"`
	Code    string `json:"code"`
}

// WriteOutcome stamps and inserts an outcome, returning its seq.
func (s *Store) WriteOutcome(ctx context.Context, session, moduleID string, o module.Outcome) (int64, error) {
	value := sql.NullString{}
	if o.Value != nil {
		if data, err := ir.MarshalCanonical(o.Value); err == nil {
			value = sql.NullString{String: string(data), Valid: true}
		}
	}
	errText := ""
	if o.Err != nil {
		errText = o.Err.Error()
	}

	seq := s.clock.Next()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (seq, session, module_id, success, value, describe, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		seq,
		session,
		moduleID,
		o.Success,
		value,
		ir.Describe(o.Value),
		errText,
	)
	if err != nil {
		return 0, fmt.Errorf("write outcome: %w", err)
	}
	return seq, nil
}

// WriteFault stamps and inserts a denial under the store's session,
// returning its seq.
func (s *Store) WriteFault(ctx context.Context, f membrane.Fault) (int64, error) {
	seq := s.clock.Next()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO faults (seq, session, op, object, name, code)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		seq,
		s.session,
		string(f.Op),
		f.Object,
		f.Name,
		string(f.Code),
	)
	if err != nil {
		return 0, fmt.Errorf("write fault: %w", err)
	}
	return seq, nil
}

// ObserveOutcome implements module.OutcomeObserver.
func (s *Store) ObserveOutcome(session, moduleID string, o module.Outcome) {
	if _, err := s.WriteOutcome(context.Background(), session, moduleID, o); err != nil {
		s.observeFailed(err)
	}
}

// ObserveFault implements membrane.FaultObserver.
func (s *Store) ObserveFault(f membrane.Fault) {
	if _, err := s.WriteFault(context.Background(), f); err != nil {
		s.observeFailed(err)
	}
}

var (
	_ membrane.FaultObserver = (*Store)(nil)
	_ module.OutcomeObserver = (*Store)(nil)
)

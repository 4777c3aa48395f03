package search

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zulandar/almanac/internal/errs"
)

// Index operations named in failures.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// Failure is one index call that did not complete.
type Failure struct {
	Ref Ref
	Op  string
	Err error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Op, f.Ref, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Report is the secondary outcome of a store mutation: the index calls that
// failed after the mutation itself succeeded. The zero value means every
// index call succeeded.
type Report struct {
	Failures []Failure
}

// OK reports whether every index call succeeded.
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// Merge returns r with the failures of o appended.
func (r Report) Merge(o Report) Report {
	if len(o.Failures) == 0 {
		return r
	}
	out := Report{Failures: make([]Failure, 0, len(r.Failures)+len(o.Failures))}
	out.Failures = append(out.Failures, r.Failures...)
	out.Failures = append(out.Failures, o.Failures...)
	return out
}

// Err joins the failures into one error, or returns nil.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	list := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		list[i] = f
	}
	return errors.Join(list...)
}

// Warnings renders each failure as a message.
func (r Report) Warnings() []string {
	out := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Error()
	}
	return out
}

// Reporter receives index failures for logging, metrics and later replay.
type Reporter interface {
	ReportFailure(ctx context.Context, f Failure)
}

// Synchronizer projects entities into documents and writes them to an
// Index. Calls must only be made after the store mutation they mirror has
// committed, so a failure leaves the index stale rather than ahead of the
// store.
type Synchronizer struct {
	index    Index
	reporter Reporter
}

// NewSynchronizer returns a Synchronizer over index. A nil reporter logs
// failures with the standard logger.
func NewSynchronizer(index Index, reporter Reporter) *Synchronizer {
	return &Synchronizer{index: index, reporter: reporter}
}

// Index upserts the document for e. Repeated calls overwrite.
// A nil entity is reported as an invalid-argument failure without touching
// the index.
func (s *Synchronizer) Index(ctx context.Context, e Entity) Report {
	if e == nil {
		err := fmt.Errorf("search: entity is required: %w", errs.ErrInvalidArgument)
		log.Printf("search: index: %v", err)
		return Report{Failures: []Failure{{Op: OpUpsert, Err: err}}}
	}
	if err := s.index.Upsert(ctx, Project(e)); err != nil {
		return s.fail(ctx, e.Ref(), OpUpsert, err)
	}
	return Report{}
}

// Remove deletes the document for ref. A missing document is not a failure.
func (s *Synchronizer) Remove(ctx context.Context, ref Ref) Report {
	if err := s.index.Delete(ctx, ref); err != nil {
		return s.fail(ctx, ref, OpDelete, err)
	}
	return Report{}
}

// Search runs q against the index.
func (s *Synchronizer) Search(ctx context.Context, q Query) ([]Document, error) {
	return s.index.Search(ctx, q)
}

// Backend returns the underlying index.
func (s *Synchronizer) Backend() Index {
	return s.index
}

func (s *Synchronizer) fail(ctx context.Context, ref Ref, op string, err error) Report {
	f := Failure{Ref: ref, Op: op, Err: fmt.Errorf("%w: %w", errs.ErrIndexUnavailable, err)}
	if s.reporter != nil {
		s.reporter.ReportFailure(ctx, f)
	} else {
		log.Printf("search: %v", f)
	}
	return Report{Failures: []Failure{f}}
}

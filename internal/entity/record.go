package entity

import (
	"fmt"
)

// FailureKind classifies why a document produced no record.
type FailureKind string

const (
	FailureGeneration FailureKind = "generation"
	FailureParse      FailureKind = "parse"
)

// Record is one validated extraction result. Values hold string, decimal.Decimal or
// bool; absent optional fields have no key.
type Record struct {
	FileName string         `json:"file_name"`
	Values   map[string]any `json:"values"`
	Attempts int            `json:"attempts"` // round trips it took; 0 if unknown
}

// Get returns the value for field and whether it is present.
func (r *Record) Get(field string) (any, bool) {
	if r == nil || r.Values == nil {
		return nil, false
	}
	v, ok := r.Values[field]
	return v, ok
}

// Failure describes a document whose extraction was abandoned.
type Failure struct {
	FileName string      `json:"file_name"`
	Kind     FailureKind `json:"kind"`
	Attempts int         `json:"attempts"`
	Cause    error       `json:"-"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure for %s after %d attempt(s): %v", f.Kind, f.FileName, f.Attempts, f.Cause)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Result carries exactly one of Record or Failure.
type Result struct {
	Record  *Record
	Failure *Failure
}

func (r Result) IsFailure() bool {
	return r.Failure != nil
}

// FileName returns the identifier of whichever side is set.
func (r Result) FileName() string {
	if r.Failure != nil {
		return r.Failure.FileName
	}
	if r.Record != nil {
		return r.Record.FileName
	}
	return ""
}

func NewRecordResult(rec *Record) Result {
	return Result{Record: rec}
}

func NewFailureResult(f *Failure) Result {
	return Result{Failure: f}
}

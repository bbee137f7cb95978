package dispatch

import (
	"errors"
	"fmt"
)

// Code is the stable, caller-visible classification of a workflow failure.
// An API gateway decides from the code alone whether retrying the whole
// workflow is safe.
type Code string

const (
	// CodeAccountNotFound means the requesting account does not exist.
	// Nothing was committed.
	CodeAccountNotFound Code = "account_not_found"
	// CodeDeliveryRejected means the delivery service refused the record.
	CodeDeliveryRejected Code = "delivery_rejected"
	// CodePackageRejected means the package service refused the parcel.
	CodePackageRejected Code = "package_rejected"
	// CodeTransportUnavailable means transport booking stayed unavailable
	// through the retry budget.
	CodeTransportUnavailable Code = "transport_unavailable"
	// CodeSagaCompensated means the workflow failed mid-saga and every
	// committed step was rolled back cleanly.
	CodeSagaCompensated Code = "saga_compensated"
	// CodeDeliveryNotFound means the referenced delivery does not exist.
	CodeDeliveryNotFound Code = "delivery_not_found"
	// CodeInvalidState means the delivery is not in a status eligible for
	// the requested operation.
	CodeInvalidState Code = "invalid_state"
	// CodeSagaFatal means the workflow failed and rollback could not fully
	// complete; reconciliation alerts were raised for the remainder.
	CodeSagaFatal Code = "saga_fatal"
)

// WorkflowError is the failure a facade operation returns. Compensated
// reports whether every committed step was undone; when false on a mid-saga
// failure, manual reconciliation is pending.
type WorkflowError struct {
	Code        Code
	Workflow    string
	Step        string
	Compensated bool
	Err         error
}

// Error implements the error interface.
func (e *WorkflowError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s at step %s: %v", e.Workflow, e.Code, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Workflow, e.Code, e.Err)
}

// Unwrap exposes the triggering cause.
func (e *WorkflowError) Unwrap() error { return e.Err }

// CodeOf extracts the workflow error code; CodeSagaFatal for any other
// non-nil error.
func CodeOf(err error) Code {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.Code
	}
	return CodeSagaFatal
}

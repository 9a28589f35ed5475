package telemetry

import (
	"fmt"
	"time"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
	werrors "github.com/wrale/wrale-lexdesk/internal/lexd/errors"
)

const opValidate = "telemetry.validate"

var epoch = time.Unix(0, 0)

// ValidateBatch checks the wire-level invariants of a batch: every record
// names its session, timestamps are not before the epoch and enum fields
// hold known values.
func ValidateBatch(batch *v1alpha1.AnalyticsBatch) error {
	if batch == nil {
		return werrors.Invalid(opValidate, "batch is required")
	}
	if n := batch.Len(); n > MaxBatchRecords {
		return werrors.NewError("TOO_LARGE",
			fmt.Sprintf("batch carries %d records, limit is %d", n, MaxBatchRecords),
			opValidate, werrors.ErrTooLarge)
	}

	if s := batch.Session; s != nil {
		if s.SessionID == "" {
			return werrors.Invalid(opValidate, "session: sessionId is required")
		}
		if s.StartTime < 0 || s.EndTime < 0 {
			return werrors.Invalid(opValidate, "session: negative timestamp")
		}
		if s.EndTime != 0 && s.EndTime < s.StartTime {
			return werrors.Invalid(opValidate, "session: endTime before startTime")
		}
		if s.PageViews < 0 || s.EventsCount < 0 || s.ErrorsCount < 0 {
			return werrors.Invalid(opValidate, "session: negative counter")
		}
	}

	for i, e := range batch.Events {
		if err := validateIdentity(CategoryEvents, i, e.EventIdentity); err != nil {
			return err
		}
		if e.EventType == "" || e.EventName == "" {
			return werrors.Invalid(opValidate, "events[%d]: eventType and eventName are required", i)
		}
	}
	for i, p := range batch.Performance {
		if err := validateIdentity(CategoryPerformance, i, p.EventIdentity); err != nil {
			return err
		}
	}
	for i, e := range batch.Errors {
		if err := validateIdentity(CategoryErrors, i, e.EventIdentity); err != nil {
			return err
		}
		if !e.ErrorType.Valid() {
			return werrors.Invalid(opValidate, "errors[%d]: unknown errorType %q", i, e.ErrorType)
		}
	}
	for i, in := range batch.Interactions {
		if err := validateIdentity(CategoryInteractions, i, in.EventIdentity); err != nil {
			return err
		}
		if !in.InteractionType.Valid() {
			return werrors.Invalid(opValidate, "interactions[%d]: unknown interactionType %q", i, in.InteractionType)
		}
	}

	return nil
}

func validateIdentity(category string, i int, id v1alpha1.EventIdentity) error {
	if id.SessionID == "" {
		return werrors.Invalid(opValidate, "%s[%d]: sessionId is required", category, i)
	}
	if id.Timestamp.IsZero() || id.Timestamp.Before(epoch) {
		return werrors.Invalid(opValidate, "%s[%d]: invalid timestamp", category, i)
	}
	return nil
}

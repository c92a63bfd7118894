package engine

import (
	"context"

	"github.com/septivank/city-signals/internal/auth"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/errs"
	"github.com/septivank/city-signals/internal/store"
	"go.uber.org/zap"
)

func dedupApplies(draft *db.Signal, _ auth.Actor) bool {
	return isWasteReport(draft) &&
		draft.ReporterUniqueID != "" &&
		draft.ReferenceID() != ""
}

// checkDuplicate rejects a second open report from the same reporter
// against the same container.
func (e *Engine) checkDuplicate(ctx context.Context, draft *db.Signal, _ *Prepared) error {
	existing, err := FindOpenReport(ctx, e.store, draft.ReporterUniqueID, draft.ReferenceID())
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	e.logger.Warn("duplicate signal attempt",
		zap.String("reporter_unique_id", draft.ReporterUniqueID),
		zap.String("reference_id", draft.ReferenceID()),
		zap.String("existing_signal_id", existing.ID.String()),
	)
	return errs.Duplicate(existing.ID.String())
}

// FindOpenReport returns the reporter's non-terminal waste report against
// the container, or nil when there is none.
func FindOpenReport(ctx context.Context, st store.Store, reporterUniqueID, referenceID string) (*db.Signal, error) {
	page, err := st.FindSignals(ctx, store.SignalFilter{
		ReporterUniqueID: reporterUniqueID,
		ReferenceID:      referenceID,
		Category:         db.CategoryWasteContainer,
		StatusNotIn:      db.TerminalSignalStatuses,
	}, store.Pagination{Page: 1, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Docs) == 0 {
		return nil, nil
	}
	return &page.Docs[0], nil
}

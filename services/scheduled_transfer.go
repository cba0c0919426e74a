package services

import (
	"context"
	"errors"
	"log"

	"franchise-dispatch-api/models"

	"gorm.io/datatypes"
)

const TransferSweepName = "scheduled_transfer"

// TransferSweep dispatches cases whose scheduled redelivery is due.
//
// Each slot is claimed by clearing the schedule with a compare-and-set before
// dispatching, so a slot gets at most one attempt even when sweeps overlap.
// Dispatch failures are logged and left for manual follow-up.
type TransferSweep struct {
	store      Store
	dispatcher *Dispatcher
	clock      Clock
}

func NewTransferSweep(store Store, dispatcher *Dispatcher, clock Clock) *TransferSweep {
	if dispatcher == nil {
		dispatcher = NewDispatcher(store, nil, clock)
	}
	return &TransferSweep{store: store, dispatcher: dispatcher, clock: clock}
}

func (t *TransferSweep) Name() string { return TransferSweepName }

func (t *TransferSweep) Sweep(ctx context.Context, summary *SweepSummary) error {
	due, err := t.store.ListCasesDueForRedelivery(ctx, t.clock.now())
	if err != nil {
		return err
	}
	summary.Scanned = len(due)

	for i := range due {
		c := &due[i]
		payload := c.RedeliveryPayload.Data()
		slot := *c.RedeliverAt

		c.RedeliverAt = nil
		c.RedeliveryPayload = datatypes.NewJSONType(models.RedeliveryPayload{})
		if err := t.store.UpdateCase(ctx, c); err != nil {
			if errors.Is(err, ErrConflict) {
				log.Printf("scheduled transfer: case %s slot %s claimed elsewhere, skipping", c.CaseID, slot.Format("2006-01-02 15:04"))
				continue
			}
			return err
		}

		if c.Archived {
			log.Printf("scheduled transfer: case %s is archived, dropped slot %s", c.CaseID, slot.Format("2006-01-02 15:04"))
			summary.Failed++
			continue
		}
		created, err := t.dispatcher.Dispatch(ctx, c.CaseID, payload.MerchantIDs)
		if err != nil {
			summary.Failed++
			log.Printf("scheduled transfer: case %s dispatched to %d of %d merchant(s): %v",
				c.CaseID, len(created), len(payload.MerchantIDs), err)
			continue
		}
		summary.Processed++
		log.Printf("scheduled transfer: case %s dispatched to %d merchant(s)", c.CaseID, len(created))
	}
	return nil
}

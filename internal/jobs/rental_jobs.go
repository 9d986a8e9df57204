package jobs

import (
	"context"

	"musicstore-backend/internal/logger"
)

// MarkOverdueRentals moves active rentals past their end date to overdue
func (jr *JobRunner) MarkOverdueRentals() {
	_ = jr.markOverdueRentals()
}

func (jr *JobRunner) markOverdueRentals() error {
	return jr.runWithRecovery(JobMarkOverdueRentals, func(ctx context.Context) error {
		count, err := jr.services.Rental.MarkOverdue(ctx)
		if err != nil {
			return err
		}
		logger.Info("Marked rentals as overdue", "count", count)
		return nil
	})
}

// SendOverdueReminders emails every customer holding an overdue rental
func (jr *JobRunner) SendOverdueReminders() {
	_ = jr.sendOverdueReminders()
}

func (jr *JobRunner) sendOverdueReminders() error {
	return jr.runWithRecovery(JobSendOverdueReminders, func(ctx context.Context) error {
		sent, err := jr.services.Rental.RemindOverdue(ctx)
		if err != nil {
			return err
		}
		logger.Info("Sent overdue reminders", "count", sent)
		return nil
	})
}

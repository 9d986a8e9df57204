package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/metrics"
	"musicstore-backend/internal/utils"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// mailSender is the part of the SendGrid client the email service needs
type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type emailService struct {
	client    mailSender
	breaker   *metrics.CircuitBreaker
	fromEmail string
	fromName  string
}

func NewEmailService(apiKey, fromEmail, fromName string) EmailService {
	return newEmailService(sendgrid.NewSendClient(apiKey), fromEmail, fromName)
}

func newEmailService(client mailSender, fromEmail, fromName string) *emailService {
	return &emailService{
		client:    client,
		breaker:   metrics.NewCircuitBreaker("sendgrid", time.Minute),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *emailService) SendRentalConfirmation(ctx context.Context, to string, rental *domain.Rental) error {
	subject := fmt.Sprintf("Rental request %s received", rental.RentalNumber)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nWe received your rental request %s for %s to %s.\n\n",
		rental.RentalNumber, utils.FormatDate(rental.RentalPeriod.StartDate), utils.FormatDate(rental.RentalPeriod.EndDate))
	writeLines(&b, rental)
	fmt.Fprintf(&b, "\nTotal: %s\n", rental.Pricing.TotalAmount.StringFixed(2))
	if rental.Delivery.Required {
		fmt.Fprintf(&b, "Delivery to: %s\n", rental.Delivery.Address)
	}
	b.WriteString("\nWe will let you know as soon as the reservation is confirmed.\n\nBest regards,\nThe Music Store Team")

	return s.send(ctx, to, subject, b.String())
}

func (s *emailService) SendRentalStatusUpdate(ctx context.Context, to string, rental *domain.Rental, previous domain.RentalStatus) error {
	subject := fmt.Sprintf("Rental %s is now %s", rental.RentalNumber, rental.Status)
	body := fmt.Sprintf("Hello,\n\nThe status of your rental %s changed from %s to %s.", rental.RentalNumber, previous, rental.Status)
	if n := len(rental.StatusHistory); n > 0 && rental.StatusHistory[n-1].Note != "" {
		body += fmt.Sprintf("\n\nNote: %s", rental.StatusHistory[n-1].Note)
	}
	body += "\n\nBest regards,\nThe Music Store Team"

	return s.send(ctx, to, subject, body)
}

func (s *emailService) SendOverdueReminder(ctx context.Context, to string, rental *domain.Rental) error {
	subject := fmt.Sprintf("Rental %s is overdue", rental.RentalNumber)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nYour rental %s was due back on %s. Please return the following equipment as soon as possible:\n\n",
		rental.RentalNumber, utils.FormatDate(rental.RentalPeriod.EndDate))
	writeLines(&b, rental)
	b.WriteString("\nLate returns may be subject to additional fees.\n\nBest regards,\nThe Music Store Team")

	return s.send(ctx, to, subject, b.String())
}

func (s *emailService) send(ctx context.Context, to, subject, body string) error {
	logger.ExternalServiceCall("sendgrid", "send", "to", to, "subject", subject)

	message := mail.NewSingleEmail(mail.NewEmail(s.fromName, s.fromEmail), subject, mail.NewEmail("", to), body, "")
	err := s.breaker.Do(func() error {
		response, err := s.client.SendWithContext(ctx, message)
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		if response.StatusCode >= 400 {
			return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		}
		return nil
	})

	logger.ExternalServiceResult("sendgrid", "send", err, "to", to)
	return err
}

func writeLines(b *strings.Builder, rental *domain.Rental) {
	for _, line := range rental.Equipment {
		name := line.ProductName
		if name == "" {
			name = line.ProductID
		}
		fmt.Fprintf(b, "  - %d x %s (%s/day)\n", line.Quantity, name, line.DailyRate.StringFixed(2))
	}
}

// logEmailService only logs outgoing mail; used when no SendGrid key is configured
type logEmailService struct{}

func NewLogEmailService() EmailService {
	return &logEmailService{}
}

func (s *logEmailService) SendRentalConfirmation(ctx context.Context, to string, rental *domain.Rental) error {
	logger.InfoContext(ctx, "Email skipped: rental confirmation", "to", to, "rentalNumber", rental.RentalNumber)
	return nil
}

func (s *logEmailService) SendRentalStatusUpdate(ctx context.Context, to string, rental *domain.Rental, previous domain.RentalStatus) error {
	logger.InfoContext(ctx, "Email skipped: status update", "to", to, "rentalNumber", rental.RentalNumber, "previous", previous, "status", rental.Status)
	return nil
}

func (s *logEmailService) SendOverdueReminder(ctx context.Context, to string, rental *domain.Rental) error {
	logger.InfoContext(ctx, "Email skipped: overdue reminder", "to", to, "rentalNumber", rental.RentalNumber)
	return nil
}

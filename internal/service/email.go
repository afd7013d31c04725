package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type emailService struct {
	apiKey    string
	fromEmail string
	fromName  string
	opsEmail  string
}

func NewEmailService(apiKey, fromEmail, fromName, opsEmail string) EmailService {
	return &emailService{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		opsEmail:  opsEmail,
	}
}

func (s *emailService) send(to, toName, subject, plainText string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(toName, to)
	message := mail.NewSingleEmail(from, subject, recipient, plainText, "")

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

func (s *emailService) SendPaymentLinkNotification(ctx context.Context, chefEmail, chefName string, amountCents int32, paymentLink string) error {
	body := fmt.Sprintf("Hello %s,\n\nWe were unable to charge your card on file for an outstanding storage overstay penalty of %s.\n\nPlease settle the balance using this link:\n\n%s\n\nBest regards,\nThe KitchenHub Team",
		chefName, formatCents(amountCents), paymentLink)
	return s.send(chefEmail, chefName, "Action Required: Storage Overstay Penalty Payment", body)
}

func (s *emailService) SendChargeReceiptNotification(ctx context.Context, chefEmail, chefName string, amountCents int32, reference string) error {
	body := fmt.Sprintf("Hello %s,\n\nA storage overstay penalty of %s was charged to your card on file.\n\nTransaction reference: %s\n\nBest regards,\nThe KitchenHub Team",
		chefName, formatCents(amountCents), reference)
	return s.send(chefEmail, chefName, "Receipt: Storage Overstay Penalty", body)
}

func (s *emailService) SendCaseClosedNotification(ctx context.Context, chefEmail, chefName, outcome string) error {
	body := fmt.Sprintf("Hello %s,\n\nYour storage overstay case has been closed: %s.\n\nNo further action is needed.\n\nBest regards,\nThe KitchenHub Team",
		chefName, outcome)
	return s.send(chefEmail, chefName, "Storage Overstay Case Closed", body)
}

func (s *emailService) SendOpsEscalationAlert(ctx context.Context, overstayID string, storageBookingID int32, amountCents int32, failureReason string) error {
	body := fmt.Sprintf("Overstay %s (booking %d) has been escalated for manual collection.\n\nOutstanding amount: %s\nLast failure: %s\n\nReview it in the manager dashboard.",
		overstayID, storageBookingID, formatCents(amountCents), failureReason)
	return s.send(s.opsEmail, "Operations", fmt.Sprintf("Escalated overstay %s", overstayID), body)
}

package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/leadmarket/leadnotify/internal/domain"
	"github.com/leadmarket/leadnotify/internal/repository"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// EmailSender is the transactional email port, satisfied by the Resend client.
type EmailSender interface {
	Send(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type resendSender struct {
	client *resend.Client
}

func (s *resendSender) Send(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	return s.client.Emails.SendWithContext(ctx, params)
}

// NewResendSender wraps a Resend API key in the EmailSender port.
func NewResendSender(apiKey string) EmailSender {
	return &resendSender{client: resend.NewClient(apiKey)}
}

// FanoutResult summarizes one batched notification send.
type FanoutResult struct {
	EmailID    string `json:"emailId,omitempty"`
	Recipients int    `json:"recipients"`
}

// BuyerMailer is the body of the email function: it resolves the lead,
// selects eligible buyers, and makes a single batched provider call. Retry
// bookkeeping lives above this layer, in the dispatcher's ledger.
type BuyerMailer struct {
	leads  repository.LeadRepository
	buyers repository.BuyerRepository
	sender EmailSender
	from   string
	logger *zap.Logger
}

func NewBuyerMailer(
	leads repository.LeadRepository,
	buyers repository.BuyerRepository,
	sender EmailSender,
	from string,
	logger *zap.Logger,
) (*BuyerMailer, error) {
	if leads == nil {
		return nil, fmt.Errorf("lead repository is required")
	}
	if buyers == nil {
		return nil, fmt.Errorf("buyer repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("email sender is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("from address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BuyerMailer{
		leads:  leads,
		buyers: buyers,
		sender: sender,
		from:   strings.TrimSpace(from),
		logger: logger,
	}, nil
}

// NotifyBuyers sends the new-lead email to every eligible buyer in one call.
// Zero eligible buyers is a successful no-op, not an error.
func (m *BuyerMailer) NotifyBuyers(ctx context.Context, leadID string) (*FanoutResult, error) {
	if strings.TrimSpace(leadID) == "" {
		return nil, fmt.Errorf("%w: lead id is required", domain.ErrValidation)
	}

	lead, err := m.leads.GetByID(ctx, strings.TrimSpace(leadID))
	if err != nil {
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}

	buyers, err := m.buyers.ListNotifiable(ctx, lead.ServiceType, lead.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to select recipients: %w", err)
	}

	if len(buyers) == 0 {
		m.logger.Info("no eligible buyers for lead",
			zap.String("leadId", lead.ID),
			zap.String("serviceType", lead.ServiceType),
			zap.String("location", lead.Location),
		)
		return &FanoutResult{Recipients: 0}, nil
	}

	recipients := make([]string, 0, len(buyers))
	for _, buyer := range buyers {
		recipients = append(recipients, buyer.Email)
	}

	// Recipients go on Bcc so buyers do not see each other's addresses.
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{m.from},
		Bcc:     recipients,
		Subject: leadSubject(lead),
		Html:    leadBody(lead),
	}

	sent, err := m.sender.Send(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to send lead notification email: %w", err)
	}

	m.logger.Info("lead notification sent",
		zap.String("leadId", lead.ID),
		zap.Int("recipients", len(recipients)),
		zap.String("emailId", sent.Id),
	)

	return &FanoutResult{
		EmailID:    sent.Id,
		Recipients: len(recipients),
	}, nil
}

func leadSubject(lead *domain.Lead) string {
	return fmt.Sprintf("New %s lead in %s", lead.ServiceType, lead.Location)
}

func leadBody(lead *domain.Lead) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(lead.Title)))
	b.WriteString(fmt.Sprintf("<p><strong>Service:</strong> %s<br>", html.EscapeString(lead.ServiceType)))
	b.WriteString(fmt.Sprintf("<strong>Location:</strong> %s<br>", html.EscapeString(lead.Location)))
	b.WriteString(fmt.Sprintf("<strong>Price:</strong> $%.2f</p>", float64(lead.PriceCents)/100))
	if desc := strings.TrimSpace(lead.Description); desc != "" {
		b.WriteString(fmt.Sprintf("<p>%s</p>", html.EscapeString(desc)))
	}
	b.WriteString("<p>Log in to your dashboard to purchase this lead.</p>")
	return b.String()
}

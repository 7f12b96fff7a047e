package email

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"compact-connect-backend/internal/compactconfig"
	apperrors "compact-connect-backend/internal/errors"
)

// JurisdictionReader looks up a jurisdiction's notification settings.
type JurisdictionReader interface {
	GetJurisdiction(ctx context.Context, compact, jurisdiction string) (*compactconfig.Jurisdiction, error)
}

// InvestigationNotifier sends the provider-facing and state-facing
// investigation emails.
type InvestigationNotifier interface {
	SendProviderNotification(ctx context.Context, kind Kind, compact string, recipients []string, vars Variables) error
	SendStateNotification(ctx context.Context, kind Kind, compact, jurisdiction string, vars Variables) error
}

// InvestigationService renders investigation emails and hands them to a Sender.
type InvestigationService struct {
	sender        Sender
	jurisdictions JurisdictionReader
	templates     *Templates
	logger        *zap.Logger
}

func NewInvestigationService(sender Sender, jurisdictions JurisdictionReader, templates *Templates, logger *zap.Logger) *InvestigationService {
	return &InvestigationService{
		sender:        sender,
		jurisdictions: jurisdictions,
		templates:     templates,
		logger:        logger.Named("email"),
	}
}

// SendProviderNotification emails the provider. An empty recipient list is
// an error: the caller only asks when the provider is registered.
func (s *InvestigationService) SendProviderNotification(ctx context.Context, kind Kind, compact string, recipients []string, vars Variables) error {
	if len(recipients) == 0 {
		return apperrors.Validation(apperrors.CodeEmailNoRecipients,
			fmt.Sprintf("No recipients specified for provider %s notification email", kind.describe())).
			WithOperation("SendProviderNotification").
			Build()
	}

	msg, err := s.templates.render(kind, toProvider, compact, vars)
	if err != nil {
		return apperrors.Internal(apperrors.CodeSerialization, "failed to render email").
			WithCause(err).
			Build()
	}
	msg.To = recipients
	return s.sender.Send(ctx, msg)
}

// SendStateNotification emails a jurisdiction's adverse actions contacts.
// A jurisdiction without configuration or without contacts is skipped with
// a warning.
func (s *InvestigationService) SendStateNotification(ctx context.Context, kind Kind, compact, jurisdiction string, vars Variables) error {
	config, err := s.jurisdictions.GetJurisdiction(ctx, compact, jurisdiction)
	if apperrors.IsNotFound(err) {
		s.logger.Warn("No configuration for jurisdiction, skipping state notification",
			zap.String("compact", compact),
			zap.String("jurisdiction", jurisdiction),
			zap.String("kind", string(kind)),
		)
		return nil
	}
	if err != nil {
		return err
	}

	recipients := config.JurisdictionAdverseActionsNotificationEmails
	if len(recipients) == 0 {
		s.logger.Warn("No adverse actions contacts for jurisdiction, skipping state notification",
			zap.String("compact", compact),
			zap.String("jurisdiction", jurisdiction),
			zap.String("kind", string(kind)),
		)
		return nil
	}

	msg, err := s.templates.render(kind, toState, compact, vars)
	if err != nil {
		return apperrors.Internal(apperrors.CodeSerialization, "failed to render email").
			WithCause(err).
			Build()
	}
	msg.To = recipients
	return s.sender.Send(ctx, msg)
}

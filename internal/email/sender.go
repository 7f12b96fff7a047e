// Package email renders and delivers the notification emails sent by the
// investigation listeners.
package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	apperrors "compact-connect-backend/internal/errors"
)

const charset = "UTF-8"

// Message is one rendered email.
type Message struct {
	To       []string
	Subject  string
	HTMLBody string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendEmailAPI is the part of the SESv2 client the sender uses.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends through SESv2 from a single configured address.
type SESSender struct {
	client SendEmailAPI
	from   string
	logger *zap.Logger
}

func NewSESSender(client SendEmailAPI, fromAddress string, logger *zap.Logger) *SESSender {
	return &SESSender{
		client: client,
		from:   fmt.Sprintf("Compact Connect <%s>", fromAddress),
		logger: logger.Named("email"),
	}
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return apperrors.Validation(apperrors.CodeEmailNoRecipients, "no recipients specified").
			WithOperation("SendEmail").
			Build()
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: msg.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String(charset)},
				},
			},
		},
	})
	if err != nil {
		return apperrors.FromAWS(err, apperrors.CodeEmailSendFailed, "SendEmail")
	}

	s.logger.Info("Email sent",
		zap.String("subject", msg.Subject),
		zap.Int("recipients", len(msg.To)),
		zap.String("messageId", aws.ToString(out.MessageId)),
	)
	return nil
}

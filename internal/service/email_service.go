package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"

	"krosswordle/internal/models"
)

// sesAPI is the part of the SES v2 client the email service uses
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     sesAPI
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
}

// NewEmailService creates a new email service. Without a sender address it is disabled and
// every send is skipped.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string) (*EmailService, error) {
	if fromEmail == "" {
		log.Info().Msg("email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info().Str("from", fromEmail).Str("region", awsRegion).Msg("email service enabled")
	return newEmailService(sesv2.NewFromConfig(cfg), fromEmail, fromName, appBaseURL), nil
}

func newEmailService(client sesAPI, fromEmail, fromName, appBaseURL string) *EmailService {
	return &EmailService{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		enabled:    true,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s != nil && s.enabled
}

// SendWinnerEmail congratulates one of the month's top players
func (s *EmailService) SendWinnerEmail(ctx context.Context, toEmail string, winners *models.Winners, rank int) error {
	if !s.IsEnabled() {
		log.Debug().Str("to", toEmail).Msg("skipping winner email (service disabled)")
		return nil
	}

	var name string
	for _, e := range winners.Entries {
		if e.Rank == rank {
			name = e.DisplayName
			break
		}
	}

	subject := fmt.Sprintf("You placed #%d in KrossWordle for %s!", rank, winners.Month)
	prizeLine := ""
	if winners.Prize != "" {
		prizeLine = "This month's prize: " + winners.Prize
	}

	textBody := fmt.Sprintf(`Hi %s,

Congratulations! You finished #%d on the KrossWordle leaderboard for %s.
%s

See the final standings: %s/leaderboard?month=%s

---
This is an automated email from KrossWordle. Please do not reply.
`, name, rank, winners.Month, prizeLine, s.appBaseURL, winners.Month)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<h1>Congratulations, %s!</h1>
	<p>You finished <strong>#%d</strong> on the KrossWordle leaderboard for %s.</p>
	<p>%s</p>
	<p><a href="%s/leaderboard?month=%s">See the final standings</a></p>
	<p style="font-size: 12px; color: #666;">This is an automated email from KrossWordle. Please do not reply.</p>
</body>
</html>
`, html.EscapeString(name), rank, winners.Month, html.EscapeString(prizeLine), s.appBaseURL, winners.Month)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendWinnersSummary sends the month's podium to an administrator
func (s *EmailService) SendWinnersSummary(ctx context.Context, toEmail string, winners *models.Winners) error {
	if !s.IsEnabled() {
		log.Debug().Str("to", toEmail).Msg("skipping winners summary (service disabled)")
		return nil
	}

	var text, rows strings.Builder
	for _, e := range winners.Entries {
		fmt.Fprintf(&text, "#%d %s: %d points, best %ds\n", e.Rank, e.DisplayName, e.TotalScore, e.BestTime)
		fmt.Fprintf(&rows, "<tr><td>#%d</td><td>%s</td><td>%d</td><td>%ds</td></tr>",
			e.Rank, html.EscapeString(e.DisplayName), e.TotalScore, e.BestTime)
	}
	if len(winners.Entries) == 0 {
		text.WriteString("Nobody completed a puzzle this month.\n")
	}

	subject := fmt.Sprintf("KrossWordle winners for %s", winners.Month)
	textBody := fmt.Sprintf("Winners for %s\nPrize: %s\n\n%s", winners.Month, winners.Prize, text.String())
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
	<h1>Winners for %s</h1>
	<p>Prize: %s</p>
	<table>%s</table>
</body>
</html>
`, winners.Month, html.EscapeString(winners.Prize), rows.String())

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	ev := log.Info().Str("to", toEmail).Str("subject", subject)
	if result != nil && result.MessageId != nil {
		ev = ev.Str("message_id", *result.MessageId)
	}
	ev.Msg("email sent")
	return nil
}

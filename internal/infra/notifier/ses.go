package notifier

import (
	"context"
	"fmt"
	"strings"

	"phonemarket/internal/domain/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESのうち使うところだけ
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SES struct {
	client SESAPI
	sender string
}

func NewSES(client SESAPI, sender string) *SES {
	return &SES{client: client, sender: sender}
}

// 静的キーがあればそれを、無ければデフォルトの認証チェーンを使う
func NewSESFromEnv(ctx context.Context, region, accessKeyID, secretAccessKey, sender string) (*SES, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	return NewSES(ses.NewFromConfig(awsCfg), sender), nil
}

func (n *SES) OrderPlaced(ctx context.Context, buyer model.User, order model.Order, items []model.OrderItem) error {
	subject := fmt.Sprintf("Order #%d Confirmation - Thank You for Your Purchase!", order.ID)

	var lines strings.Builder
	for _, it := range items {
		fmt.Fprintf(&lines, "- %s x%d @ %s\n", it.ProductNameSnapshot, it.Quantity, it.Price.StringFixed(2))
	}

	body := fmt.Sprintf(
		"Dear %s,\n\nThank you for your order! Your order #%d has been successfully placed.\n\n"+
			"Order Details:\n%sTotal Amount: %s\n\n"+
			"You can pay for it with MoMo from your orders page.\n\nBest regards,\nPhone Marketplace",
		buyer.Name, order.ID, lines.String(), order.Total.StringFixed(2))

	return n.send(ctx, buyer.Email, subject, body)
}

func (n *SES) PaymentResult(ctx context.Context, buyer model.User, order model.Order) error {
	var subject, body string
	switch order.PaymentStatus {
	case model.PaymentStatusSuccessful:
		subject = fmt.Sprintf("Order #%d - Payment received", order.ID)
		body = fmt.Sprintf("Dear %s,\n\nWe received your MoMo payment of %s for order #%d. The seller is now preparing it.\n\nBest regards,\nPhone Marketplace",
			buyer.Name, order.Total.StringFixed(2), order.ID)
	case model.PaymentStatusFailed:
		subject = fmt.Sprintf("Order #%d - Payment failed", order.ID)
		body = fmt.Sprintf("Dear %s,\n\nYour MoMo payment for order #%d failed and the order was cancelled.\n\nBest regards,\nPhone Marketplace",
			buyer.Name, order.ID)
	default:
		return nil
	}
	return n.send(ctx, buyer.Email, subject, body)
}

func (n *SES) send(ctx context.Context, to, subject, body string) error {
	if n.sender == "" {
		return fmt.Errorf("sender email address is not configured")
	}
	if to == "" {
		return fmt.Errorf("recipient email address is empty")
	}

	input := &ses.SendEmailInput{
		Source: aws.String(n.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(body),
				},
			},
		},
	}

	if _, err := n.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// EventTypeBookingConfirmed tags queue messages for downstream consumers.
const EventTypeBookingConfirmed = "booking.confirmed.v1"

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSNotifier publishes confirmations to an SQS queue (AWS or LocalStack).
type SQSNotifier struct {
	client   sqsAPI
	queueURL string
}

// NewSQSNotifier wraps the provided SQS client.
func NewSQSNotifier(client sqsAPI, queueURL string) *SQSNotifier {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	return &SQSNotifier{client: client, queueURL: queueURL}
}

func (n *SQSNotifier) BookingConfirmed(ctx context.Context, evt BookingConfirmed) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(EventTypeBookingConfirmed)},
			"clinic_id":  {DataType: aws.String("String"), StringValue: aws.String(evt.ClinicID)},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) BookingConfirmed(ctx context.Context, evt BookingConfirmed) error {
	c.calls++
	return c.err
}

func TestSQSNotifierPublishesEvent(t *testing.T) {
	api := &mockSQS{}
	n := NewSQSNotifier(api, "https://sqs.local/000000000000/bookings")

	require.NoError(t, n.BookingConfirmed(context.Background(), confirmedEvent()))
	require.Len(t, api.inputs, 1)

	in := api.inputs[0]
	assert.Equal(t, "https://sqs.local/000000000000/bookings", aws.ToString(in.QueueUrl))
	assert.Equal(t, EventTypeBookingConfirmed, aws.ToString(in.MessageAttributes["event_type"].StringValue))

	var decoded BookingConfirmed
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &decoded))
	assert.Equal(t, confirmedEvent(), decoded)
}

func TestSQSNotifierRejectsIncompleteEvent(t *testing.T) {
	api := &mockSQS{}
	n := NewSQSNotifier(api, "q")
	err := n.BookingConfirmed(context.Background(), BookingConfirmed{ClinicID: "c"})
	assert.Error(t, err)
	assert.Empty(t, api.inputs)
}

func TestSQSNotifierWrapsSendError(t *testing.T) {
	n := NewSQSNotifier(&mockSQS{err: errors.New("boom")}, "q")
	err := n.BookingConfirmed(context.Background(), confirmedEvent())
	assert.ErrorContains(t, err, "boom")
}

func TestNewSQSNotifierPanicsWithoutQueue(t *testing.T) {
	assert.Panics(t, func() { NewSQSNotifier(&mockSQS{}, "") })
}

func TestFanoutDeliversToAllChannels(t *testing.T) {
	ok := &countingNotifier{}
	failing := &countingNotifier{err: errors.New("smtp down")}
	f := Fanout{ok, nil, failing}

	err := f.BookingConfirmed(context.Background(), confirmedEvent())
	assert.ErrorContains(t, err, "smtp down")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, failing.calls)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nil).BookingConfirmed(context.Background(), confirmedEvent()))
}

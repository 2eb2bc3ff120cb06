package uploadstore

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/carlmjohnson/requests"
	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
)

// Notification is the message sent after a batch of uploads was stored.
type Notification struct {
	Objects []Object `json:"objects"`
}

// Notifier announces stored objects.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// SendMessageAPI is the part of the SQS client the notifier uses.
type SendMessageAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSNotifier sends a JSON message per notification to a queue.
type SQSNotifier struct {
	client   SendMessageAPI
	queueURL string
}

// NewSQSNotifier creates a notifier that sends to the queue at queueURL.
func NewSQSNotifier(client SendMessageAPI, queueURL string) *SQSNotifier {
	return &SQSNotifier{client: client, queueURL: queueURL}
}

// Notify sends msg as a single queue message.
func (n *SQSNotifier) Notify(ctx context.Context, msg Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}

	if _, err := n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
	}); err != nil {
		return errors.Wrap(err, "send notification")
	}

	return nil
}

// WebhookNotifier posts notifications as JSON to an URL. Any non-2xx response is an error.
type WebhookNotifier struct {
	url       string
	transport http.RoundTripper
}

// NewWebhookNotifier creates a notifier for url. A nil transport selects http.DefaultTransport.
func NewWebhookNotifier(url string, transport http.RoundTripper) *WebhookNotifier {
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &WebhookNotifier{url: url, transport: transport}
}

// Notify posts msg to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}

	if err := requests.URL(n.url).
		Transport(n.transport).
		Method(http.MethodPost).
		BodyBytes(body).
		ContentType("application/json").
		Fetch(ctx); err != nil {
		return errors.Wrap(err, "post notification")
	}

	return nil
}

var (
	_ Notifier = &SQSNotifier{}
	_ Notifier = &WebhookNotifier{}
)

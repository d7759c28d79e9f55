package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	applogger "SignalDesk/pkg/logger"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Sender is satisfied by *messaging.Client.
type Sender interface {
	Send(ctx context.Context, m *messaging.Message) (string, error)
}

// FCMNotifier pushes signal alerts to a Firebase Cloud Messaging topic.
// Without credentials it only logs.
type FCMNotifier struct {
	sender Sender
	topic  string
	log    *applogger.Logger
}

var _ drepo.Notifier = (*FCMNotifier)(nil)

// NewFCMNotifier initializes the messaging client from a service account
// file. An empty path yields a disabled notifier.
func NewFCMNotifier(ctx context.Context, credentialsFile, topic string, log *applogger.Logger) (*FCMNotifier, error) {
	if log == nil {
		log = applogger.Nop()
	}
	log = log.Component("fcm")
	if credentialsFile == "" {
		log.Warn("no firebase credentials, push alerts disabled")
		return &FCMNotifier{topic: topic, log: log}, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("messaging client: %w", err)
	}
	log.Info("firebase cloud messaging initialized", applogger.String("topic", topic))
	return &FCMNotifier{sender: client, topic: topic, log: log}, nil
}

// NewFCMNotifierWithSender is used when the caller owns the client.
func NewFCMNotifierWithSender(sender Sender, topic string, log *applogger.Logger) *FCMNotifier {
	if log == nil {
		log = applogger.Nop()
	}
	return &FCMNotifier{sender: sender, topic: topic, log: log.Component("fcm")}
}

func (n *FCMNotifier) IsEnabled() bool { return n.sender != nil }

func (n *FCMNotifier) SignalResolved(ctx context.Context, s *models.Signal) error {
	return n.send(ctx, resolvedMessage(n.topic, s))
}

func (n *FCMNotifier) SignalFailed(ctx context.Context, s *models.Signal, reason string) error {
	return n.send(ctx, failedMessage(n.topic, s, reason))
}

func (n *FCMNotifier) send(ctx context.Context, m *messaging.Message) error {
	if n.sender == nil {
		n.log.Info("alert", applogger.String("title", m.Notification.Title), applogger.String("body", m.Notification.Body))
		return nil
	}
	id, err := n.sender.Send(ctx, m)
	if err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	n.log.Debug("alert sent", applogger.String("message_id", id))
	return nil
}

func resolvedMessage(topic string, s *models.Signal) *messaging.Message {
	title := fmt.Sprintf("%s %s %s", strings.ToUpper(string(s.Result)), s.Pair, strings.ToUpper(string(s.Direction)))
	body := fmt.Sprintf("entry %s exit %s (%s%%)",
		formatPrice(s.EntryPrice), formatPrice(s.ExitPrice), strconv.FormatFloat(s.ProfitLoss, 'f', 4, 64))
	return alert(topic, title, body, s, map[string]string{"result": string(s.Result)})
}

func failedMessage(topic string, s *models.Signal, reason string) *messaging.Message {
	title := fmt.Sprintf("FAILED %s %s", s.Pair, strings.ToUpper(string(s.Direction)))
	return alert(topic, title, reason, s, map[string]string{"reason": reason})
}

func alert(topic, title, body string, s *models.Signal, extra map[string]string) *messaging.Message {
	data := map[string]string{
		"signal_id":  s.ID,
		"pair":       s.Pair,
		"direction":  string(s.Direction),
		"entry_time": s.EntryTime.UTC().Format(time.RFC3339),
		"source":     string(s.Source),
	}
	for k, v := range extra {
		data[k] = v
	}
	return &messaging.Message{
		Topic:        topic,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "signal_alerts",
				Priority:  messaging.PriorityHigh,
			},
		},
	}
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

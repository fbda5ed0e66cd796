// Package notify is the push-notification collaborator. Delivery itself is an
// external concern; the core only calls Push opportunistically and never lets
// a failure block or fail the triggering action.
package notify

import (
	"context"
	"log"
)

// Notifier sends a push notification to a set of device tokens.
type Notifier interface {
	Push(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// LogNotifier is the default Notifier: it records the attempt and swallows it.
// Deployments wire a real FCM-backed implementation in its place.
type LogNotifier struct{}

func (LogNotifier) Push(_ context.Context, tokens []string, title, _ string, _ map[string]string) error {
	log.Printf("notify: push %q to %d device(s)", title, len(tokens))
	return nil
}

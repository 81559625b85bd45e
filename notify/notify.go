package notify

import (
	"context"
)

type Type int

const (
	Alarm Type = iota
	Metric
)

func (nt Type) String() string {
	switch nt {
	case Alarm:
		return "Alarm"
	case Metric:
		return "Metric"
	default:
		return "Unknown"
	}
}

type Notification struct {
	Type    Type
	Source  string
	Message string
	Fields  map[string]any
}

// Notifier defines the contract for sending alarms and metrics.
// Implementations MUST be safe for concurrent use by multiple goroutines.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NilNotifier drops every notification. It is used when no backend is
// configured.
type NilNotifier struct{}

func NewNilNotifier() *NilNotifier {
	return &NilNotifier{}
}

func (n *NilNotifier) Send(ctx context.Context, notification Notification) error {
	return nil
}

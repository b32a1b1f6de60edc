package events

import (
	"context"
	"errors"
)

// MultiPublisher fans each event out to several publishers. Every publisher
// is tried; the errors are joined. An empty MultiPublisher discards events.
type MultiPublisher []Publisher

// Publish sends event to every publisher in order.
func (m MultiPublisher) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

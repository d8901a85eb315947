package services

import (
	"context"
	"fmt"
	"log/slog"

	"suiviclient/internal/amqp"
	"suiviclient/internal/core"
)

// Store is the storage surface the service needs.
type Store interface {
	ListAll(ctx context.Context) ([]core.Prestation, error)
	ListByClient(ctx context.Context, clientName string) ([]core.Prestation, error)
	ListClientNames(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, id int64) (core.Prestation, error)
	Insert(ctx context.Context, p core.Prestation) (int64, error)
	Update(ctx context.Context, p core.Prestation) error
	Delete(ctx context.Context, id int64) error
	Close() error
}

// MirrorPublisher publishes mirror messages for the worker.
type MirrorPublisher interface {
	PublishMirror(ctx context.Context, msg *amqp.MirrorMessage) error
	Close() error
}

// PrestationService orchestrates prestation operations across SQLite and
// the mirror queue. Writes hit the database first; publishing the mirror
// message is best effort and never fails the request.
type PrestationService struct {
	store     Store
	publisher MirrorPublisher
}

func NewPrestationService(store Store, publisher MirrorPublisher) *PrestationService {
	return &PrestationService{
		store:     store,
		publisher: publisher,
	}
}

func (s *PrestationService) ListAll(ctx context.Context) ([]core.Prestation, error) {
	return s.store.ListAll(ctx)
}

func (s *PrestationService) ListByClient(ctx context.Context, clientName string) ([]core.Prestation, error) {
	return s.store.ListByClient(ctx, clientName)
}

func (s *PrestationService) ListClientNames(ctx context.Context) ([]string, error) {
	return s.store.ListClientNames(ctx)
}

func (s *PrestationService) GetByID(ctx context.Context, id int64) (core.Prestation, error) {
	return s.store.GetByID(ctx, id)
}

// Create saves a prestation locally and publishes a sync message.
func (s *PrestationService) Create(ctx context.Context, p core.Prestation) (int64, error) {
	id, err := s.store.Insert(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("save prestation: %w", err)
	}

	s.publish(ctx, amqp.NewMirrorSyncMessage(id))
	return id, nil
}

// Update replaces a stored prestation and publishes a sync message.
func (s *PrestationService) Update(ctx context.Context, p core.Prestation) error {
	if err := s.store.Update(ctx, p); err != nil {
		return err
	}

	s.publish(ctx, amqp.NewMirrorSyncMessage(p.ID))
	return nil
}

// Delete removes a prestation locally and publishes a delete message.
func (s *PrestationService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, amqp.NewMirrorDeleteMessage(id))
	return nil
}

func (s *PrestationService) publish(ctx context.Context, msg *amqp.MirrorMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMirror(ctx, msg); err != nil {
		// The prestation is already persisted, the worker's periodic
		// scan will pick it up later.
		slog.ErrorContext(ctx, "Failed to publish mirror message",
			"type", msg.Type, "id", msg.ID, "error", err)
	}
}

// Close closes both storage and the queue connection.
func (s *PrestationService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close prestation service: %v", errs)
	}

	return nil
}

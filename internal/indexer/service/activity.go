package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"tripshare/internal/bookings/events"
	indexererrors "tripshare/internal/indexer/errors"
	"tripshare/internal/indexer/repository"
	apperrors "tripshare/pkg/errors"
	"tripshare/pkg/kafka"
	"tripshare/pkg/logger"
	"tripshare/pkg/model"
)

type ActivityService interface {
	// Handle is the Kafka message handler for booking events.
	Handle(ctx context.Context, msg kafka.Message) error
	Index(ctx context.Context, e events.Event) error
	ListByBooking(ctx context.Context, bookingID uint64, limit int, offset int64) ([]*model.Activity, int64, error)
}

type activityService struct {
	repo repository.ActivityRepository
	log  *logger.Logger
	now  func() time.Time
}

func NewActivityService(repo repository.ActivityRepository, log *logger.Logger) ActivityService {
	return &activityService{
		repo: repo,
		log:  log.Component("activity-indexer"),
		now:  time.Now,
	}
}

func (s *activityService) Handle(ctx context.Context, msg kafka.Message) error {
	e, err := events.Decode(msg)
	if err != nil {
		return err
	}
	return s.Index(ctx, e)
}

func (s *activityService) Index(ctx context.Context, e events.Event) error {
	if e.ID == "" || e.BookingID == 0 {
		return kafka.NewPermanentError("event cannot be indexed",
			fmt.Errorf("%w: id=%q booking=%d", indexererrors.ErrInvalidEvent, e.ID, e.BookingID))
	}

	inserted, err := s.repo.Upsert(ctx, toActivity(e, s.now().UTC()))
	if err != nil {
		if mongo.IsTimeout(err) || mongo.IsNetworkError(err) || errors.Is(err, context.DeadlineExceeded) {
			return kafka.NewTransientError("activity store unavailable", err)
		}
		return err
	}

	if !inserted {
		s.log.Debug("Skipping already indexed event", "event_id", e.ID)
		return nil
	}
	s.log.Info("Indexed booking event",
		"event_id", e.ID,
		"type", string(e.Type),
		"booking_id", e.BookingID,
		"round", e.Round,
	)
	return nil
}

func (s *activityService) ListByBooking(ctx context.Context, bookingID uint64, limit int, offset int64) ([]*model.Activity, int64, error) {
	if bookingID == 0 {
		return nil, 0, apperrors.InvalidInput("Booking ID must be positive")
	}

	var (
		count             int64
		activities        []*model.Activity
		errCount, errFind error
		wg                sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByBooking(ctx, bookingID)
		if errCount != nil {
			s.log.Error("Failed to count activities", "booking_id", bookingID, "error", errCount)
			errCount = apperrors.Internal("Failed to count activities", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		activities, errFind = s.repo.FindByBooking(ctx, bookingID, limit, offset)
		if errFind != nil {
			s.log.Error("Failed to list activities", "booking_id", bookingID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve activities", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return activities, count, nil
}

func toActivity(e events.Event, indexedAt time.Time) *model.Activity {
	return &model.Activity{
		EventID:    e.ID,
		Type:       string(e.Type),
		BookingID:  e.BookingID,
		Actor:      e.Actor,
		BundleID:   e.BundleID,
		Round:      e.Round,
		Amount:     e.Amount,
		Capacity:   e.Capacity,
		Remaining:  e.Remaining,
		Phase:      e.Phase,
		OccurredAt: e.OccurredAt,
		IndexedAt:  indexedAt,
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"timer-tracker/internal/domain"
	"timer-tracker/internal/protocol"
	"timer-tracker/internal/repository"
	"timer-tracker/internal/storage"
)

// ErrExportDisabled is returned when no export storage is configured.
var ErrExportDisabled = errors.New("timer export is not configured")

// Broadcaster pushes a fresh full snapshot to a user's live connections.
type Broadcaster interface {
	NotifyUser(ctx context.Context, userID int64)
}

// TimerReader lists a user's timers annotated as of now.
type TimerReader interface {
	ListTimers(ctx context.Context, userID int64, onlyActive bool) ([]domain.TimerView, error)
}

// TimerService coordinates timer level operations backed by repositories.
type TimerService interface {
	TimerReader
	StartTimer(ctx context.Context, userID int64, description string) (*domain.TimerView, error)
	StopTimer(ctx context.Context, userID, timerID int64) (*domain.TimerView, error)
	DeleteTimer(ctx context.Context, userID, timerID int64) error
	ExportTimers(ctx context.Context, userID int64) (*Export, error)
	ListExports(ctx context.Context, userID int64) ([]storage.ObjectInfo, error)
}

// ExportConfig points timer exports at an object storage bucket. A nil Storage disables exports.
type ExportConfig struct {
	Storage   storage.Service
	Bucket    string
	KeyPrefix string
	URLExpiry time.Duration
}

// Export describes one uploaded export document.
type Export struct {
	Location string
	URL      string
}

type timerReader struct {
	timers repository.TimerRepository
	clock  Clock
}

func NewTimerReader(timers repository.TimerRepository, clock Clock) TimerReader {
	return &timerReader{timers: timers, clock: clock}
}

func (r *timerReader) ListTimers(ctx context.Context, userID int64, onlyActive bool) ([]domain.TimerView, error) {
	timers, err := r.timers.List(ctx, userID, onlyActive)
	if err != nil {
		return nil, err
	}
	return domain.AnnotateAll(timers, r.clock.now()), nil
}

type timerService struct {
	TimerReader
	timers      repository.TimerRepository
	broadcaster Broadcaster
	export      ExportConfig
	clock       Clock
}

func NewTimerService(timers repository.TimerRepository, reader TimerReader, broadcaster Broadcaster, export ExportConfig, clock Clock) TimerService {
	if export.URLExpiry <= 0 {
		export.URLExpiry = 15 * time.Minute
	}
	return &timerService{
		TimerReader: reader,
		timers:      timers,
		broadcaster: broadcaster,
		export:      export,
		clock:       clock,
	}
}

func (s *timerService) StartTimer(ctx context.Context, userID int64, description string) (*domain.TimerView, error) {
	description = strings.TrimSpace(description)
	if err := domain.ValidateDescription(description); err != nil {
		return nil, err
	}

	now := s.clock.now()
	timer := &domain.Timer{
		UserID:      userID,
		Description: description,
		Start:       now,
		CreatedAt:   now,
	}
	if _, err := s.timers.Create(ctx, timer); err != nil {
		return nil, err
	}

	s.notify(ctx, userID)
	view := domain.Annotate(*timer, now)
	return &view, nil
}

func (s *timerService) StopTimer(ctx context.Context, userID, timerID int64) (*domain.TimerView, error) {
	now := s.clock.now()
	timer, err := s.timers.Stop(ctx, userID, timerID, now)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, userID)
	view := domain.Annotate(*timer, now)
	return &view, nil
}

func (s *timerService) DeleteTimer(ctx context.Context, userID, timerID int64) error {
	if err := s.timers.Delete(ctx, userID, timerID); err != nil {
		return err
	}
	s.notify(ctx, userID)
	return nil
}

func (s *timerService) ExportTimers(ctx context.Context, userID int64) (*Export, error) {
	if s.export.Storage == nil || s.export.Bucket == "" {
		return nil, ErrExportDisabled
	}

	views, err := s.ListTimers(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(protocol.FromViews(views))
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	key := fmt.Sprintf("%stimers-%d.json", s.userPrefix(userID), s.clock.now().UnixMilli())
	location, err := s.export.Storage.PutObject(ctx, body, storage.PutOptions{
		Bucket:      s.export.Bucket,
		Key:         key,
		ContentType: "application/json",
	})
	if err != nil {
		return nil, err
	}

	url, err := s.export.Storage.GetObjectURL(ctx, s.export.Bucket, key, s.export.URLExpiry)
	if err != nil {
		// the export itself succeeded; the link is optional
		url = ""
	}
	return &Export{Location: location, URL: url}, nil
}

func (s *timerService) ListExports(ctx context.Context, userID int64) ([]storage.ObjectInfo, error) {
	if s.export.Storage == nil || s.export.Bucket == "" {
		return nil, ErrExportDisabled
	}
	return s.export.Storage.ListObjects(ctx, s.export.Bucket, s.userPrefix(userID))
}

func (s *timerService) userPrefix(userID int64) string {
	prefix := strings.Trim(s.export.KeyPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("user-%d/", userID)
	}
	return fmt.Sprintf("%s/user-%d/", prefix, userID)
}

func (s *timerService) notify(ctx context.Context, userID int64) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.NotifyUser(ctx, userID)
}

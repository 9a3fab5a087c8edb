package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rpattn/medallion-catalog/internal/domain"
)

// Receipt describes a delivered export.
type Receipt struct {
	Filename    string        `json:"filename"`
	Location    string        `json:"location"`
	MIMEType    string        `json:"mimeType"`
	Rows        int           `json:"rows"`
	Bytes       int64         `json:"bytes"`
	DeliveredAt time.Time     `json:"deliveredAt"`
	Duration    time.Duration `json:"duration"`
}

// Service hands encoded exports to a download sink. Exports are one-shot user
// actions; a failed delivery is reported to the caller and never retried.
type Service struct {
	sink   Sink
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithLogger sets the logger used for delivery events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp receipts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService returns a service delivering to sink.
func NewService(sink Sink, opts ...Option) *Service {
	service := &Service{
		sink:   sink,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Deliver sends file to the configured sink.
func (s *Service) Deliver(ctx context.Context, file domain.ExportFile) (Receipt, error) {
	return s.DeliverTo(ctx, s.sink, file)
}

// DeliverTo sends file to an explicit sink, such as a per-request HTTP response.
func (s *Service) DeliverTo(ctx context.Context, sink Sink, file domain.ExportFile) (Receipt, error) {
	if sink == nil {
		return Receipt{}, errors.New("export sink is not configured")
	}
	start := s.now()
	location, err := sink.Deliver(ctx, file)
	if err != nil {
		s.logger.Warn("export delivery failed",
			zap.String("filename", file.Filename),
			zap.Int("rows", file.Rows),
			zap.Error(err))
		return Receipt{}, fmt.Errorf("deliver %s: %w", file.Filename, err)
	}
	finished := s.now()
	receipt := Receipt{
		Filename:    file.Filename,
		Location:    location,
		MIMEType:    file.MIMEType,
		Rows:        file.Rows,
		Bytes:       int64(len(file.Content)),
		DeliveredAt: finished,
		Duration:    finished.Sub(start),
	}
	s.logger.Info("export delivered",
		zap.String("filename", receipt.Filename),
		zap.String("location", receipt.Location),
		zap.Int("rows", receipt.Rows),
		zap.Int64("bytes", receipt.Bytes))
	return receipt, nil
}

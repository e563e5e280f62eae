package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/scantrack/internal/extraction"
	"github.com/zombor/scantrack/internal/scanning"
)

// DefaultMaxUploadBytes is the upload size limit when none is configured
const DefaultMaxUploadBytes = 10 << 20

// defaultListLimit caps listings when the caller gives no limit
const defaultListLimit = 100

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Option configures a Service
type Option func(*Service)

// WithMaxUploadSize sets the largest accepted upload in bytes
func WithMaxUploadSize(n int64) Option {
	return func(s *Service) { s.maxUploadBytes = n }
}

// WithMetrics records processing outcomes on m
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithIDGenerator replaces the UUID generator
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.idGenerator = g }
}

// WithTimeSource replaces the system clock
func WithTimeSource(t TimeSource) Option {
	return func(s *Service) { s.timeSource = t }
}

// Service handles receipt operations
type Service struct {
	db             DB
	recognizer     scanning.Recognizer
	storage        Storage
	pipeline       *extraction.Pipeline
	idGenerator    IDGenerator
	timeSource     TimeSource
	metrics        *Metrics
	maxUploadBytes int64
}

// NewService creates a new Service
func NewService(db DB, recognizer scanning.Recognizer, storage Storage, pipeline *extraction.Pipeline, opts ...Option) *Service {
	s := &Service{
		db:             db,
		recognizer:     recognizer,
		storage:        storage,
		pipeline:       pipeline,
		idGenerator:    uuidGenerator{},
		timeSource:     systemClock{},
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxUploadSize returns the upload size limit in bytes
func (s *Service) MaxUploadSize() int64 {
	return s.maxUploadBytes
}

// ValidateUpload checks the file extension and size
func (s *Service) ValidateUpload(filename string, size int64) error {
	if !scanning.Supported(filename) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(filename))
	}
	if size > s.maxUploadBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, size, s.maxUploadBytes)
	}
	return nil
}

// ProcessReceipt stores an upload, recognizes its text and saves the
// extracted record. The stored file is removed if any later step fails.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Receipt, error) {
	if err := s.ValidateUpload(filename, int64(len(data))); err != nil {
		return nil, err
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(storageKey(id, filename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	record, err := s.pipeline.ProcessResult(s.recognizer.Recognize(ctx, data, contentType))
	if err != nil {
		slog.Error("Failed to recognize receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.metrics.receiptFailed()
		s.discard(savedPath)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	receipt := &Receipt{
		ID:           id,
		Filename:     filename,
		FilePath:     savedPath,
		ContentType:  contentType,
		MerchantName: record.MerchantName,
		PurchaseDate: record.PurchaseDate,
		PurchasedOn:  parsePurchaseDate(record.PurchaseDate),
		RawText:      record.RawText,
		Items:        itemsFromRecord(record.Items),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if record.TotalAmount != nil {
		if cents, ok := toCents(*record.TotalAmount); ok {
			receipt.TotalAmount = &cents
		} else {
			slog.Warn("Ignoring out of range total", "filename", filename, "total", *record.TotalAmount)
		}
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		s.metrics.receiptFailed()
		s.discard(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	s.metrics.receiptProcessed(receipt)
	slog.Info("Processed receipt",
		"id", receipt.ID,
		"filename", filename,
		"items", len(receipt.Items),
		"has_total", receipt.TotalAmount != nil,
	)
	return receipt, nil
}

func (s *Service) discard(path string) {
	if err := s.storage.Delete(path); err != nil {
		slog.Warn("Failed to delete file", "path", path, "error", err)
	}
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns receipts newest first. A limit of zero or less
// falls back to the default page size.
func (s *Service) ListReceipts(skip, limit int) ([]*Receipt, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	receipts, err := s.db.ListReceipts(skip, limit)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// allReceipts returns every receipt, newest first
func (s *Service) allReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts(0, 0)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// UpdateReceipt applies manual corrections to a receipt
func (s *Service) UpdateReceipt(id string, update Update) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt for update: %w", err)
	}

	update.apply(receipt)
	receipt.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	return receipt, nil
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	// A missing file should not keep the record around
	s.discard(receipt.FilePath)

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the uploaded file for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, *Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt, nil
}

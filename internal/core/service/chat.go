package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/internal/storage"
	"github.com/yndnr/chathub-go/internal/storage/memory"
	"github.com/yndnr/chathub-go/internal/telemetry/logger"
)

// DefaultMaxImageBytes caps uploaded image size.
const DefaultMaxImageBytes = 5 << 20

// ChatServiceConfig configures ChatService.
type ChatServiceConfig struct {
	// MaxImageBytes is the largest accepted image upload.
	// Default: 5 MiB
	MaxImageBytes int

	// Timeout bounds every image slot read and write.
	// Default: 10s
	Timeout time.Duration
}

// ChatService posts and reads messages on behalf of authenticated users.
type ChatService struct {
	store    *memory.Store
	accounts *AccountService
	images   *storage.ImageStore
	maxImage int
	timeout  time.Duration
	logger   *slog.Logger
}

// NewChatService creates a new ChatService. images may be nil, in which
// case image uploads are rejected.
func NewChatService(store *memory.Store, accounts *AccountService, images *storage.ImageStore, cfg ChatServiceConfig, log *slog.Logger) *ChatService {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBackupTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{
		store:    store,
		accounts: accounts,
		images:   images,
		maxImage: cfg.MaxImageBytes,
		timeout:  cfg.Timeout,
		logger:   log,
	}
}

// PostRequest contains parameters for Post.
type PostRequest struct {
	Token         string
	Text          string
	Attachment    *domain.Attachment
	SourceAddress string
}

// Post appends a message authored by the session owner.
func (s *ChatService) Post(ctx context.Context, req *PostRequest) (domain.ChatMessage, error) {
	author, err := s.accounts.Authenticate(ctx, req.Token)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	ctx = logger.WithUser(ctx, author)

	res, err := s.store.Log.Append(domain.NewMessage{
		Author:        author,
		Text:          req.Text,
		Attachment:    req.Attachment,
		SourceAddress: req.SourceAddress,
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if res.Trimmed > 0 {
		s.logger.DebugContext(ctx, "message log trimmed", "dropped", res.Trimmed, "policy", s.store.Log.Policy())
	}
	return res.Message, nil
}

// Since returns messages newer than cursor.
func (s *ChatService) Since(ctx context.Context, token string, cursor uint64) (memory.SinceResult, error) {
	if _, err := s.accounts.Authenticate(ctx, token); err != nil {
		return memory.SinceResult{}, err
	}
	return s.store.Log.Since(cursor), nil
}

// UploadRequest contains parameters for UploadImage.
type UploadRequest struct {
	Token         string
	Filename      string
	ContentType   string
	Data          []byte
	Caption       string
	SourceAddress string
}

// UploadResult is returned by UploadImage.
type UploadResult struct {
	ImageID string
	Message domain.ChatMessage
}

// UploadImage stores the image in the image slot and posts a message
// referencing it. Uploading the same bytes twice yields the same id.
func (s *ChatService) UploadImage(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	author, err := s.accounts.Authenticate(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithUser(ctx, author)
	if s.images == nil {
		return nil, domain.ErrImageInvalid.WithDetails("image uploads are disabled")
	}
	if len(req.Data) == 0 {
		return nil, domain.ErrImageInvalid.WithDetails("empty payload")
	}
	if len(req.Data) > s.maxImage {
		return nil, domain.ErrImageTooLarge
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		return nil, domain.ErrImageInvalid.WithDetails("content type must be image/*")
	}

	id := storage.ImageID(req.Data)
	msg := domain.NewMessage{
		Author:        author,
		Text:          req.Caption,
		Attachment:    &domain.Attachment{Kind: domain.AttachmentImage, Reference: id},
		SourceAddress: req.SourceAddress,
	}
	// Reject a bad caption before the image reaches the slot.
	if err := s.store.Log.Validate(msg); err != nil {
		return nil, err
	}

	meta := storage.ImageMeta{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Uploader:    author,
		UploadedAt:  s.store.Now(),
	}
	putCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.images.Put(putCtx, id, req.Data, meta)
	cancel()
	if err != nil {
		return nil, storageError(ctx, s.logger, "store image", err)
	}

	res, err := s.store.Log.Append(msg)
	if err != nil {
		return nil, err
	}
	return &UploadResult{ImageID: id, Message: res.Message}, nil
}

// Image returns a stored image.
func (s *ChatService) Image(ctx context.Context, id string) (storage.Image, error) {
	if s.images == nil {
		return storage.Image{}, domain.ErrImageNotFound
	}
	getCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	img, err := s.images.Get(getCtx, id)
	if err != nil {
		return storage.Image{}, storageError(ctx, s.logger, "load image", err)
	}
	return img, nil
}

// storageError passes domain errors through and wraps everything else as
// ErrStorage after logging it.
func storageError(ctx context.Context, log *slog.Logger, op string, err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	log.WarnContext(ctx, op+" failed", "error", err)
	return domain.ErrStorage.WithCause(err)
}

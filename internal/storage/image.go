package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yndnr/chathub-go/internal/core/domain"
)

// ImageMeta describes an uploaded image.
type ImageMeta struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Uploader    string    `json:"uploader"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Image is an image with its metadata.
type Image struct {
	ID   string
	Data []byte
	ImageMeta
}

// imageRecord is the slot form of one image; Data is base64 in JSON.
type imageRecord struct {
	Data []byte `json:"data"`
	ImageMeta
}

// ImageID returns the content-derived id of data.
func ImageID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ImageStore keeps every image in a single slot as a JSON object keyed by
// image id. Writes are read-modify-write and serialized by the store.
type ImageStore struct {
	slots SlotStore
	key   string

	mu     sync.Mutex
	images map[string]imageRecord // nil until first successful load
}

// NewImageStore returns an image store over slot key of slots.
func NewImageStore(slots SlotStore, key string) *ImageStore {
	return &ImageStore{slots: slots, key: key}
}

// Put stores data under id. id must be ImageID(data). Storing the same
// content again is a no-op.
func (s *ImageStore) Put(ctx context.Context, id string, data []byte, meta ImageMeta) error {
	if len(data) == 0 {
		return domain.ErrImageInvalid.WithDetails("empty payload")
	}
	if id != ImageID(data) {
		return domain.ErrImageInvalid.WithDetails("id does not match content")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	images, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if _, ok := images[id]; ok {
		return nil
	}

	next := make(map[string]imageRecord, len(images)+1)
	for k, v := range images {
		next[k] = v
	}
	next[id] = imageRecord{Data: data, ImageMeta: meta}

	blob, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("storage: marshal images: %w", err)
	}
	if err := s.slots.Put(ctx, s.key, blob); err != nil {
		return err
	}
	s.images = next
	return nil
}

// Get returns the image stored under id, or ErrImageNotFound.
func (s *ImageStore) Get(ctx context.Context, id string) (Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	images, err := s.loadLocked(ctx)
	if err != nil {
		return Image{}, err
	}
	rec, ok := images[id]
	if !ok {
		return Image{}, domain.ErrImageNotFound
	}
	return Image{ID: id, Data: append([]byte(nil), rec.Data...), ImageMeta: rec.ImageMeta}, nil
}

func (s *ImageStore) loadLocked(ctx context.Context) (map[string]imageRecord, error) {
	if s.images != nil {
		return s.images, nil
	}

	blob, err := s.slots.Get(ctx, s.key)
	if errors.Is(err, ErrSlotNotFound) {
		s.images = make(map[string]imageRecord)
		return s.images, nil
	}
	if err != nil {
		return nil, err
	}

	images := make(map[string]imageRecord)
	if err := json.Unmarshal(blob, &images); err != nil {
		return nil, fmt.Errorf("storage: decode image slot: %w", err)
	}
	for id, rec := range images {
		if id != ImageID(rec.Data) {
			return nil, fmt.Errorf("storage: image %s does not match its content", id)
		}
	}
	s.images = images
	return images, nil
}

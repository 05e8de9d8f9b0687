package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Magic bytes identify slot files.
var slotMagic = []byte("CHATSLOT")

const (
	slotFileExtension = ".slot"
	checksumSize      = sha256.Size
	slotHeaderSize    = 8 + 4 // magic + blob length
)

// File format errors.
var (
	ErrInvalidMagic     = errors.New("storage: invalid slot file magic")
	ErrChecksumMismatch = errors.New("storage: slot file checksum mismatch")
)

// FileSlotStore keeps one file per slot:
//
//	magic(8) | length(4, big endian) | blob | sha256(magic|length|blob)
//
// Writes go to a temp file that is synced and renamed over the old one, so
// a reader sees either the previous or the new blob.
type FileSlotStore struct {
	dir string

	mu     sync.Mutex // serializes writers
	closed atomic.Bool
}

// NewFileSlotStore creates dir if needed and returns a store rooted there.
func NewFileSlotStore(dir string) (*FileSlotStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: file dir is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	return &FileSlotStore{dir: dir}, nil
}

// path maps a slot key to a file name that cannot escape dir.
func (f *FileSlotStore) path(key string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(key))
	return filepath.Join(f.dir, name+slotFileExtension)
}

// Get implements SlotStore.
func (f *FileSlotStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.closed.Load() {
		return nil, ErrClosed
	}

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("storage: read slot: %w", err)
	}
	return decodeSlotFile(data)
}

func decodeSlotFile(data []byte) ([]byte, error) {
	if len(data) < slotHeaderSize+checksumSize {
		return nil, ErrChecksumMismatch
	}

	body := data[:len(data)-checksumSize]
	sum := sha256.Sum256(body)
	if !bytes.Equal(sum[:], data[len(data)-checksumSize:]) {
		return nil, ErrChecksumMismatch
	}
	if !bytes.Equal(body[:len(slotMagic)], slotMagic) {
		return nil, ErrInvalidMagic
	}

	n := binary.BigEndian.Uint32(body[len(slotMagic):slotHeaderSize])
	blob := body[slotHeaderSize:]
	if uint32(len(blob)) != n {
		return nil, fmt.Errorf("storage: slot length %d, header says %d", len(blob), n)
	}
	return append([]byte(nil), blob...), nil
}

// Put implements SlotStore.
func (f *FileSlotStore) Put(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed.Load() {
		return ErrClosed
	}

	tmp, err := os.CreateTemp(f.dir, "slot-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	tempPath := tmp.Name()
	defer os.Remove(tempPath)

	hash := sha256.New()
	w := io.MultiWriter(tmp, hash)

	var hdr [slotHeaderSize]byte
	copy(hdr[:], slotMagic)
	binary.BigEndian.PutUint32(hdr[len(slotMagic):], uint32(len(blob)))

	if _, err := w.Write(hdr[:]); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write header: %w", err)
	}
	if _, err := w.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write blob: %w", err)
	}
	// Checksum trailer is not part of the hash.
	if _, err := tmp.Write(hash.Sum(nil)); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write checksum: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	}

	if err := os.Rename(tempPath, f.path(key)); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// Close implements SlotStore.
func (f *FileSlotStore) Close() error {
	f.closed.Store(true)
	return nil
}

package ticketstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const (
	// DescriptorExt names the structured descriptor file of a ticket.
	DescriptorExt = ".ticket"
	// PayloadExt names the compressed document payload of a print ticket.
	PayloadExt = ".payload"

	tempMarker = ".tmp-"
)

func descriptorPath(dir, id string) string {
	return filepath.Join(dir, id+DescriptorExt)
}

func payloadPath(dir, id string) string {
	return filepath.Join(dir, id+PayloadExt)
}

// writeFileAtomic replaces path so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+tempMarker+"*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func isTempFile(name string) bool {
	return strings.Contains(name, tempMarker)
}

// payloadCodec compresses payloads with zstd and digests the raw bytes with
// BLAKE3. DecodeAll is safe for concurrent use; close waits for decodes in
// flight and later decodes fail with ErrStoreClosed.
type payloadCodec struct {
	mu     sync.RWMutex
	closed bool
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

func newPayloadCodec() (*payloadCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &payloadCodec{enc: enc, dec: dec}, nil
}

// compress is only called under the store mutex, which Shutdown also holds.
func (c *payloadCodec) compress(raw []byte) []byte {
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

func (c *payloadCodec) decompress(stored []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrStoreClosed
	}
	return c.dec.DecodeAll(stored, nil)
}

func (c *payloadCodec) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.enc.Close()
	c.dec.Close()
}

func payloadDigest(raw []byte) string {
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

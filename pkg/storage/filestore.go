package storage

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tokenlab/tokencore/pkg/domain"
)

// FileStore is a domain.KVStore persisted as a single msgpack+lz4 snapshot
// file. The full key set lives in memory; every successful write rewrites
// the snapshot, so a write error surfaces synchronously and the transaction
// manager can roll back.
type FileStore struct {
	mu   sync.RWMutex
	path string
	data map[string]interface{}

	logger zerolog.Logger
}

// NewFileStore opens (or creates) a file-backed store at path. An existing
// snapshot is loaded eagerly; a missing file starts empty.
func NewFileStore(path string, logger zerolog.Logger) (*FileStore, error) {
	fs := &FileStore{
		path:   path,
		data:   make(map[string]interface{}),
		logger: logger,
	}
	if err := fs.load(); err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", path, err)
	}
	return fs, nil
}

// Get implements domain.KVStore.
func (fs *FileStore) Get(key string) (interface{}, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	value, exists := fs.data[key]
	return value, exists
}

// Set implements domain.KVStore. The in-memory map is only mutated after
// the snapshot write succeeds.
func (fs *FileStore) Set(key string, value interface{}) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	previous, hadPrevious := fs.data[key]
	fs.data[key] = value
	if err := fs.persist(); err != nil {
		if hadPrevious {
			fs.data[key] = previous
		} else {
			delete(fs.data, key)
		}
		return err
	}
	return nil
}

// Delete implements domain.KVStore.
func (fs *FileStore) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	previous, hadPrevious := fs.data[key]
	if !hadPrevious {
		return nil
	}
	delete(fs.data, key)
	if err := fs.persist(); err != nil {
		fs.data[key] = previous
		return err
	}
	return nil
}

// Keys implements domain.KVStore.
func (fs *FileStore) Keys() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	keys := make([]string, 0, len(fs.data))
	for key := range fs.data {
		keys = append(keys, key)
	}
	return keys
}

// Clear implements domain.KVStore.
func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	previous := fs.data
	fs.data = make(map[string]interface{})
	if err := fs.persist(); err != nil {
		fs.data = previous
		return err
	}
	return nil
}

// Flush rewrites the snapshot from current memory state.
func (fs *FileStore) Flush() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.persist()
}

// persist writes the snapshot to a temp file and renames it into place so a
// crash mid-write never truncates the previous snapshot. Caller must hold
// fs.mu.
func (fs *FileStore) persist() error {
	snap := snapshot{
		Entries: fs.data,
		Metadata: map[string]interface{}{
			"saved_at": time.Now().Format(time.RFC3339Nano),
		},
	}

	encoded, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(encoded)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(encoded, compressed, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	if n == 0 {
		// Incompressible payload; store it raw with a zero marker handled
		// by uncompressedSize on load.
		compressed = encoded
	} else {
		compressed = compressed[:n]
	}

	tmpPath := fs.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := WriteHeader(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writeBlock(file, uint32(len(encoded)), compressed); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// load reads the snapshot file into memory. A missing file is not an error.
func (fs *FileStore) load() error {
	file, err := os.Open(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := ReadHeader(file); err != nil {
		return fmt.Errorf("invalid file header: %w", err)
	}

	rawSize, compressed, err := readBlock(file)
	if err != nil {
		return err
	}

	var encoded []byte
	if int(rawSize) == len(compressed) {
		encoded = compressed
	} else {
		encoded = make([]byte, rawSize)
		n, err := lz4.UncompressBlock(compressed, encoded)
		if err != nil {
			return fmt.Errorf("failed to decompress data: %w", err)
		}
		encoded = encoded[:n]
	}

	var snap snapshot
	if err := msgpack.Unmarshal(encoded, &snap); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	if snap.Entries != nil {
		fs.data = snap.Entries
	}
	fs.logger.Info().Str("path", fs.path).Int("keys", len(fs.data)).Msg("loaded snapshot")
	return nil
}

// writeBlock writes the uncompressed size followed by the block payload.
func writeBlock(w io.Writer, rawSize uint32, payload []byte) error {
	var sizeBuf [4]byte
	sizeBuf[0] = byte(rawSize)
	sizeBuf[1] = byte(rawSize >> 8)
	sizeBuf[2] = byte(rawSize >> 16)
	sizeBuf[3] = byte(rawSize >> 24)
	if _, err := w.Write(sizeBuf[:]); err != nil {
		return fmt.Errorf("failed to write block size: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write compressed data: %w", err)
	}
	return nil
}

// readBlock reads the uncompressed size and the remaining block payload.
func readBlock(r io.Reader) (uint32, []byte, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("failed to read block size: %w", err)
	}
	rawSize := uint32(sizeBuf[0]) | uint32(sizeBuf[1])<<8 | uint32(sizeBuf[2])<<16 | uint32(sizeBuf[3])<<24

	payload, err := io.ReadAll(r)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read compressed data: %w", err)
	}
	return rawSize, payload, nil
}

var _ domain.KVStore = (*FileStore)(nil)

package storage

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// Magic bytes identifying a tokencore data file
	MagicBytes = "TKDB"
	// Current version
	FormatVersion = 1
	// File extension for the snapshot format
	FileExtension = ".tkdb"
)

// FileHeader is the fixed header at the start of every snapshot file.
type FileHeader struct {
	Magic    [4]byte // "TKDB"
	Version  uint8   // Format version
	Flags    uint8   // Reserved for future use
	Reserved [2]byte // Reserved for future use
}

// WriteHeader writes the file header to the given writer.
func WriteHeader(w io.Writer) error {
	header := FileHeader{
		Magic:   [4]byte{'T', 'K', 'D', 'B'},
		Version: FormatVersion,
	}
	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header.
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}

	return &header, nil
}

// snapshot is the on-disk payload encoded with msgpack and compressed with
// lz4 behind the header.
type snapshot struct {
	Entries  map[string]interface{} `msgpack:"entries"`
	Metadata map[string]interface{} `msgpack:"metadata,omitempty"`
}

package badgerstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/khanhng-dev/gridstore/internal/domain"
)

// Chunk values are framed as:
//
//	checksum uint32 (big endian, over the uncompressed payload)
//	flags    byte
//	payload  []byte
const (
	frameHeaderSize       = 5
	flagCompressed   byte = 1 << 0
)

// encodeFrame serializes a chunk value. When compression is requested
// the payload is lz4-framed, unless that would grow it, in which case
// the raw payload is stored and the flag left clear.
func encodeFrame(chunk *domain.Chunk, compress bool) ([]byte, error) {
	payload := chunk.Data
	var flags byte

	if compress && len(chunk.Data) > 0 {
		compressed, err := compressPayload(chunk.Data)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(chunk.Data) {
			payload = compressed
			flags |= flagCompressed
		}
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], chunk.Checksum)
	frame[4] = flags
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

// decodeFrame parses a stored chunk value back into a chunk and
// verifies the payload against its checksum.
func decodeFrame(fileID string, sequence int, frame []byte) (*domain.Chunk, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("chunk frame truncated: %d bytes", len(frame))
	}

	checksum := binary.BigEndian.Uint32(frame[0:4])
	flags := frame[4]
	payload := frame[frameHeaderSize:]

	if flags&flagCompressed != 0 {
		decompressed, err := decompressPayload(payload)
		if err != nil {
			return nil, err
		}
		payload = decompressed
	} else {
		// Copy out of badger's value slice, which is only valid inside
		// the transaction.
		payload = append([]byte(nil), payload...)
	}

	chunk := &domain.Chunk{
		FileID:   fileID,
		Sequence: sequence,
		Data:     payload,
		Checksum: checksum,
	}
	if err := chunk.Validate(); err != nil {
		return nil, err
	}
	return chunk, nil
}

func compressPayload(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressPayload(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return out, nil
}

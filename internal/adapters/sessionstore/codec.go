package sessionstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/Amund211/pitwall/internal/config"
	"github.com/Amund211/pitwall/internal/domain"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// The first byte of every blob identifies the compression used for the rest
const (
	tagZstd byte = 1
	tagLZ4  byte = 2
)

var zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
})

var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})

// Codec serializes entries for the persistent stores.
//
// Decode accepts blobs written with any supported compression, so the
// configured codec can be changed without invalidating existing blobs.
type Codec struct {
	tag byte
}

func NewCodec(blobCodec config.BlobCodec) (Codec, error) {
	switch blobCodec {
	case config.BlobCodecZstd:
		return Codec{tag: tagZstd}, nil
	case config.BlobCodecLZ4:
		return Codec{tag: tagLZ4}, nil
	}
	return Codec{}, fmt.Errorf("unknown blob codec '%s'", blobCodec)
}

func (c Codec) Encode(entry *domain.SessionEntry) ([]byte, error) {
	stored, err := toStored(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to convert entry: %w", err)
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}

	switch c.tag {
	case tagZstd:
		encoder, err := zstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return encoder.EncodeAll(data, []byte{tagZstd}), nil
	case tagLZ4:
		var buf bytes.Buffer
		buf.WriteByte(tagLZ4)
		writer := lz4.NewWriter(&buf)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("failed to compress entry: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to flush compressed entry: %w", err)
		}
		return buf.Bytes(), nil
	}

	return nil, fmt.Errorf("codec has unknown tag %d", c.tag)
}

func (c Codec) Decode(blob []byte) (*domain.SessionEntry, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty blob")
	}

	var data []byte
	switch blob[0] {
	case tagZstd:
		decoder, err := zstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		data, err = decoder.DecodeAll(blob[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress zstd blob: %w", err)
		}
	case tagLZ4:
		var err error
		data, err = io.ReadAll(lz4.NewReader(bytes.NewReader(blob[1:])))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress lz4 blob: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown blob tag %d", blob[0])
	}

	var stored storedEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	return fromStored(stored)
}

// Package transport carries lobby traffic over a stream connection. Every
// frame is a 4-byte little-endian length followed by a protobuf encoded
// structpb.Struct.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MaxFrameSize bounds the body of a frame.
const MaxFrameSize = 4 << 20

// ErrFrameTooLarge is returned for frames above MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame too large")

// WriteFrame writes one frame.
func WriteFrame(w io.Writer, body *structpb.Struct) error {
	data, err := proto.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("write frame of %d bytes: %w", len(data), ErrFrameTooLarge)
	}
	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame. It returns io.EOF when the stream ends
// cleanly between frames.
func ReadFrame(r io.Reader) (*structpb.Struct, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("read frame of %d bytes: %w", size, ErrFrameTooLarge)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	body := new(structpb.Struct)
	if err := proto.Unmarshal(data, body); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return body, nil
}

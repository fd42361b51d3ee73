// sf2_reader.go - Bounds-checked little-endian cursor over SF2 chunk data

package main

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// SF2Reader walks a byte buffer with little-endian fixed-width reads.
// The first out-of-bounds read latches an error; later reads return zero
// values so record decoders can check Err once per record.
type SF2Reader struct {
	data []byte
	pos  int
	err  error
}

// NewSF2Reader creates a cursor positioned at the start of data
func NewSF2Reader(data []byte) *SF2Reader {
	return &SF2Reader{data: data}
}

// Err returns the first bounds violation, if any
func (r *SF2Reader) Err() error { return r.err }

// Pos returns the current offset
func (r *SF2Reader) Pos() int { return r.pos }

// Len returns the total buffer length
func (r *SF2Reader) Len() int { return len(r.data) }

// Remaining returns the number of unread bytes
func (r *SF2Reader) Remaining() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// take reserves n bytes and advances, or latches an error
func (r *SF2Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = errors.Errorf("read of %d bytes at offset %d overruns buffer of %d", n, r.pos, len(r.data))
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *SF2Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *SF2Reader) I8() int8 {
	return int8(r.U8())
}

func (r *SF2Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *SF2Reader) I16() int16 {
	return int16(r.U16())
}

func (r *SF2Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Tag reads a four character chunk identifier
func (r *SF2Reader) Tag() string {
	b := r.take(4)
	if b == nil {
		return ""
	}
	return string(b)
}

// FixedString reads an n-byte NUL padded field
func (r *SF2Reader) FixedString(n int) string {
	b := r.take(n)
	if b == nil {
		return ""
	}
	return parsePaddedString(b)
}

// Bytes returns the next n bytes without copying
func (r *SF2Reader) Bytes(n int) []byte {
	return r.take(n)
}

// Sub returns a cursor over the next n bytes and advances past them.
// An odd n also consumes the RIFF pad byte when one is present.
func (r *SF2Reader) Sub(n int) *SF2Reader {
	b := r.take(n)
	if b == nil {
		return &SF2Reader{err: r.err}
	}
	if n%2 == 1 && r.pos < len(r.data) {
		r.pos++
	}
	return NewSF2Reader(b)
}

// SF2Chunk is one tagged sub-chunk inside a LIST body
type SF2Chunk struct {
	Tag  string
	Data []byte
}

// readChunks splits a LIST body into its tagged sub-chunks. A chunk whose
// declared size runs past the body is reported as truncated.
func readChunks(body []byte) ([]SF2Chunk, error) {
	r := NewSF2Reader(body)
	var chunks []SF2Chunk
	for r.Remaining() >= SF2_CHUNK_HEADER_SIZE {
		tag := r.Tag()
		size := int(r.U32())
		if size > r.Remaining() {
			return chunks, &SF2FormatError{Chunk: tag, Reason: fmt.Sprintf("declared size %d exceeds remaining %d bytes", size, r.Remaining())}
		}
		sub := r.Sub(size)
		chunks = append(chunks, SF2Chunk{Tag: tag, Data: sub.data})
	}
	return chunks, nil
}

// Package chunk implements Chunk framing and the ChunkReassembler: fragments
// of a logical message that exceeds the overlay's MTU, and the accumulator
// that turns a complete fragment group back into the original bytes.
package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// headerSize is chunk_id (8) + index (4) + total (4).
const headerSize = 8 + 4 + 4

// ErrTooShort is returned when a buffer is too small to hold a Chunk
// header.
var ErrTooShort = errors.New("chunk: buffer shorter than header")

// Fragment is one piece of a logical message split because it exceeded
// BACKEND_MTU. ChunkID groups fragments of the same logical message;
// Index/Total describe its position among Total siblings.
type Fragment struct {
	ChunkID uint64
	Index   uint32
	Total   uint32
	Body    []byte
}

// Marshal encodes f as chunk_id (LE u64) ‖ index (LE u32) ‖ total (LE u32)
// ‖ body.
func (f Fragment) Marshal() []byte {
	out := make([]byte, headerSize+len(f.Body))
	binary.LittleEndian.PutUint64(out[0:8], f.ChunkID)
	binary.LittleEndian.PutUint32(out[8:12], f.Index)
	binary.LittleEndian.PutUint32(out[12:16], f.Total)
	copy(out[headerSize:], f.Body)
	return out
}

// Unmarshal decodes a Fragment from its wire form.
func Unmarshal(buf []byte) (Fragment, error) {
	if len(buf) < headerSize {
		return Fragment{}, fmt.Errorf("unmarshal chunk: %w", ErrTooShort)
	}
	f := Fragment{
		ChunkID: binary.LittleEndian.Uint64(buf[0:8]),
		Index:   binary.LittleEndian.Uint32(buf[8:12]),
		Total:   binary.LittleEndian.Uint32(buf[12:16]),
	}
	if n := len(buf) - headerSize; n > 0 {
		f.Body = make([]byte, n)
		copy(f.Body, buf[headerSize:])
	}
	return f, nil
}

// Split breaks msg into fragments of at most maxBody bytes each, all
// sharing chunkID. Split never returns zero fragments: an empty msg yields
// a single empty-bodied fragment so a zero-length logical message still
// reassembles.
func Split(chunkID uint64, msg []byte, maxBody int) []Fragment {
	if maxBody <= 0 {
		maxBody = 1
	}
	total := (len(msg) + maxBody - 1) / maxBody
	if total == 0 {
		total = 1
	}
	frags := make([]Fragment, 0, total)
	for i := 0; i < total; i++ {
		start := i * maxBody
		end := start + maxBody
		if end > len(msg) {
			end = len(msg)
		}
		frags = append(frags, Fragment{
			ChunkID: chunkID,
			Index:   uint32(i),
			Total:   uint32(total),
			Body:    msg[start:end],
		})
	}
	return frags
}

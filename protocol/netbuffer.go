package protocol

import "encoding/binary"

// NetBuffer is a byte buffer with independent read and write cursors.
// All numeric accessors are little-endian, matching the server framing.
//
// A failed typed read (insufficient bytes remaining) returns a zero
// sentinel and latches the exhausted flag; callers stop parsing once
// End() or Exhausted() reports true.
type NetBuffer struct {
	data      []byte
	readCur   int
	exhausted bool
}

// NewNetBuffer creates an empty buffer for writing with the given
// capacity hint.
func NewNetBuffer(capacity int) *NetBuffer {
	return &NetBuffer{data: make([]byte, 0, capacity)}
}

// NetBufferFrom wraps existing bytes for reading. The buffer does not
// copy; the caller must not mutate data while the buffer is in use.
func NetBufferFrom(data []byte) *NetBuffer {
	return &NetBuffer{data: data}
}

// Reset drops all content and clears the exhausted flag, keeping the
// underlying storage for reuse.
func (b *NetBuffer) Reset() {
	b.data = b.data[:0]
	b.readCur = 0
	b.exhausted = false
}

// Bytes returns everything written to (or wrapped by) the buffer.
func (b *NetBuffer) Bytes() []byte {
	return b.data
}

// Len returns the total number of bytes held.
func (b *NetBuffer) Len() int {
	return len(b.data)
}

// Remaining returns the number of unread bytes.
func (b *NetBuffer) Remaining() int {
	return len(b.data) - b.readCur
}

// End reports whether the read cursor has consumed every byte or a
// previous typed read failed.
func (b *NetBuffer) End() bool {
	return b.exhausted || b.readCur >= len(b.data)
}

// Exhausted reports whether a typed read ran past the end of the buffer.
func (b *NetBuffer) Exhausted() bool {
	return b.exhausted
}

func (b *NetBuffer) take(n int) []byte {
	if b.exhausted || b.readCur+n > len(b.data) {
		b.exhausted = true
		return nil
	}
	s := b.data[b.readCur : b.readCur+n]
	b.readCur += n
	return s
}

// ReadUint8 reads a single byte, returning 0 on exhaustion.
func (b *NetBuffer) ReadUint8() uint8 {
	s := b.take(1)
	if s == nil {
		return 0
	}
	return s[0]
}

// ReadUint16 reads a little-endian uint16, returning 0 on exhaustion.
func (b *NetBuffer) ReadUint16() uint16 {
	s := b.take(2)
	if s == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(s)
}

// ReadUint32 reads a little-endian uint32, returning 0 on exhaustion.
func (b *NetBuffer) ReadUint32() uint32 {
	s := b.take(4)
	if s == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(s)
}

// ReadInt32 reads a little-endian int32, returning 0 on exhaustion.
func (b *NetBuffer) ReadInt32() int32 {
	return int32(b.ReadUint32())
}

// Read copies len(dst) bytes into dst. It returns false and latches the
// exhausted flag if fewer bytes remain.
func (b *NetBuffer) Read(dst []byte) bool {
	s := b.take(len(dst))
	if s == nil {
		return false
	}
	copy(dst, s)
	return true
}

// ReadBytes returns a copy of the next n bytes, or nil on exhaustion.
func (b *NetBuffer) ReadBytes(n int) []byte {
	s := b.take(n)
	if s == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, s)
	return out
}

// WriteUint8 appends a single byte.
func (b *NetBuffer) WriteUint8(v uint8) {
	b.data = append(b.data, v)
}

// WriteUint16 appends a little-endian uint16.
func (b *NetBuffer) WriteUint16(v uint16) {
	b.data = binary.LittleEndian.AppendUint16(b.data, v)
}

// WriteUint32 appends a little-endian uint32.
func (b *NetBuffer) WriteUint32(v uint32) {
	b.data = binary.LittleEndian.AppendUint32(b.data, v)
}

// WriteInt32 appends a little-endian int32.
func (b *NetBuffer) WriteInt32(v int32) {
	b.WriteUint32(uint32(v))
}

// Write appends raw bytes.
func (b *NetBuffer) Write(p []byte) {
	b.data = append(b.data, p...)
}

// WriteString appends the raw bytes of s without a length prefix or
// terminator.
func (b *NetBuffer) WriteString(s string) {
	b.data = append(b.data, s...)
}

package protocol

import "sync"

// MaxPooledFrame caps the size of buffers returned to the pool; anything
// the send path grew beyond this is left for the GC to prevent the pool
// from pinning oversized frames.
const MaxPooledFrame = 1024 * 1024

// framePool reuses composite-frame NetBuffers across send ticks to keep
// the 60 Hz path allocation-free in the steady state.
var framePool = sync.Pool{
	New: func() interface{} {
		return NewNetBuffer(DefaultFrameSize)
	},
}

// GetFrameBuffer retrieves a reset NetBuffer sized for an outbound
// composite frame.
func GetFrameBuffer() *NetBuffer {
	buf := framePool.Get().(*NetBuffer)
	buf.Reset()
	return buf
}

// PutFrameBuffer returns a frame buffer to the pool.
func PutFrameBuffer(buf *NetBuffer) {
	if buf == nil || cap(buf.data) > MaxPooledFrame {
		return
	}
	framePool.Put(buf)
}

package forwarder

import "sync"

// copyBufferSize matches the donor's bytesPool allocation
// (app/proxy/pool.go), chosen to amortize syscall overhead on typical
// proxied bodies without holding excessive memory per in-flight copy.
const copyBufferSize = 32 * 1024

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, copyBufferSize)
		return &b
	},
}

func getBuffer() *[]byte  { return bufferPool.Get().(*[]byte) }
func putBuffer(b *[]byte) { bufferPool.Put(b) }

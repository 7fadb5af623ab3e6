// Package pool holds the sync.Pool backed allocators shared by the session and the simulator.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer for the given duration d from the pool.
//
// Return back the timer to the pool with PutTimer.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer)
		if t.Reset(d) {
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	return time.NewTimer(d)
}

// PutTimer returns timer to the pool.
//
// t cannot be accessed after returning to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// frames above this capacity are not recycled.
const maxPooledFrameCap = 16 * 1024

var framePool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 512)
		return &b
	},
}

// GetFrameBuffer returns an empty byte slice for building one frame.
func GetFrameBuffer() *[]byte {
	b, _ := framePool.Get().(*[]byte)
	*b = (*b)[:0]

	return b
}

// PutFrameBuffer returns b to the pool. b cannot be accessed afterwards.
func PutFrameBuffer(b *[]byte) {
	if b == nil || cap(*b) > maxPooledFrameCap {
		return
	}
	framePool.Put(b)
}

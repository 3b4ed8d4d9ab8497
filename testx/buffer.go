// Package testx holds helpers shared by the tests of the flag binaries and
// handlers.
package testx

import (
	"bytes"
	"sync"
)

// ConcurrentBuffer is a bytes.Buffer safe for the concurrent writes of a
// logger shared by several goroutines.
type ConcurrentBuffer struct {
	b bytes.Buffer
	m sync.RWMutex
}

func NewConcurrentBuffer() *ConcurrentBuffer {
	return &ConcurrentBuffer{}
}

func (c *ConcurrentBuffer) Write(p []byte) (n int, err error) {
	c.m.Lock()
	defer c.m.Unlock()
	return c.b.Write(p)
}

func (c *ConcurrentBuffer) String() string {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.b.String()
}

package executor

import (
	"bytes"

	"github.com/Cyclone1070/aicoder/internal/tool/service/fs"
)

const binarySniffBytes = 8000

// collector captures command output up to maxBytes and stops recording once
// the stream looks binary.
type collector struct {
	buf       bytes.Buffer
	maxBytes  int
	truncated bool
	binary    bool
	sniffed   int
}

func newCollector(maxBytes int) *collector {
	return &collector{maxBytes: maxBytes}
}

func (c *collector) Write(p []byte) (int, error) {
	if c.binary {
		return len(p), nil
	}

	if c.sniffed < binarySniffBytes {
		sample := p[:min(len(p), binarySniffBytes-c.sniffed)]
		if fs.IsBinary(sample) {
			c.binary = true
			c.truncated = true
			return len(p), nil
		}
		c.sniffed += len(sample)
	}

	room := c.maxBytes - c.buf.Len()
	if c.maxBytes > 0 && room <= 0 {
		c.truncated = true
		return len(p), nil
	}
	chunk := p
	if c.maxBytes > 0 && len(chunk) > room {
		chunk = chunk[:room]
		c.truncated = true
	}
	c.buf.Write(chunk)
	return len(p), nil
}

func (c *collector) String() string {
	if c.binary {
		return "[Binary Content]"
	}
	return c.buf.String()
}

package utils

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredWriter_Flush(t *testing.T) {
	var d DeferredWriter

	_, err := d.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = d.Write([]byte("second\n"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, d.Flush(&out))
	assert.Equal(t, "first\nsecond\n", out.String())

	out.Reset()
	require.NoError(t, d.Flush(&out))
	assert.Empty(t, out.String(), "flush empties the buffer")
}

func TestDeferredWriter_ConcurrentWrites(t *testing.T) {
	var (
		d  DeferredWriter
		wg sync.WaitGroup
	)

	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fmt.Fprintf(&d, "line %02d\n", i)
		}()
	}
	wg.Wait()

	var out bytes.Buffer
	require.NoError(t, d.Flush(&out))
	assert.Len(t, bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n")), 20)
}

type countingWriter struct {
	writes []string
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.writes = append(c.writes, string(p))
	return len(p), nil
}

func TestDeferredWriter_FlushesPerLine(t *testing.T) {
	var d DeferredWriter
	_, _ = d.Write([]byte("{\"level\":\"info\"}\n{\"level\":\"warn\"}\n"))
	_, _ = d.Write([]byte("partial"))

	var w countingWriter
	require.NoError(t, d.Flush(&w))

	assert.Equal(t, []string{"{\"level\":\"info\"}\n", "{\"level\":\"warn\"}\n", "partial"}, w.writes)
}

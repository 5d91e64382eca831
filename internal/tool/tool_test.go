package tool

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapBuffer_UnderLimit(t *testing.T) {
	b := newCapBuffer(16)
	_, err := b.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = b.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(b.Bytes()))
}

func TestCapBuffer_KeepsTail(t *testing.T) {
	b := newCapBuffer(8)
	for _, chunk := range []string{"aaaa", "bbbb", "cccc"} {
		_, err := b.Write([]byte(chunk))
		require.NoError(t, err)
	}
	assert.Equal(t, "bbbbcccc", string(b.Bytes()))
}

func TestCapBuffer_OversizedChunk(t *testing.T) {
	b := newCapBuffer(4)
	n, err := b.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n, "Write must report the full chunk as consumed")
	assert.Equal(t, "6789", string(b.Bytes()))
}

func TestCapBuffer_StraddlingWrite(t *testing.T) {
	b := newCapBuffer(6)
	_, err := b.Write([]byte("abcd"))
	require.NoError(t, err)
	_, err = b.Write([]byte("efgh"))
	require.NoError(t, err)
	assert.Equal(t, "cdefgh", string(b.Bytes()))
}

func TestSanitize_RedactsDirsAndTruncates(t *testing.T) {
	out := []byte("ERROR: cannot write /var/lib/clipfetch/downloads/.staging/x.mp4: disk full\n")
	got := Sanitize(out, 0, "/var/lib/clipfetch/downloads")
	assert.Equal(t, "ERROR: cannot write <dir>/.staging/x.mp4: disk full", got)

	long := []byte(strings.Repeat("x", 100) + "final error line")
	got = Sanitize(long, 16)
	assert.Equal(t, "…final error line", got)
}

func TestSanitize_EmptyAndWhitespace(t *testing.T) {
	assert.Equal(t, "", Sanitize(nil, 32))
	assert.Equal(t, "", Sanitize([]byte("  \n\t"), 32))
}

func TestRunner_CapturesExitCodeAndStreams(t *testing.T) {
	r := NewRunner("/bin/sh", 5*time.Second, 1024)
	res, err := r.Run(context.Background(), "-c", "echo out; echo err >&2; exit 3")
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestRunner_Timeout(t *testing.T) {
	r := NewRunner("/bin/sh", 50*time.Millisecond, 1024)
	res, err := r.Run(context.Background(), "-c", "sleep 5")
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
}

func TestRunner_OutputCapKeepsTail(t *testing.T) {
	r := NewRunner("/bin/sh", 5*time.Second, 8)
	res, err := r.Run(context.Background(), "-c", "printf 0123456789ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, "89ABCDEF", string(res.Stdout))
}

func TestRunner_LaunchFault(t *testing.T) {
	r := NewRunner("/nonexistent/binary", time.Second, 64)
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

package realtime

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetChunkSize(t *testing.T) {
	assert.Equal(t, 9600, getChunkSize(24_000, 200*time.Millisecond, 2, 1))
	assert.Equal(t, 38_400, getChunkSize(48_000, 200*time.Millisecond, 2, 2))
}

func TestFixedChunkReader(t *testing.T) {
	src := bytes.NewReader([]byte{1, 2, 3, 4, 5})
	r := NewFixedChunkReader(src, 2)
	buf := make([]byte, 2)

	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, buf[:n])

	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, buf[:n])

	// short final chunk, then EOF
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, buf[:n])

	_, err = r.Read(buf)
	assert.Equal(t, io.EOF, err)
}

func TestFixedChunkReaderRejectsSmallBuffer(t *testing.T) {
	r := NewFixedChunkReader(bytes.NewReader(nil), 8)
	_, err := r.Read(make([]byte, 4))
	assert.Error(t, err)
}

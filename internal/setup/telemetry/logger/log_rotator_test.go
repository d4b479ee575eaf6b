package logger_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robalyx/toxguard/internal/setup/telemetry/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer(t *testing.T) {
	t.Parallel()

	rb := logger.NewRingBuffer(3)
	assert.Nil(t, rb.Lines())

	for i := range 5 {
		rb.Add(fmt.Sprintf("line %d", i))
	}

	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, rb.Lines())
}

func TestRingBufferZeroCapacity(t *testing.T) {
	t.Parallel()

	rb := logger.NewRingBuffer(0)
	rb.Add("only")
	rb.Add("latest")

	assert.Equal(t, []string{"latest"}, rb.Lines())
}

func TestLogRotator(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)

	rotator := logger.NewLogRotator(file, 5, path)

	for i := range 12 {
		_, err := rotator.Write(fmt.Appendf(nil, "entry %d\n", i))
		require.NoError(t, err)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")

	// Rotated after ten lines down to five, then two more were appended
	assert.Equal(t, []string{"entry 5", "entry 6", "entry 7", "entry 8", "entry 9", "entry 10", "entry 11"}, lines)
}

func TestLogRotatorMultiLineWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "db.log")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)

	rotator := logger.NewLogRotator(file, 100, path)

	n, err := rotator.Write([]byte("first\nsecond\n\nthird\n"))
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	require.NoError(t, file.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n\nthird\n", string(data))
}

package compression

import (
	"bytes"
	"io"
	"math"
	"runtime"
	"strings"
	"testing"

	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(DefaultOptions()))
	assert.Error(t, Validate(&domain.CompressionOptions{Level: 0}))
	assert.Error(t, Validate(&domain.CompressionOptions{Level: BestLevel + 1}))
	if runtime.NumCPU() < math.MaxUint8 {
		assert.Error(t, Validate(&domain.CompressionOptions{
			Level: DefaultLevel, EncoderConcurrency: uint8(runtime.NumCPU() + 1),
		}))
	}
}

func TestDefaultConcurrencyFitsUint8(t *testing.T) {
	got := defaultConcurrency()
	assert.Equal(t, min(runtime.NumCPU(), math.MaxUint8), int(got))
	assert.NotZero(t, got)
}

func TestZstd_RoundTrip(t *testing.T) {
	z, err := NewZstdCompression(&domain.CompressionOptions{Level: FastestLevel, EncoderConcurrency: 1})
	require.NoError(t, err)
	defer z.Close()

	assert.Equal(t, FastestLevel, z.Level())
	assert.Equal(t, ".zst", z.Extension())

	// The encoder is reused, so compress twice.
	for _, payload := range []string{strings.Repeat("{\"id\":1}\n", 1000), "second\n"} {
		var archive bytes.Buffer
		n, err := z.Compress(&archive, strings.NewReader(payload))
		require.NoError(t, err)
		assert.Equal(t, int64(len(payload)), n)

		r, err := z.NewReader(&archive)
		require.NoError(t, err)
		out, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())

		assert.Equal(t, payload, string(out))
	}
}

func TestZstd_NewReaderRejectsGarbage(t *testing.T) {
	z, err := NewZstdCompression(DefaultOptions())
	require.NoError(t, err)
	defer z.Close()

	r, err := z.NewReader(strings.NewReader("definitely not zstd"))
	if err == nil {
		_, err = io.ReadAll(r)
		r.Close()
	}
	assert.Error(t, err)
}

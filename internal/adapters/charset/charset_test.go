package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name      string
		canonical string
		wantErr   bool
	}{
		{name: "", canonical: "utf-8"},
		{name: "utf-8", canonical: "utf-8"},
		{name: "UTF8", canonical: "utf-8"},
		{name: "gbk", canonical: "gbk"},
		{name: "iso-8859-1", canonical: "windows-1252"},
		{name: "utf-16le", wantErr: true},
		{name: "no-such-charset", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := Lookup(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.canonical, tc.Name())
		})
	}
}

func TestTranscoder_RoundTrip(t *testing.T) {
	tc, err := Lookup("gbk")
	require.NoError(t, err)

	in := []byte(`{"msg":"你好, world"}`)
	encoded, err := tc.Encode(in)
	require.NoError(t, err)
	assert.NotEqual(t, in, encoded)
	assert.NotContains(t, string(encoded), "\n")

	decoded, err := tc.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, in, decoded)
}

func TestTranscoder_UTF8IsIdentity(t *testing.T) {
	tc, err := Lookup("utf-8")
	require.NoError(t, err)

	in := []byte(`{"msg":"héllo"}`)
	encoded, err := tc.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, in, encoded)
}

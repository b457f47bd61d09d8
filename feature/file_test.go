package feature

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFloat32(t *testing.T) {

	rows := [][]float32{{0.1, -0.2, 0.3}, {1, 2, 3}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows, Float32))
	assert.Equal(t, 24+2*3*4, buf.Len())

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestWriteReadFloat16(t *testing.T) {

	rows := [][]float32{{0.5, -0.25, 0.125}, {0.1, 0.2, 0.3}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows, Float16))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// exactly representable values survive, others within half precision
	assert.Equal(t, rows[0], got[0])
	assert.True(t, floatsEqual(rows[1], got[1], 1e-3))
}

func TestWriteReadInt8(t *testing.T) {

	rows := [][]int8{{5, 7}, {-1, -1}}

	var buf bytes.Buffer
	require.NoError(t, WriteQuantized(&buf, rows, 0.5, -1))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, floatsEqual(got[0], []float32{0.6, 0.8}, 1e-6))
	assert.Equal(t, []float32{0, 0}, got[1])
}

func TestWriteErrors(t *testing.T) {

	var buf bytes.Buffer

	require.ErrorIs(t, Write(&buf, nil, Float32), ErrShape)
	require.ErrorIs(t, Write(&buf, [][]float32{{1, 2}, {1}}, Float32), ErrShape)
	require.Error(t, Write(&buf, [][]float32{{1}}, DType(9)))
}

func TestWriteInt8Quantizes(t *testing.T) {

	rows := [][]float32{{0.6, -0.8, 0}, {0.1, 0.2, 0.3}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows, Int8))
	assert.Equal(t, 24+2*3, buf.Len())

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for i, row := range rows {
		assert.True(t, floatsEqual(NormalizeVec(row), got[i], 1e-2))
	}
}

func TestQuantize(t *testing.T) {

	q, scale, err := Quantize([][]float32{{1.27, -0.64}, {0, 0.01}})
	require.NoError(t, err)
	assert.InDelta(t, 0.01, scale, 1e-6)
	assert.Equal(t, [][]int8{{127, -64}, {0, 1}}, q)

	_, scale, err = Quantize([][]float32{{0, 0}})
	require.NoError(t, err)
	assert.Equal(t, float32(1), scale)

	_, _, err = Quantize(nil)
	require.ErrorIs(t, err, ErrShape)
}

func TestReadOversizedHeader(t *testing.T) {

	tests := []struct {
		name       string
		count, dim uint32
		wantShape  bool
	}{
		{name: "huge row length", count: 1 << 30, dim: 1 << 28, wantShape: true},
		{name: "huge count without body", count: 1 << 30, dim: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			hdr := header{Magic: fileMagic, Version: fileVersion, DType: Float32,
				Count: tt.count, Dim: tt.dim}
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))
			require.Equal(t, headerSize, buf.Len())

			path := filepath.Join(t.TempDir(), "corrupt.bin")
			require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

			_, err := Read(bytes.NewReader(buf.Bytes()))
			require.Error(t, err)

			if tt.wantShape {
				require.ErrorIs(t, err, ErrShape)
			} else {
				require.ErrorContains(t, err, "row 0")
			}

			_, err = Load(path)
			require.ErrorIs(t, err, ErrShape)
		})
	}
}

func TestReadErrors(t *testing.T) {

	_, err := Read(bytes.NewReader([]byte("not a feature file at all")))
	require.ErrorIs(t, err, ErrBadMagic)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, [][]float32{{1, 2}, {3, 4}}, Float32))

	// drop the last row
	short := buf.Bytes()[:buf.Len()-8]
	_, err = Read(bytes.NewReader(short))
	require.ErrorContains(t, err, "row 1")
}

func TestSaveLoad(t *testing.T) {

	path := filepath.Join(t.TempDir(), "feats.bin")
	rows := [][]float32{{1, 0}, {0, 1}}

	require.NoError(t, Save(path, rows, Float32))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}

func TestParseDType(t *testing.T) {

	for name, want := range map[string]DType{"float32": Float32, "f16": Float16, "int8": Int8} {
		got, err := ParseDType(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseDType("bf16")
	require.Error(t, err)
	assert.Equal(t, "float16", Float16.String())
}

package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampImage(w, h, d int, dt int16) *Image {
	img := &Image{Width: w, Height: h, Depth: d, Datatype: dt, PixDim: [3]float32{1, 1, 2.5}}
	img.Data = make([]float32, w*h*d)
	for i := range img.Data {
		img.Data[i] = float32(i % 200)
	}
	return img
}

func TestWriteFileThenOpen_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.nii.gz")
	src := rampImage(4, 3, 5, DTInt16)
	require.NoError(t, WriteFile(path, src))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "expected gzip magic")

	got, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Width)
	assert.Equal(t, 3, got.Height)
	assert.Equal(t, 5, got.Depth)
	assert.Equal(t, DTInt16, got.Datatype)
	assert.InDelta(t, 2.5, got.PixDim[2], 1e-6)
	assert.Equal(t, src.Data, got.Data)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.nii.gz"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRead_RejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader(make([]byte, 400)))
	assert.ErrorIs(t, err, ErrNotNIfTI)

	_, err = Read(bytes.NewReader([]byte("short")))
	assert.ErrorIs(t, err, ErrNotNIfTI)
}

// handHeader builds a header by hand so the reader is checked against the
// byte layout rather than against Write.
func handHeader(order binary.ByteOrder, dt, bitpix int16, slope, inter float32, dims ...int16) []byte {
	hdr := make([]byte, minVoxOffset)
	order.PutUint32(hdr[0:], headerSize)
	order.PutUint16(hdr[40:], uint16(len(dims)))
	for i, d := range dims {
		order.PutUint16(hdr[42+2*i:], uint16(d))
	}
	order.PutUint16(hdr[70:], uint16(dt))
	order.PutUint16(hdr[72:], uint16(bitpix))
	order.PutUint32(hdr[108:], math.Float32bits(minVoxOffset))
	order.PutUint32(hdr[112:], math.Float32bits(slope))
	order.PutUint32(hdr[116:], math.Float32bits(inter))
	copy(hdr[344:], "n+1\x00")
	return hdr
}

func TestRead_BigEndianFloat64WithScaling(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(handHeader(binary.BigEndian, DTFloat64, 64, 2, 10, 2, 1, 1))
	vals := []float64{1.5, -3}
	for _, v := range vals {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, v))
	}

	img, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 1, img.Depth)
	assert.Equal(t, []float32{13, 4}, img.Data)
}

func TestRead_SignedAndUnsignedTypes(t *testing.T) {
	tests := []struct {
		name   string
		dt     int16
		bitpix int16
		raw    []byte
		want   []float32
	}{
		{"uint8", DTUint8, 8, []byte{0, 255}, []float32{0, 255}},
		{"int8", DTInt8, 8, []byte{0xff, 0x7f}, []float32{-1, 127}},
		{"uint16", DTUint16, 16, []byte{0xff, 0xff, 0x01, 0x00}, []float32{65535, 1}},
		{"int32", DTInt32, 32, []byte{0xfe, 0xff, 0xff, 0xff, 0x02, 0x00, 0x00, 0x00}, []float32{-2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			buf.Write(handHeader(binary.LittleEndian, tt.dt, tt.bitpix, 0, 0, 2, 1, 1))
			buf.Write(tt.raw)

			img, err := Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, img.Data)
		})
	}
}

func TestRead_Rejects4DAndUnknownType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(handHeader(binary.LittleEndian, DTUint8, 8, 0, 0, 2, 2, 2, 3))
	_, err := Read(&buf)
	assert.ErrorIs(t, err, ErrUnsupported)

	buf.Reset()
	buf.Write(handHeader(binary.LittleEndian, 128, 24, 0, 0, 1, 1, 1))
	_, err = Read(&buf)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestWrite_ClampsIntegerTypes(t *testing.T) {
	img := &Image{Width: 3, Height: 1, Depth: 1, Datatype: DTUint8, Data: []float32{-4, 2.6, 300}}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, img))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 3, 255}, got.Data)
}

func TestWrite_RejectsShortData(t *testing.T) {
	img := &Image{Width: 2, Height: 2, Depth: 2, Data: []float32{1}}
	assert.Error(t, Write(&bytes.Buffer{}, img))
}

func TestRead_RejectsOversizedHeader(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(handHeader(binary.LittleEndian, DTFloat64, 64, 0, 0, 30000, 30000, 30000))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Read(&gz)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRead_TruncatedVoxelData(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(handHeader(binary.LittleEndian, DTFloat32, 32, 0, 0, 512, 512, 512))
	buf.Write(make([]byte, 64))

	_, err := Read(&buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRead_RejectsHeaderImagePair(t *testing.T) {
	hdr := handHeader(binary.LittleEndian, DTUint8, 8, 0, 0, 2, 1, 1)
	copy(hdr[344:], "ni1\x00")

	_, err := Read(bytes.NewReader(hdr))
	assert.ErrorIs(t, err, ErrUnsupported)
}

// Package nifti reads and writes single-file NIfTI-1 volumes (.nii and .nii.gz).
//
// Only the parts of the format needed for 3D review are handled: the dim,
// datatype, pixdim, vox_offset and scl_slope/scl_inter header fields. Voxel
// values are returned as float32 in file order, x fastest, then y, then z,
// which is the [slice][row][column] layout used by the volume package.
package nifti

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

const (
	headerSize   = 348
	minVoxOffset = 352
)

// MaxVoxels bounds the volume size Read accepts. Headers claiming more are
// rejected before any voxel memory is allocated.
const MaxVoxels = 1 << 28

// Datatype codes from the NIfTI-1 header.
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTInt8    int16 = 256
	DTUint16  int16 = 512
	DTUint32  int16 = 768
)

var (
	// ErrNotNIfTI is returned when the stream does not start with a NIfTI-1 header.
	ErrNotNIfTI = errors.New("not a NIfTI-1 file")

	// ErrUnsupported is returned for valid files this package cannot represent.
	ErrUnsupported = errors.New("unsupported NIfTI content")
)

// Image is a decoded 3D NIfTI volume.
type Image struct {
	Width  int // dim[1], columns
	Height int // dim[2], rows
	Depth  int // dim[3], slices

	Datatype int16
	PixDim   [3]float32 // voxel spacing for x, y, z
	Data     []float32  // len = Width*Height*Depth, x fastest
}

// Len returns the number of voxels.
func (img *Image) Len() int {
	return img.Width * img.Height * img.Depth
}

// Open reads the NIfTI file at path. Missing files produce an error that
// satisfies errors.Is(err, os.ErrNotExist).
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Read decodes a NIfTI-1 volume. Gzip compression is detected from the
// stream's magic bytes, not the file name.
func Read(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", ErrNotNIfTI)
	}

	var src io.Reader = br
	if magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(src, hdr); err != nil {
		return nil, fmt.Errorf("reading header: %w", ErrNotNIfTI)
	}

	order, err := detectByteOrder(hdr)
	if err != nil {
		return nil, err
	}
	switch m := string(hdr[344:347]); m {
	case "n+1":
	case "ni1":
		return nil, fmt.Errorf("separate .hdr/.img pair: %w", ErrUnsupported)
	default:
		return nil, fmt.Errorf("bad magic %q: %w", m, ErrNotNIfTI)
	}

	var dim [8]int16
	for i := range dim {
		dim[i] = int16(order.Uint16(hdr[40+2*i:]))
	}
	if dim[0] < 1 || dim[0] > 7 {
		return nil, fmt.Errorf("dim[0]=%d: %w", dim[0], ErrNotNIfTI)
	}
	for i := 4; i <= int(dim[0]); i++ {
		if dim[i] > 1 {
			return nil, fmt.Errorf("%d-dimensional volume: %w", dim[0], ErrUnsupported)
		}
	}

	if n := int64(dimOrOne(dim, 1)) * int64(dimOrOne(dim, 2)) * int64(dimOrOne(dim, 3)); n > MaxVoxels {
		return nil, fmt.Errorf("%dx%dx%d voxels: %w", dim[1], dim[2], dim[3], ErrUnsupported)
	}

	img := &Image{
		Width:    dimOrOne(dim, 1),
		Height:   dimOrOne(dim, 2),
		Depth:    dimOrOne(dim, 3),
		Datatype: int16(order.Uint16(hdr[70:])),
	}
	for i := 0; i < 3; i++ {
		img.PixDim[i] = math.Float32frombits(order.Uint32(hdr[80+4*i:]))
	}

	voxOffset := int(math.Float32frombits(order.Uint32(hdr[108:])))
	slope := math.Float32frombits(order.Uint32(hdr[112:]))
	inter := math.Float32frombits(order.Uint32(hdr[116:]))

	size, err := bytesPerVoxel(img.Datatype)
	if err != nil {
		return nil, err
	}

	if voxOffset < minVoxOffset {
		voxOffset = minVoxOffset
	}
	if _, err := io.CopyN(io.Discard, src, int64(voxOffset-headerSize)); err != nil {
		return nil, fmt.Errorf("skipping to voxel data: %w", err)
	}

	// Sized by the bytes present, not by the header.
	need := int64(img.Len()) * int64(size)
	var raw bytes.Buffer
	got, err := io.Copy(&raw, io.LimitReader(src, need))
	if err != nil {
		return nil, fmt.Errorf("reading %d voxels: %w", img.Len(), err)
	}
	if got < need {
		return nil, fmt.Errorf("reading %d voxels: have %d of %d bytes: %w",
			img.Len(), got, need, io.ErrUnexpectedEOF)
	}

	img.Data = decodeVoxels(raw.Bytes(), img.Datatype, order, img.Len())
	if slope != 0 && !math.IsNaN(float64(slope)) && !(slope == 1 && inter == 0) {
		for i, v := range img.Data {
			img.Data[i] = v*slope + inter
		}
	}

	return img, nil
}

func detectByteOrder(hdr []byte) (binary.ByteOrder, error) {
	if binary.LittleEndian.Uint32(hdr[0:4]) == headerSize {
		return binary.LittleEndian, nil
	}
	if binary.BigEndian.Uint32(hdr[0:4]) == headerSize {
		return binary.BigEndian, nil
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) == 540 || binary.BigEndian.Uint32(hdr[0:4]) == 540 {
		return nil, fmt.Errorf("NIfTI-2 header: %w", ErrUnsupported)
	}
	return nil, fmt.Errorf("sizeof_hdr mismatch: %w", ErrNotNIfTI)
}

func dimOrOne(dim [8]int16, i int) int {
	if i > int(dim[0]) || dim[i] < 1 {
		return 1
	}
	return int(dim[i])
}

func bytesPerVoxel(dt int16) (int, error) {
	switch dt {
	case DTUint8, DTInt8:
		return 1, nil
	case DTInt16, DTUint16:
		return 2, nil
	case DTInt32, DTUint32, DTFloat32:
		return 4, nil
	case DTFloat64:
		return 8, nil
	}
	return 0, fmt.Errorf("datatype %d: %w", dt, ErrUnsupported)
}

func decodeVoxels(raw []byte, dt int16, order binary.ByteOrder, n int) []float32 {
	out := make([]float32, n)
	switch dt {
	case DTUint8:
		for i := range out {
			out[i] = float32(raw[i])
		}
	case DTInt8:
		for i := range out {
			out[i] = float32(int8(raw[i]))
		}
	case DTInt16:
		for i := range out {
			out[i] = float32(int16(order.Uint16(raw[2*i:])))
		}
	case DTUint16:
		for i := range out {
			out[i] = float32(order.Uint16(raw[2*i:]))
		}
	case DTInt32:
		for i := range out {
			out[i] = float32(int32(order.Uint32(raw[4*i:])))
		}
	case DTUint32:
		for i := range out {
			out[i] = float32(order.Uint32(raw[4*i:]))
		}
	case DTFloat32:
		for i := range out {
			out[i] = math.Float32frombits(order.Uint32(raw[4*i:]))
		}
	case DTFloat64:
		for i := range out {
			out[i] = float32(math.Float64frombits(order.Uint64(raw[8*i:])))
		}
	}
	return out
}

// WriteFile writes img to path, gzip-compressed when path ends in ".gz".
func WriteFile(path string, img *Image) error {
	var buf bytes.Buffer
	if err := Write(&buf, img); err != nil {
		return err
	}

	data := buf.Bytes()
	if strings.HasSuffix(path, ".gz") {
		var zbuf bytes.Buffer
		zw := gzip.NewWriter(&zbuf)
		if _, err := zw.Write(data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		data = zbuf.Bytes()
	}
	return os.WriteFile(path, data, 0o644)
}

// Write encodes img as an uncompressed little-endian single-file NIfTI-1
// stream. Supported output datatypes are uint8, int16 and float32; a zero
// Datatype writes float32.
func Write(w io.Writer, img *Image) error {
	dt := img.Datatype
	if dt == 0 {
		dt = DTFloat32
	}
	var bitpix int16
	switch dt {
	case DTUint8:
		bitpix = 8
	case DTInt16:
		bitpix = 16
	case DTFloat32:
		bitpix = 32
	default:
		return fmt.Errorf("writing datatype %d: %w", dt, ErrUnsupported)
	}
	if len(img.Data) != img.Len() {
		return fmt.Errorf("data has %d voxels, dims need %d", len(img.Data), img.Len())
	}

	le := binary.LittleEndian
	hdr := make([]byte, minVoxOffset)
	le.PutUint32(hdr[0:], headerSize)
	dims := [8]int16{3, int16(img.Width), int16(img.Height), int16(img.Depth), 1, 1, 1, 1}
	for i, d := range dims {
		le.PutUint16(hdr[40+2*i:], uint16(d))
	}
	le.PutUint16(hdr[70:], uint16(dt))
	le.PutUint16(hdr[72:], uint16(bitpix))
	pix := [4]float32{1, img.PixDim[0], img.PixDim[1], img.PixDim[2]}
	for i, p := range pix {
		if p == 0 {
			p = 1
		}
		le.PutUint32(hdr[76+4*i:], math.Float32bits(p))
	}
	le.PutUint32(hdr[108:], math.Float32bits(minVoxOffset))
	le.PutUint32(hdr[112:], math.Float32bits(1))
	copy(hdr[344:], "n+1\x00")

	if _, err := w.Write(hdr); err != nil {
		return err
	}

	raw := make([]byte, len(img.Data)*int(bitpix/8))
	for i, v := range img.Data {
		switch dt {
		case DTUint8:
			raw[i] = uint8(clampRound(v, 0, math.MaxUint8))
		case DTInt16:
			le.PutUint16(raw[2*i:], uint16(int16(clampRound(v, math.MinInt16, math.MaxInt16))))
		case DTFloat32:
			le.PutUint32(raw[4*i:], math.Float32bits(v))
		}
	}
	_, err := w.Write(raw)
	return err
}

func clampRound(v float32, lo, hi float64) float64 {
	f := math.Round(float64(v))
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

package feature

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// DType is the element type feature rows are stored as
type DType uint8

const (
	Float32 DType = 1
	Float16 DType = 2
	// Int8 rows are quantized model outputs stored with a scale and zero
	// point, they are dequantized and normalized when read
	Int8 DType = 3
)

// String returns the name of the data type
func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case Int8:
		return "int8"
	default:
		return fmt.Sprintf("unknown dtype %d", uint8(d))
	}
}

// ParseDType converts a data type name into a DType
func ParseDType(s string) (DType, error) {
	switch s {
	case "float32", "f32":
		return Float32, nil
	case "float16", "f16":
		return Float16, nil
	case "int8":
		return Int8, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", s)
	}
}

const (
	fileVersion = 1
	// headerSize is the encoded length of header
	headerSize = 24
	// maxDim bounds the row length accepted from a file header
	maxDim = 1 << 16
)

var fileMagic = [4]byte{'R', 'F', 'E', 'A'}

var (
	// ErrBadMagic is returned when reading a file that is not a feature file
	ErrBadMagic = errors.New("not a feature file")
	// ErrShape is returned when rows do not share one non zero length
	ErrShape = errors.New("feature rows must share a non zero length")
)

// header is the fixed size little endian preamble of a feature file
type header struct {
	Magic   [4]byte
	Version uint16
	DType   DType
	_       uint8
	Count   uint32
	Dim     uint32
	// Scale and ZeroPoint are only used by Int8 files
	Scale     float32
	ZeroPoint int32
}

// elemSize returns the stored byte width of one element of dt
func elemSize(dt DType) (int, error) {
	switch dt {
	case Float32:
		return 4, nil
	case Float16:
		return 2, nil
	case Int8:
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported %s", dt)
	}
}

// Write stores float rows as Float32, Float16 or symmetric quantized Int8
func Write(w io.Writer, rows [][]float32, dt DType) error {

	if dt == Int8 {
		q, scale, err := Quantize(rows)

		if err != nil {
			return err
		}

		return WriteQuantized(w, q, scale, 0)
	}

	if dt != Float32 && dt != Float16 {
		return fmt.Errorf("cannot write float rows as %s", dt)
	}

	dim, err := rowDim(len(rows), func(i int) int { return len(rows[i]) })

	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	hdr := header{
		Magic:   fileMagic,
		Version: fileVersion,
		DType:   dt,
		Count:   uint32(len(rows)),
		Dim:     uint32(dim),
	}

	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	size := 4

	if dt == Float16 {
		size = 2
	}

	buf := make([]byte, dim*size)

	for _, row := range rows {

		for j, v := range row {
			if dt == Float16 {
				binary.LittleEndian.PutUint16(buf[j*2:], f32ToF16(v))
			} else {
				binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(v))
			}
		}

		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("error writing row: %w", err)
		}
	}

	return bw.Flush()
}

// Quantize maps float rows onto int8 with one symmetric scale for the whole
// set and a zero point of 0
func Quantize(rows [][]float32) ([][]int8, float32, error) {

	if _, err := rowDim(len(rows), func(i int) int { return len(rows[i]) }); err != nil {
		return nil, 0, err
	}

	var maxAbs float64

	for _, row := range rows {
		for _, v := range row {
			maxAbs = math.Max(maxAbs, math.Abs(float64(v)))
		}
	}

	scale := float32(1)

	if maxAbs > 0 {
		scale = float32(maxAbs / 127)
	}

	q := make([][]int8, len(rows))

	for i, row := range rows {
		q[i] = make([]int8, len(row))

		for j, v := range row {
			x := math.Round(float64(v / scale))
			q[i][j] = int8(max(-127, min(127, x)))
		}
	}

	return q, scale, nil
}

// WriteQuantized stores raw int8 model outputs along with the output
// tensor's scale and zero point
func WriteQuantized(w io.Writer, rows [][]int8, scale float32, zp int32) error {

	dim, err := rowDim(len(rows), func(i int) int { return len(rows[i]) })

	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	hdr := header{
		Magic:     fileMagic,
		Version:   fileVersion,
		DType:     Int8,
		Count:     uint32(len(rows)),
		Dim:       uint32(dim),
		Scale:     scale,
		ZeroPoint: zp,
	}

	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	buf := make([]byte, dim)

	for _, row := range rows {

		for j, v := range row {
			buf[j] = byte(v)
		}

		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("error writing row: %w", err)
		}
	}

	return bw.Flush()
}

// Read loads all rows of a feature file as float32.  Int8 rows come back
// dequantized and L2 normalized.
func Read(r io.Reader) ([][]float32, error) {

	br := bufio.NewReader(r)

	var hdr header

	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	if hdr.Magic != fileMagic {
		return nil, ErrBadMagic
	}

	if hdr.Version != fileVersion {
		return nil, fmt.Errorf("unsupported feature file version %d", hdr.Version)
	}

	if hdr.Count == 0 || hdr.Dim == 0 {
		return nil, ErrShape
	}

	if hdr.Dim > maxDim {
		return nil, fmt.Errorf("%w: row length %d exceeds %d", ErrShape, hdr.Dim, maxDim)
	}

	size, err := elemSize(hdr.DType)

	if err != nil {
		return nil, err
	}

	dim := int(hdr.Dim)
	buf := make([]byte, dim*size)

	// rows grow as they are read so a bad count cannot reserve memory
	rows := make([][]float32, 0, min(int(hdr.Count), 1024))

	for i := 0; i < int(hdr.Count); i++ {

		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("error reading row %d: %w", i, err)
		}

		switch hdr.DType {
		case Float32:
			row := make([]float32, dim)
			for j := range row {
				row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
			}
			rows = append(rows, row)

		case Float16:
			row := make([]float32, dim)
			for j := range row {
				row[j] = f16ToF32(binary.LittleEndian.Uint16(buf[j*2:]))
			}
			rows = append(rows, row)

		case Int8:
			q := make([]int8, dim)
			for j := range q {
				q[j] = int8(buf[j])
			}
			rows = append(rows, DequantizeAndL2Normalize(q, hdr.Scale, hdr.ZeroPoint))
		}
	}

	return rows, nil
}

// Load reads a feature file from disk
func Load(file string) ([][]float32, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	if err := checkSize(f); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	rows, err := Read(f)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	return rows, nil
}

// checkSize compares the body length announced by the header against the
// file size, then rewinds the file
func checkSize(f *os.File) error {

	info, err := f.Stat()

	if err != nil {
		return fmt.Errorf("error reading file info: %w", err)
	}

	var hdr header

	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("error reading header: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	size, err := elemSize(hdr.DType)

	if hdr.Magic != fileMagic || err != nil {
		// left for Read to report
		return nil
	}

	want := int64(headerSize) + int64(hdr.Count)*int64(hdr.Dim)*int64(size)

	if info.Size() != want {
		return fmt.Errorf("%w: header describes %d bytes, file has %d", ErrShape,
			want, info.Size())
	}

	return nil
}

// Save writes float rows to a feature file on disk
func Save(file string, rows [][]float32, dt DType) error {

	f, err := os.Create(file)

	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}

	if err := Write(f, rows, dt); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// rowDim checks every row has the same non zero length and returns it
func rowDim(count int, length func(i int) int) (int, error) {

	if count == 0 {
		return 0, ErrShape
	}

	dim := length(0)

	if dim == 0 {
		return 0, ErrShape
	}

	for i := 1; i < count; i++ {
		if length(i) != dim {
			return 0, fmt.Errorf("%w: row %d has length %d, expected %d",
				ErrShape, i, length(i), dim)
		}
	}

	return dim, nil
}

package rulestore

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
)

// Binary vector files start with this magic, followed by a little-endian
// uint32 version, uint64 row count, uint64 dimension and rows*dims IEEE 754
// float64 values in row-major order.
const (
	binaryMagic   = "TXRV"
	binaryVersion = 1
)

// ErrBadVectorFile reports a vector file that could not be decoded.
var ErrBadVectorFile = errors.New("rulestore: malformed vector file")

// Format selects the vector file serialization.
type Format int

const (
	FormatJSON Format = iota
	FormatBinary
)

// FormatFor picks a format from the file extension: .bin and .vec are
// binary, everything else is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin", ".vec":
		return FormatBinary
	default:
		return FormatJSON
	}
}

// decodeVectors reads a vector file of size bytes.
func decodeVectors(r io.Reader, f Format, size int64) ([][]float64, error) {
	var vectors [][]float64
	switch f {
	case FormatBinary:
		v, err := decodeBinary(r, size)
		if err != nil {
			return nil, err
		}
		vectors = v
	default:
		if err := json.NewDecoder(r).Decode(&vectors); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadVectorFile, err)
		}
	}
	if len(vectors) > 0 {
		dim := len(vectors[0])
		for i, v := range vectors {
			if len(v) != dim {
				return nil, fmt.Errorf("%w: row %d has %d dims, want %d", ErrBadVectorFile, i, len(v), dim)
			}
		}
	}
	return vectors, nil
}

func encodeVectors(w io.Writer, f Format, vectors [][]float64) error {
	if f == FormatBinary {
		return encodeBinary(w, vectors)
	}
	if vectors == nil {
		vectors = [][]float64{}
	}
	return json.NewEncoder(w).Encode(vectors)
}

func encodeBinary(w io.Writer, vectors [][]float64) error {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	bw := bufio.NewWriter(w)
	header := make([]byte, binaryHeaderSize)
	copy(header, binaryMagic)
	binary.LittleEndian.PutUint32(header[4:], binaryVersion)
	binary.LittleEndian.PutUint64(header[8:], uint64(len(vectors)))
	binary.LittleEndian.PutUint64(header[16:], uint64(dim))
	if _, err := bw.Write(header); err != nil {
		return err
	}
	buf := make([]byte, 8)
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("rulestore: row %d has %d dims, want %d", i, len(v), dim)
		}
		for _, x := range v {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(x))
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

const binaryHeaderSize = 4 + 4 + 8 + 8

func decodeBinary(r io.Reader, size int64) ([][]float64, error) {
	br := bufio.NewReader(r)
	header := make([]byte, binaryHeaderSize)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadVectorFile, err)
	}
	if string(header[:4]) != binaryMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadVectorFile, header[:4])
	}
	if v := binary.LittleEndian.Uint32(header[4:]); v != binaryVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadVectorFile, v)
	}
	rows := binary.LittleEndian.Uint64(header[8:])
	dim := binary.LittleEndian.Uint64(header[16:])
	if rows > math.MaxInt32 || dim > math.MaxInt32 {
		return nil, fmt.Errorf("%w: shape %dx%d too large", ErrBadVectorFile, rows, dim)
	}
	if dim == 0 && rows > 0 {
		return nil, fmt.Errorf("%w: %d rows of dimension 0", ErrBadVectorFile, rows)
	}
	// The payload must be exactly rows*dim float64s; checked before allocating.
	payload := uint64(max(size-binaryHeaderSize, 0))
	if dim > 0 && rows > payload/8/dim {
		return nil, fmt.Errorf("%w: shape %dx%d exceeds %d payload bytes", ErrBadVectorFile, rows, dim, payload)
	}
	if rows*dim*8 != payload {
		return nil, fmt.Errorf("%w: shape %dx%d does not match %d payload bytes", ErrBadVectorFile, rows, dim, payload)
	}

	vectors := make([][]float64, 0, min(rows, 1024))
	buf := make([]byte, 8)
	for i := uint64(0); i < rows; i++ {
		v := make([]float64, dim)
		for j := range v {
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, fmt.Errorf("%w: row %d: %v", ErrBadVectorFile, i, err)
			}
			v[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

package optimize

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Prepared dataset blob format, little-endian:
//
//	magic "BVD1" (4 bytes) + uint32 point count, then one 29-byte record
//	per point: x, y, z float64, probability float32, flags byte.
//
// Flags pack candidate (bit 0), overlay (bit 1), and the two-bit truth
// code (bits 2-3). Missing probabilities are stored as NaN, which
// survives the float32 round trip.
const (
	datasetMagic     = "BVD1"
	datasetRecordLen = 29
)

// maxDatasetPoints caps decoding of untrusted blobs.
const maxDatasetPoints = 200_000_000

// EncodeDataset serializes a dataset to the compact blob format.
func EncodeDataset(ds *Dataset) []byte {
	blob := make([]byte, 8+len(ds.Points)*datasetRecordLen)
	copy(blob, datasetMagic)
	binary.LittleEndian.PutUint32(blob[4:], uint32(len(ds.Points)))

	for i, p := range ds.Points {
		off := 8 + i*datasetRecordLen
		binary.LittleEndian.PutUint64(blob[off:], math.Float64bits(p.X))
		binary.LittleEndian.PutUint64(blob[off+8:], math.Float64bits(p.Y))
		binary.LittleEndian.PutUint64(blob[off+16:], math.Float64bits(p.Z))
		binary.LittleEndian.PutUint32(blob[off+24:], math.Float32bits(float32(p.Probability)))

		var flags byte
		if p.Candidate {
			flags |= 1
		}
		if p.Overlay {
			flags |= 2
		}
		flags |= byte(p.Truth) << 2
		blob[off+28] = flags
	}
	return blob
}

// DecodeDataset parses a blob produced by EncodeDataset, checking the
// magic, the count guard, and the exact payload length.
func DecodeDataset(blob []byte) (*Dataset, error) {
	if len(blob) < 8 || string(blob[:4]) != datasetMagic {
		return nil, fmt.Errorf("not a prepared dataset blob")
	}
	count := binary.LittleEndian.Uint32(blob[4:])
	if count > maxDatasetPoints {
		return nil, fmt.Errorf("dataset count %d exceeds limit %d", count, maxDatasetPoints)
	}
	want := 8 + int(count)*datasetRecordLen
	if len(blob) != want {
		return nil, fmt.Errorf("dataset blob length %d does not match count %d (want %d)", len(blob), count, want)
	}

	ds := &Dataset{Points: make([]LabelledPoint, count)}
	for i := range ds.Points {
		off := 8 + i*datasetRecordLen
		p := &ds.Points[i]
		p.X = math.Float64frombits(binary.LittleEndian.Uint64(blob[off:]))
		p.Y = math.Float64frombits(binary.LittleEndian.Uint64(blob[off+8:]))
		p.Z = math.Float64frombits(binary.LittleEndian.Uint64(blob[off+16:]))
		p.Probability = float64(math.Float32frombits(binary.LittleEndian.Uint32(blob[off+24:])))

		flags := blob[off+28]
		p.Candidate = flags&1 != 0
		p.Overlay = flags&2 != 0
		truth := GroundTruth(flags >> 2 & 3)
		p.Truth = truth
	}
	return ds, nil
}

// WriteDatasetFile persists a prepared dataset artifact.
func WriteDatasetFile(path string, ds *Dataset) error {
	if err := os.WriteFile(path, EncodeDataset(ds), 0644); err != nil {
		return fmt.Errorf("write prepared dataset: %w", err)
	}
	return nil
}

// ReadDatasetFile loads a prepared dataset artifact.
func ReadDatasetFile(path string) (*Dataset, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prepared dataset: %w", err)
	}
	return DecodeDataset(blob)
}

package vector

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/s2"

	"github.com/liathdb/liath/internal/f16"
)

// Snapshot file layout (little-endian):
//
//	magic   [4]byte  "LSNP"
//	version uint16
//	metric  uint8
//	scalar  uint8
//	dim     uint32
//	count   uint64
//	rawLen  uint64   length of the uncompressed payload
//	crc     uint32   CRC32 (IEEE) of the uncompressed payload
//	payload []byte   s2 block: ids then vector components
//
// The contract is solely that Save then Load reproduces every Add performed
// before the save.

var snapshotMagic = [4]byte{'L', 'S', 'N', 'P'}

const snapshotVersion = 1

// ErrSnapshotCorrupt indicates a snapshot failed structural or checksum
// verification.
var ErrSnapshotCorrupt = errors.New("snapshot corrupt")

// ErrSnapshotShapeMismatch indicates a snapshot was produced by an index
// with a different dimension, metric or scalar kind.
var ErrSnapshotShapeMismatch = errors.New("snapshot shape mismatch")

// Save writes a snapshot of the index to path. The write is atomic: data
// goes to a temp file first, then rename.
func (f *Flat) Save(path string) error {
	f.mu.RLock()
	payload := f.encodePayload()
	header := snapshotHeader{
		Version: snapshotVersion,
		Metric:  uint8(f.metric),
		Scalar:  uint8(f.scalar),
		Dim:     uint32(f.dim),
		Count:   uint64(len(f.ids)),
	}
	f.mu.RUnlock()

	header.RawLen = uint64(len(payload))
	header.CRC = crc32.ChecksumIEEE(payload)

	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("vector: encode snapshot header: %w", err)
	}
	buf.Write(s2.Encode(nil, payload))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("vector: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("vector: rename snapshot: %w", err)
	}
	return nil
}

// Load replaces the index contents with the snapshot at path.
func (f *Flat) Load(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("vector: read snapshot: %w", err)
	}
	if len(data) < 4 || !bytes.Equal(data[:4], snapshotMagic[:]) {
		return fmt.Errorf("%w: bad magic", ErrSnapshotCorrupt)
	}

	var header snapshotHeader
	r := bytes.NewReader(data[4:])
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: short header", ErrSnapshotCorrupt)
	}
	if header.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, header.Version)
	}
	if int(header.Dim) != f.dim || Metric(header.Metric) != f.metric || Scalar(header.Scalar) != f.scalar {
		return fmt.Errorf("%w: snapshot is %s/%s/dim=%d, index is %s/%s/dim=%d",
			ErrSnapshotShapeMismatch,
			Metric(header.Metric), Scalar(header.Scalar), header.Dim,
			f.metric, f.scalar, f.dim)
	}

	compressed := data[len(data)-r.Len():]
	payload, err := s2.Decode(nil, compressed)
	if err != nil {
		return fmt.Errorf("%w: decompress: %v", ErrSnapshotCorrupt, err)
	}
	if uint64(len(payload)) != header.RawLen || crc32.ChecksumIEEE(payload) != header.CRC {
		return fmt.Errorf("%w: checksum mismatch", ErrSnapshotCorrupt)
	}

	ids, comps32, comps16, err := f.decodePayload(payload, int(header.Count))
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.ids = ids
	f.f32 = comps32
	f.f16 = comps16
	f.mu.Unlock()
	return nil
}

type snapshotHeader struct {
	Version uint16
	Metric  uint8
	Scalar  uint8
	Dim     uint32
	Count   uint64
	RawLen  uint64
	CRC     uint32
}

// encodePayload serializes ids followed by raw vector components.
// Caller holds at least the read lock.
func (f *Flat) encodePayload() []byte {
	n := len(f.ids)
	compBytes := 4
	if f.scalar == ScalarF16 {
		compBytes = 2
	}
	payload := make([]byte, 0, n*8+n*f.dim*compBytes)

	var scratch [8]byte
	for _, id := range f.ids {
		binary.LittleEndian.PutUint64(scratch[:], id)
		payload = append(payload, scratch[:8]...)
	}
	if f.scalar == ScalarF16 {
		for _, c := range f.f16 {
			binary.LittleEndian.PutUint16(scratch[:2], uint16(c))
			payload = append(payload, scratch[:2]...)
		}
	} else {
		for _, c := range f.f32 {
			binary.LittleEndian.PutUint32(scratch[:4], math.Float32bits(c))
			payload = append(payload, scratch[:4]...)
		}
	}
	return payload
}

func (f *Flat) decodePayload(payload []byte, count int) ([]uint64, []float32, []f16.Bits, error) {
	compBytes := 4
	if f.scalar == ScalarF16 {
		compBytes = 2
	}
	want := count*8 + count*f.dim*compBytes
	if len(payload) != want {
		return nil, nil, nil, fmt.Errorf("%w: payload is %d bytes, want %d", ErrSnapshotCorrupt, len(payload), want)
	}

	ids := make([]uint64, count)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint64(payload[i*8:])
	}
	comps := payload[count*8:]

	if f.scalar == ScalarF16 {
		out := make([]f16.Bits, count*f.dim)
		for i := range out {
			out[i] = f16.Bits(binary.LittleEndian.Uint16(comps[i*2:]))
		}
		return ids, nil, out, nil
	}

	out := make([]float32, count*f.dim)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(comps[i*4:]))
	}
	return ids, out, nil, nil
}

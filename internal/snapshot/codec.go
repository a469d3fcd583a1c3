package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2s"

	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/metrics"
	"github.com/rodd-oss/rodengine/internal/schema"
	"github.com/rodd-oss/rodengine/internal/storage"
)

// Magic identifies a rodengine snapshot file.
const Magic = "ECSDBSNP"

// FormatVersion is the only version this codec writes or accepts.
const FormatVersion uint32 = 1

const (
	sectionSchema    uint16 = 1
	sectionTables    uint16 = 2
	sectionRelations uint16 = 3
)

const headerSize = 8 + 4 + 32 + 8 // magic + version + checksum + payload_size

// TableData is one table's captured records, exactly as they stood in
// its published Buffer at snapshot time.
type TableData struct {
	Name       string
	RecordSize uint32
	SlotCount  uint32
	Data       []byte
	FreeMask   []bool
}

// Snapshot is the fully decoded content of a snapshot file, ready for
// internal/recovery to turn into a live catalog and published buffers.
type Snapshot struct {
	FormatVersion uint32
	SchemaJSON    []byte
	Tables        []TableData
	RelationsJSON []byte
}

type wireRelationRecord struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// WriteFile captures cat's current state — its schema JSON and every
// table's published buffer, each via an independent acquire load, no
// lock held across the capture — and writes it to path atomically: the
// payload is built in memory, written to a temp file in path's
// directory, and renamed into place only once fully flushed.
func WriteFile(path string, cat *schema.Catalog) (n int64, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.SnapshotWritesTotal.WithLabelValues(outcome).Inc()
	}()

	schemaJSON, err := cat.SerializeJSON()
	if err != nil {
		return 0, err
	}

	var tablesBuf bytes.Buffer
	for _, t := range cat.Tables() {
		buf := t.Cell.Load()
		if err := writeTableSection(&tablesBuf, t.Name, buf); err != nil {
			return 0, err
		}
	}

	var relations []wireRelationRecord
	for _, r := range cat.Relations() {
		relations = append(relations, wireRelationRecord{
			ID:          r.ID.String(),
			Source:      r.SourceTable + "." + r.SourceField,
			Destination: r.DestTable + "." + r.DestField,
		})
	}
	relationsJSON, err := json.Marshal(relations)
	if err != nil {
		return 0, err
	}

	var payload bytes.Buffer
	writeSection(&payload, sectionSchema, schemaJSON)
	writeSection(&payload, sectionTables, tablesBuf.Bytes())
	writeSection(&payload, sectionRelations, relationsJSON)

	var payloadSize [8]byte
	binary.LittleEndian.PutUint64(payloadSize[:], uint64(payload.Len()))

	sum := blake2s.Sum256(append(append([]byte(nil), payloadSize[:]...), payload.Bytes()...))

	var header bytes.Buffer
	header.WriteString(Magic)
	var versionBytes [4]byte
	binary.LittleEndian.PutUint32(versionBytes[:], FormatVersion)
	header.Write(versionBytes[:])
	header.Write(sum[:])
	header.Write(payloadSize[:])

	written, err := atomicWrite(path, header.Bytes(), payload.Bytes())
	if err != nil {
		return 0, &errs.IOError{Op: "write snapshot", Err: err}
	}
	metrics.SnapshotBytesWritten.Set(float64(written))
	return written, nil
}

func atomicWrite(path string, chunks ...[]byte) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()

	var total int64
	for _, chunk := range chunks {
		n, err := tmp.Write(chunk)
		total += int64(n)
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return 0, err
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	return total, nil
}

func writeSection(dst *bytes.Buffer, tag uint16, body []byte) {
	var tagBytes [2]byte
	binary.LittleEndian.PutUint16(tagBytes[:], tag)
	dst.Write(tagBytes[:])
	var lenBytes [8]byte
	binary.LittleEndian.PutUint64(lenBytes[:], uint64(len(body)))
	dst.Write(lenBytes[:])
	dst.Write(body)
}

func writeTableSection(dst *bytes.Buffer, name string, buf *storage.Buffer) error {
	var nameLen [2]byte
	binary.LittleEndian.PutUint16(nameLen[:], uint16(len(name)))
	dst.Write(nameLen[:])
	dst.WriteString(name)

	var recordSize [4]byte
	binary.LittleEndian.PutUint32(recordSize[:], buf.RecordSize())
	dst.Write(recordSize[:])

	slotCount := uint32(buf.Len())
	var slotCountBytes [4]byte
	binary.LittleEndian.PutUint32(slotCountBytes[:], slotCount)
	dst.Write(slotCountBytes[:])

	for i := 0; i < buf.Len(); i++ {
		rec, err := buf.RecordBytes(i)
		if err != nil {
			if !buf.IsFree(i) {
				return err
			}
			// free slots still occupy their byte range on disk, zeroed.
			dst.Write(make([]byte, buf.RecordSize()))
			continue
		}
		dst.Write(rec)
	}

	mask := packBits(buf, slotCount)
	dst.Write(mask)
	return nil
}

func packBits(buf *storage.Buffer, slotCount uint32) []byte {
	mask := make([]byte, (slotCount+7)/8)
	for i := uint32(0); i < slotCount; i++ {
		if buf.IsFree(int(i)) {
			mask[i/8] |= 1 << (i % 8)
		}
	}
	return mask
}

// ReadFile loads and validates the snapshot at path: magic, format
// version, size, and checksum are all checked before any section is
// parsed.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IOError{Op: "read snapshot", Err: err}
	}
	return Decode(data)
}

// Decode parses a fully-read snapshot file's bytes.
func Decode(data []byte) (*Snapshot, error) {
	if len(data) < headerSize {
		return nil, errs.ErrTruncated
	}
	if string(data[0:8]) != Magic {
		return nil, errs.ErrBadMagic
	}
	version := binary.LittleEndian.Uint32(data[8:12])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", errs.ErrUnsupportedVersion, version)
	}
	wantSum := data[12:44]
	payloadSize := binary.LittleEndian.Uint64(data[44:52])

	if uint64(len(data)-52) < payloadSize {
		return nil, errs.ErrTruncated
	}
	payload := data[52 : 52+payloadSize]

	gotSum := blake2s.Sum256(data[44 : 52+payloadSize])
	if !bytes.Equal(wantSum, gotSum[:]) {
		return nil, errs.ErrChecksumMismatch
	}

	sections, err := parseSections(payload)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{FormatVersion: version}
	snap.SchemaJSON = sections[sectionSchema]
	snap.RelationsJSON = sections[sectionRelations]

	tables, err := parseTables(sections[sectionTables])
	if err != nil {
		return nil, err
	}
	snap.Tables = tables
	return snap, nil
}

func parseSections(payload []byte) (map[uint16][]byte, error) {
	out := make(map[uint16][]byte)
	r := payload
	for len(r) > 0 {
		if len(r) < 10 {
			return nil, errs.ErrMalformedPayload
		}
		tag := binary.LittleEndian.Uint16(r[0:2])
		length := binary.LittleEndian.Uint64(r[2:10])
		r = r[10:]
		if uint64(len(r)) < length {
			return nil, errs.ErrTruncated
		}
		out[tag] = r[:length]
		r = r[length:]
	}
	return out, nil
}

func parseTables(section []byte) ([]TableData, error) {
	var out []TableData
	r := section
	for len(r) > 0 {
		if len(r) < 2 {
			return nil, errs.ErrMalformedPayload
		}
		nameLen := binary.LittleEndian.Uint16(r[0:2])
		r = r[2:]
		if uint64(len(r)) < uint64(nameLen)+8 {
			return nil, errs.ErrMalformedPayload
		}
		name := string(r[:nameLen])
		r = r[nameLen:]

		recordSize := binary.LittleEndian.Uint32(r[0:4])
		slotCount := binary.LittleEndian.Uint32(r[4:8])
		r = r[8:]

		dataLen := uint64(recordSize) * uint64(slotCount)
		maskLen := uint64((slotCount + 7) / 8)
		if uint64(len(r)) < dataLen+maskLen {
			return nil, errs.ErrTruncated
		}

		tableData := append([]byte(nil), r[:dataLen]...)
		r = r[dataLen:]
		maskBytes := r[:maskLen]
		r = r[maskLen:]

		freeMask := make([]bool, slotCount)
		for i := uint32(0); i < slotCount; i++ {
			freeMask[i] = maskBytes[i/8]&(1<<(i%8)) != 0
		}

		out = append(out, TableData{
			Name:       name,
			RecordSize: recordSize,
			SlotCount:  slotCount,
			Data:       tableData,
			FreeMask:   freeMask,
		})
	}
	return out, nil
}

// io.Reader-based helper retained for callers that already hold an
// opened file rather than a path (e.g. tests against an in-memory
// buffer).
func DecodeFrom(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &errs.IOError{Op: "read snapshot", Err: err}
	}
	return Decode(data)
}

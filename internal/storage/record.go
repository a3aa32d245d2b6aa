package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/0x5457/fs-index/internal/models"
	"github.com/cespare/xxhash/v2"
)

// Row is the flat persisted form of a FileRecord.
type Row struct {
	Path        string
	Fingerprint string
	Kind        string
	Language    string
	SizeBytes   int64
	ModifiedAt  int64
	IndexedAt   int64
	Summary     string
	Dim         int
	Embedding   []byte
	Checksum    int64
}

// EncodeEmbedding serializes a vector as little-endian float32s.
func EncodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// Checksum covers the identity and vector of a row.
func Checksum(path, fingerprint string, embedding []byte) int64 {
	d := xxhash.New()
	_, _ = d.WriteString(path)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(fingerprint)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(embedding)
	return int64(d.Sum64())
}

func EncodeRecord(rec models.FileRecord) Row {
	emb := EncodeEmbedding(rec.Embedding)
	fp := rec.Fingerprint.String()
	return Row{
		Path:        rec.Path,
		Fingerprint: fp,
		Kind:        string(rec.Kind),
		Language:    rec.Language,
		SizeBytes:   rec.SizeBytes,
		ModifiedAt:  rec.ModifiedAt.UnixNano(),
		IndexedAt:   rec.LastIndexedAt.UnixNano(),
		Summary:     rec.Summary,
		Dim:         len(rec.Embedding),
		Embedding:   emb,
		Checksum:    Checksum(rec.Path, fp, emb),
	}
}

// Decode validates the row and rebuilds the record.
func (r Row) Decode() (models.FileRecord, error) {
	corrupt := func(format string, args ...any) error {
		return &CorruptRecordError{Path: r.Path, Reason: fmt.Sprintf(format, args...)}
	}
	if Checksum(r.Path, r.Fingerprint, r.Embedding) != r.Checksum {
		return models.FileRecord{}, corrupt("checksum mismatch")
	}
	fp, err := models.ParseFingerprint(r.Fingerprint)
	if err != nil {
		return models.FileRecord{}, corrupt("%v", err)
	}
	kind, ok := models.StringToKind(r.Kind)
	if !ok {
		return models.FileRecord{}, corrupt("unknown kind %q", r.Kind)
	}
	emb, err := DecodeEmbedding(r.Embedding)
	if err != nil {
		return models.FileRecord{}, corrupt("%v", err)
	}
	if len(emb) == 0 || len(emb) != r.Dim {
		return models.FileRecord{}, corrupt("embedding has %d dimensions, expected %d", len(emb), r.Dim)
	}
	for _, f := range emb {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return models.FileRecord{}, corrupt("non-finite embedding value")
		}
	}
	return models.FileRecord{
		Path:          r.Path,
		Fingerprint:   fp,
		Embedding:     emb,
		Kind:          kind,
		Language:      r.Language,
		SizeBytes:     r.SizeBytes,
		ModifiedAt:    time.Unix(0, r.ModifiedAt),
		LastIndexedAt: time.Unix(0, r.IndexedAt),
		Summary:       r.Summary,
	}, nil
}

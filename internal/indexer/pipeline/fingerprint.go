package pipeline

import (
	"io/fs"
	"time"

	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/util"
)

// racyWindow covers coarse filesystem timestamps: a file written this close
// to the pass start may change again without its mtime moving.
const racyWindow = 2 * time.Second

func probe(info fs.FileInfo) models.Fingerprint {
	fp := models.Fingerprint{Size: info.Size()}
	if mt := info.ModTime(); !mt.IsZero() {
		fp.ModTime = mt.UnixNano()
	}
	return fp
}

func racy(fp models.Fingerprint, passStart time.Time) bool {
	if fp.ModTime == 0 {
		return true
	}
	d := passStart.Sub(time.Unix(0, fp.ModTime))
	return d < racyWindow && d > -racyWindow
}

// unchanged compares the stored fingerprint with a fresh probe. The content
// hash is only consulted when one was stored.
func unchanged(path string, stored, current models.Fingerprint) bool {
	if !stored.SameStat(current) {
		return false
	}
	if !stored.HasHash {
		return true
	}
	h, err := util.HashFile(path)
	return err == nil && h == stored.ContentHash
}

// seal adds the content hash when the probe alone is ambiguous.
func seal(path string, fp models.Fingerprint, passStart time.Time) (models.Fingerprint, error) {
	if !racy(fp, passStart) {
		return fp, nil
	}
	h, err := util.HashFile(path)
	if err != nil {
		return fp, err
	}
	fp.ContentHash = h
	fp.HasHash = true
	return fp, nil
}

package search

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/0x5457/fs-index/internal/models"
)

// RawFilters are filters as they arrive over the wire.
type RawFilters struct {
	FileType string `json:"file_type,omitempty"`
	MinDate  string `json:"min_date,omitempty"`
	MaxDate  string `json:"max_date,omitempty"`
	MinSize  *int64 `json:"min_size,omitempty"`
	MaxSize  *int64 `json:"max_size,omitempty"`
}

const dateOnly = "2006-01-02"

// ParseFilters converts and validates wire filters. A date-only max_date
// covers that whole day.
func ParseFilters(raw RawFilters) (models.Filters, error) {
	f := models.Filters{
		FileType: strings.TrimSpace(raw.FileType),
		MinSize:  raw.MinSize,
		MaxSize:  raw.MaxSize,
	}
	if raw.MinDate != "" {
		t, _, err := parseDate(raw.MinDate)
		if err != nil {
			return f, invalid("min_date %q: expected RFC 3339 or YYYY-MM-DD", raw.MinDate)
		}
		f.MinDate = &t
	}
	if raw.MaxDate != "" {
		t, dayOnly, err := parseDate(raw.MaxDate)
		if err != nil {
			return f, invalid("max_date %q: expected RFC 3339 or YYYY-MM-DD", raw.MaxDate)
		}
		if dayOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.MaxDate = &t
	}
	return f, ValidateFilters(f)
}

func parseDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation(dateOnly, s, time.UTC)
	return t, true, err
}

// ValidateFilters rejects contradictory or malformed filters.
func ValidateFilters(f models.Filters) error {
	if f.FileType != "" && !validFileType(f.FileType) {
		return invalid("unknown file_type %q", f.FileType)
	}
	if f.MinSize != nil && *f.MinSize < 0 {
		return invalid("min_size must not be negative")
	}
	if f.MaxSize != nil && *f.MaxSize < 0 {
		return invalid("max_size must not be negative")
	}
	if f.MinSize != nil && f.MaxSize != nil && *f.MinSize > *f.MaxSize {
		return invalid("min_size is greater than max_size")
	}
	if f.MinDate != nil && f.MaxDate != nil && f.MinDate.After(*f.MaxDate) {
		return invalid("min_date is after max_date")
	}
	return nil
}

// validFileType accepts a kind name or a file extension such as "pdf" or ".pdf".
func validFileType(t string) bool {
	if _, ok := models.StringToKind(t); ok {
		return true
	}
	ext := strings.TrimPrefix(t, ".")
	if ext == "" || len(ext) > 16 {
		return false
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return false
		}
	}
	return true
}

// Match applies the filters to a record. Bounds are inclusive.
func Match(f models.Filters, rec *models.FileRecord) bool {
	if f.FileType != "" {
		if kind, ok := models.StringToKind(f.FileType); ok {
			if rec.Kind != kind {
				return false
			}
		} else {
			want := strings.ToLower(strings.TrimPrefix(f.FileType, "."))
			if strings.ToLower(strings.TrimPrefix(filepath.Ext(rec.Path), ".")) != want {
				return false
			}
		}
	}
	if f.MinDate != nil && rec.ModifiedAt.Before(*f.MinDate) {
		return false
	}
	if f.MaxDate != nil && rec.ModifiedAt.After(*f.MaxDate) {
		return false
	}
	if f.MinSize != nil && rec.SizeBytes < *f.MinSize {
		return false
	}
	if f.MaxSize != nil && rec.SizeBytes > *f.MaxSize {
		return false
	}
	return true
}

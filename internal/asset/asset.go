// Package asset turns scanned files into upload candidates: it reads file
// metadata, detects the MIME type and derives the stable device asset id the
// server uses for deduplication.
package asset

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dmitrijs2005/immichup/internal/scan"
)

// DeviceID identifies this uploader to the server. It is part of every
// upload request and salts the device asset id derivation.
const DeviceID = "immichup"

// ErrIdentify marks a file whose metadata could not be read, e.g. when
// permissions changed between scan and identification. Callers record it as
// a per-file failure; it never aborts the batch.
var ErrIdentify = errors.New("identify asset")

// Candidate is an immutable description of one local file. It is owned by
// the worker processing it and never shared.
type Candidate struct {
	AbsPath string
	RelPath string
	Size    int64
	ModTime time.Time
	MIME    string
}

// IsMedia reports whether the candidate is a photo or a video. Anything
// else is skipped by the pipeline rather than uploaded.
func (c Candidate) IsMedia() bool {
	return strings.HasPrefix(c.MIME, "image/") || strings.HasPrefix(c.MIME, "video/")
}

// Filename returns the base name sent to the server as the original filename.
func (c Candidate) Filename() string {
	return filepath.Base(c.AbsPath)
}

// Identify builds a Candidate for a scanned entry. The MIME type is detected
// from the file's magic bytes; the extension is only consulted when content
// sniffing is inconclusive, so a mislabeled file keeps its real type.
func Identify(entry scan.Entry) (Candidate, error) {
	info, err := os.Stat(entry.Path)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: stat %s: %v", ErrIdentify, entry.Path, err)
	}
	if !info.Mode().IsRegular() {
		return Candidate{}, fmt.Errorf("%w: %s is not a regular file", ErrIdentify, entry.Path)
	}

	mt, err := detectMIME(entry.Path)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: detect type of %s: %v", ErrIdentify, entry.Path, err)
	}

	return Candidate{
		AbsPath: entry.Path,
		RelPath: entry.Rel,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		MIME:    mt,
	}, nil
}

func detectMIME(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	detected := mt.String()
	if detected != "application/octet-stream" {
		return stripParams(detected), nil
	}
	// Content sniffing came back generic; fall back to the extension.
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := mediaExtTypes[ext]; ok {
		return t, nil
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return stripParams(byExt), nil
	}
	return detected, nil
}

// mediaExtTypes covers media extensions that may be missing from the
// platform's mime table, so the fallback behaves the same everywhere.
var mediaExtTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".dng":  "image/x-adobe-dng",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".3gp":  "video/3gpp",
}

func stripParams(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.TrimSpace(base)
}

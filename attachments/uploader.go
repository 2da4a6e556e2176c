// Package attachments uploads message attachments to the blob store and
// builds the descriptors embedded inside messages.
package attachments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sahedhasan999/permitdraft-hero-sub000/blob"
	"github.com/sahedhasan999/permitdraft-hero-sub000/model"
)

// File is a pending upload handed in by the caller.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Uploader stores files under a per-conversation namespace and returns
// attachment descriptors.
type Uploader struct {
	blobs   blob.BlobStore
	maxSize int64
	// now is swappable in tests to pin the namespacing timestamp.
	now func() time.Time
}

// NewUploader creates an uploader. maxSize caps the accepted file size in
// bytes; zero or negative means no limit.
func NewUploader(blobs blob.BlobStore, maxSize int64) *Uploader {
	return &Uploader{blobs: blobs, maxSize: maxSize, now: time.Now}
}

// Upload stores one file and returns its descriptor. The object key is
// namespaced by conversation id and upload timestamp so concurrent uploads of
// identically named files cannot collide.
func (u *Uploader) Upload(ctx context.Context, conversationID string, f File) (model.Attachment, error) {
	name := SanitizeFilename(f.Name)
	key := fmt.Sprintf("conversations/%s/%d_%s", conversationID, u.now().UnixMilli(), name)

	buf := bytes.Buffer{}
	var size int64
	if u.maxSize > 0 {
		n, err := io.Copy(&buf, io.LimitReader(f.Content, u.maxSize+1))
		if err != nil {
			return model.Attachment{}, fmt.Errorf("uploader: read %q: %w", f.Name, err)
		}
		if n > u.maxSize {
			return model.Attachment{}, fmt.Errorf("uploader: %q exceeds maximum size of %d bytes", f.Name, u.maxSize)
		}
		size = n
	} else {
		n, err := io.Copy(&buf, f.Content)
		if err != nil {
			return model.Attachment{}, fmt.Errorf("uploader: read %q: %w", f.Name, err)
		}
		size = n
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = strings.TrimPrefix(filepath.Ext(f.Name), ".")
	}
	fetchURL, err := u.blobs.Put(ctx, key, bytes.NewReader(buf.Bytes()), size, contentType)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("uploader: store %q: %w", f.Name, err)
	}

	return model.Attachment{
		Name: f.Name,
		URL:  fetchURL,
		Size: FormatSize(size),
		Type: contentType,
	}, nil
}

// SanitizeFilename reduces a filename to a safe character set. Anything
// outside [A-Za-z0-9._-] becomes an underscore; an empty result becomes
// "file".
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || strings.Trim(out, "._") == "" {
		return "file"
	}
	return out
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count with binary (1024-based) prefixes and up to
// two decimal places. Zero renders as "0 Bytes".
func FormatSize(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}
	exp := int(math.Floor(math.Log(float64(size)) / math.Log(1024)))
	if exp >= len(sizeUnits) {
		exp = len(sizeUnits) - 1
	}
	value := float64(size) / math.Pow(1024, float64(exp))
	rounded := strconv.FormatFloat(value, 'f', 2, 64)
	rounded = strings.TrimRight(rounded, "0")
	rounded = strings.TrimRight(rounded, ".")
	return rounded + " " + sizeUnits[exp]
}

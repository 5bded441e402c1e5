// Package archive opens supported container formats and yields their
// member files as a lazy sequence, without writing to disk.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var (
	// ErrCorrupt marks a container that could not be parsed. Callers skip
	// the container and continue with its siblings.
	ErrCorrupt = errors.New("corrupt archive")

	// ErrTooDeep marks a container nested beyond the configured depth.
	ErrTooDeep = errors.New("archive nesting too deep")

	// ErrUnsupported marks content that is no recognized container format.
	ErrUnsupported = errors.New("unsupported archive format")
)

// Member is one file inside a container. Open returns the member's bytes;
// it is deferred so callers can apply size gates before reading.
type Member struct {
	Path string
	Size int64
	Open func() (io.ReadCloser, error)
}

// MemberFunc receives members during extraction. Returning an error stops
// the iteration and is propagated by Extract.
type MemberFunc func(Member) error

// format is the closed set of container kinds the extractor understands.
type format int

const (
	formatUnknown format = iota
	formatZip
	formatSevenZ
	formatTar
	formatTarGz
	formatTarBz2
	formatTarXz
	formatTarZst
	formatGz
	formatBz2
	formatXz
	formatZst
)

// Extractor opens containers whose extension is in the configured list.
type Extractor struct {
	extensions []string
}

// NewExtractor builds an extractor for the given lowercase extension list
// (without leading dots).
func NewExtractor(extensions []string) *Extractor {
	return &Extractor{extensions: extensions}
}

// IsArchive reports whether the name's extension is in the configured
// container list.
func (e *Extractor) IsArchive(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	for _, ext := range e.extensions {
		if strings.HasSuffix(base, "."+ext) {
			return true
		}
	}
	return false
}

// Extract opens the container and yields its members in order. Membership
// is decided by extension first, with magic-byte sniffing as fallback for
// misnamed containers. Parse failures are reported as ErrCorrupt.
func (e *Extractor) Extract(name string, content []byte, fn MemberFunc) error {
	f := formatByName(name)
	if f == formatUnknown {
		f = sniff(content)
	}

	switch f {
	case formatZip:
		return extractZip(content, fn)
	case formatSevenZ:
		return extractSevenZip(content, fn)
	case formatTar:
		return extractTar(bytes.NewReader(content), fn)
	case formatTarGz, formatTarBz2, formatTarXz, formatTarZst:
		r, err := decompress(f, content)
		if err != nil {
			return err
		}
		return extractTar(r, fn)
	case formatGz, formatBz2, formatXz, formatZst:
		return extractSingle(f, name, content, fn)
	}
	return fmt.Errorf("%w: %s", ErrUnsupported, name)
}

// formatByName maps a file name to a container format. Compound tar
// extensions are checked before their bare compressor suffixes.
func formatByName(name string) format {
	base := strings.ToLower(filepath.Base(name))
	switch {
	case strings.HasSuffix(base, ".tar.gz"), strings.HasSuffix(base, ".tgz"):
		return formatTarGz
	case strings.HasSuffix(base, ".tar.bz2"), strings.HasSuffix(base, ".tbz2"):
		return formatTarBz2
	case strings.HasSuffix(base, ".tar.xz"), strings.HasSuffix(base, ".txz"):
		return formatTarXz
	case strings.HasSuffix(base, ".tar.zst"):
		return formatTarZst
	case strings.HasSuffix(base, ".tar"):
		return formatTar
	case strings.HasSuffix(base, ".zip"), strings.HasSuffix(base, ".jar"), strings.HasSuffix(base, ".war"):
		return formatZip
	case strings.HasSuffix(base, ".7z"):
		return formatSevenZ
	case strings.HasSuffix(base, ".gz"):
		return formatGz
	case strings.HasSuffix(base, ".bz2"):
		return formatBz2
	case strings.HasSuffix(base, ".xz"):
		return formatXz
	case strings.HasSuffix(base, ".zst"):
		return formatZst
	}
	return formatUnknown
}

// sniff identifies a container by magic bytes.
func sniff(content []byte) format {
	switch {
	case bytes.HasPrefix(content, []byte("PK\x03\x04")):
		return formatZip
	case bytes.HasPrefix(content, []byte("7z\xbc\xaf\x27\x1c")):
		return formatSevenZ
	case bytes.HasPrefix(content, []byte{0x1f, 0x8b}):
		return formatGz
	case bytes.HasPrefix(content, []byte("BZh")):
		return formatBz2
	case bytes.HasPrefix(content, []byte("\xfd7zXZ\x00")):
		return formatXz
	case bytes.HasPrefix(content, []byte{0x28, 0xb5, 0x2f, 0xfd}):
		return formatZst
	case len(content) > 262 && bytes.Equal(content[257:262], []byte("ustar")):
		return formatTar
	}
	return formatUnknown
}

func extractZip(content []byte, fn MemberFunc) error {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		f := f
		m := Member{
			Path: f.Name,
			Size: f.FileInfo().Size(),
			Open: func() (io.ReadCloser, error) { return f.Open() },
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func extractSevenZip(content []byte, fn MemberFunc) error {
	r, err := sevenzip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		f := f
		m := Member{
			Path: f.Name,
			Size: f.FileInfo().Size(),
			Open: func() (io.ReadCloser, error) { return f.Open() },
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

// extractTar walks tar entries sequentially. Member bytes are read during
// iteration because tar has no central directory; each Open hands back the
// already-read buffer.
func extractTar(r io.Reader, fn MemberFunc) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", ErrCorrupt, hdr.Name, err)
		}
		m := Member{
			Path: hdr.Name,
			Size: hdr.Size,
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(data)), nil
			},
		}
		if err := fn(m); err != nil {
			return err
		}
	}
}

// extractSingle handles single-stream compressors: one member named after
// the container with its compressor suffix stripped.
func extractSingle(f format, name string, content []byte, fn MemberFunc) error {
	r, err := decompress(f, content)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	member := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if member == "" {
		member = filepath.Base(name)
	}
	return fn(Member{
		Path: member,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	})
}

func decompress(f format, content []byte) (io.Reader, error) {
	br := bytes.NewReader(content)
	switch f {
	case formatTarGz, formatGz:
		r, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return r, nil
	case formatTarBz2, formatBz2:
		return bzip2.NewReader(br), nil
	case formatTarXz, formatXz:
		r, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return r, nil
	case formatTarZst, formatZst:
		r, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return r.IOReadCloser(), nil
	}
	return nil, ErrUnsupported
}

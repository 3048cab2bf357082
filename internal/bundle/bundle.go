// Package bundle implements 3MF/ZIP project bundle extraction: detecting a
// zipped slicer project, pulling out the embedded
// .gcode payload (skipping thumbnails and other assets), and falling back to
// treating the input as a plain G-code stream when it isn't a bundle at all.
package bundle

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/amscore/gcodeslots/pkg/textutil"
)

// ErrorKind classifies a bundle-specific failure.
type ErrorKind int

const (
	KindNotZip ErrorKind = iota
	KindMissingGcode
	KindCorruptMetadata
)

// Error is returned for bundle-specific failures; parsing failures inside
// the extracted G-code surface as *parser.Error instead.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotZip:
		return fmt.Sprintf("bundle: not a zip archive: %v", e.Cause)
	case KindMissingGcode:
		return "bundle: archive has no embedded .gcode entry"
	case KindCorruptMetadata:
		return fmt.Sprintf("bundle: corrupt project metadata: %v", e.Cause)
	default:
		return "bundle: unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// zipMagic is the four-byte signature every PK zip (and therefore every
// 3MF/gcode.zip) starts with.
var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// LooksLikeZip reports whether name or the leading bytes of content
// indicate a ZIP-family bundle, without fully parsing it.
func LooksLikeZip(name string, head []byte) bool {
	if strings.HasSuffix(strings.ToLower(name), ".3mf") || strings.HasSuffix(strings.ToLower(name), ".zip") {
		return true
	}

	return bytes.HasPrefix(head, zipMagic)
}

// thumbnailDirs are archive paths whose .gcode-looking entries are actually
// slicer-generated thumbnails or metadata exports, not the real toolpath.
var thumbnailDirs = []string{"Metadata/thumbnail", "Auxiliaries/", ".thumbnails/"}

// Extracted holds the embedded G-code payload plus, if present, the raw
// project-settings JSON/INI blob for manifest parsing.
type Extracted struct {
	GcodeName string
	Gcode     io.ReadCloser
	GcodeSize int64
	ManifestRaw []byte // nil if the archive carried no recognizable manifest.
}

// Extract opens a ZIP/3MF bundle from the given bytes and returns the
// embedded G-code stream. The caller must Close() the returned stream.
func Extract(data []byte) (*Extracted, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &Error{Kind: KindNotZip, Cause: err}
	}

	var (
		gcodeFile *zip.File
		manifestFile *zip.File
	)

	for _, f := range reader.File {
		name := f.Name

		if isThumbnail(name) {
			continue
		}

		if strings.HasSuffix(strings.ToLower(name), ".gcode") {
			if gcodeFile == nil || f.UncompressedSize64 > gcodeFile.UncompressedSize64 {
				gcodeFile = f
			}

			continue
		}

		if isManifestCandidate(name) {
			manifestFile = f
		}
	}

	if gcodeFile == nil {
		return nil, &Error{Kind: KindMissingGcode}
	}

	rc, err := gcodeFile.Open()
	if err != nil {
		return nil, &Error{Kind: KindMissingGcode, Cause: err}
	}

	extracted := &Extracted{
		GcodeName: gcodeFile.Name,
		Gcode:     rc,
		GcodeSize: int64(gcodeFile.UncompressedSize64),
	}

	if manifestFile != nil {
		raw, err := readZipEntry(manifestFile)
		if err != nil {
			return nil, &Error{Kind: KindCorruptMetadata, Cause: err}
		}

		extracted.ManifestRaw = raw
	}

	return extracted, nil
}

func isThumbnail(name string) bool {
	for _, dir := range thumbnailDirs {
		if strings.HasPrefix(name, dir) {
			return true
		}
	}

	return strings.Contains(strings.ToLower(name), "thumbnail")
}

func isManifestCandidate(name string) bool {
	lower := strings.ToLower(name)

	return strings.HasSuffix(lower, "model_settings.config") ||
		strings.HasSuffix(lower, "project_settings.json") ||
		strings.HasSuffix(lower, "slice_info.config")
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// ErrNotABundle is returned by callers that want to distinguish "not a zip
// at all, parse as plain gcode" from a genuine bundle error.
var ErrNotABundle = errors.New("bundle: input is not a zip-family archive")

// Resolved is what callers need to hand the parser, regardless of whether
// the source was a bundle or a bare .gcode file.
type Resolved struct {
	Name     string
	Gcode    io.ReadCloser
	Size     int64
	Manifest []byte
	Is3mf    bool
}

// Resolve inspects data and either extracts the embedded G-code from a
// ZIP/3MF bundle or wraps data itself as a plain G-code source, falling
// back to the plain parser whenever the input isn't a bundle.
func Resolve(name string, data []byte) (*Resolved, error) {
	head := data
	if len(head) > 8 {
		head = head[:8]
	}

	if !LooksLikeZip(name, head) {
		return &Resolved{Name: name, Gcode: textutil.BytesReader(data), Size: int64(len(data))}, nil
	}

	extracted, err := Extract(data)
	if err != nil {
		var be *Error
		if errors.As(err, &be) && be.Kind == KindNotZip {
			return &Resolved{Name: name, Gcode: textutil.BytesReader(data), Size: int64(len(data))}, nil
		}

		return nil, err
	}

	return &Resolved{
		Name:     extracted.GcodeName,
		Gcode:    extracted.Gcode,
		Size:     extracted.GcodeSize,
		Manifest: extracted.ManifestRaw,
		Is3mf:    true,
	}, nil
}

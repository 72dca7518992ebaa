// Package snapshot provides compressed backup and restore of a whole SFS
// volume image. It has no equivalent in the original implementation: SFS
// itself has no journaling or crash-consistency story (by design, see
// spec §1), so an operator's only recovery path is a point-in-time copy of
// the 256 KiB image taken between mutations. This package exists to give
// that copy a smaller footprint than a raw dd of the backing file.
package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Codec compresses and decompresses a whole volume image.
type Codec interface {
	Name() string
	Compress(w io.Writer, data []byte) error
	Decompress(r io.Reader) ([]byte, error)
}

// GzipCodec compresses with klauspost/compress's gzip, a drop-in faster
// implementation of the standard library's format.
type GzipCodec struct{}

func (GzipCodec) Name() string { return "gzip" }

func (GzipCodec) Compress(w io.Writer, data []byte) error {
	gw := gzip.NewWriter(w)
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return fmt.Errorf("snapshot: gzip compress: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("snapshot: gzip compress: %w", err)
	}
	return nil
}

func (GzipCodec) Decompress(r io.Reader) ([]byte, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: gzip decompress: %w", err)
	}
	defer gr.Close()
	out, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("snapshot: gzip decompress: %w", err)
	}
	return out, nil
}

// XZCodec compresses with ulikunitz/xz, trading speed for a smaller
// archive — useful for long-term storage of a volume snapshot.
type XZCodec struct{}

func (XZCodec) Name() string { return "xz" }

func (XZCodec) Compress(w io.Writer, data []byte) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("snapshot: xz compress: %w", err)
	}
	if _, err := xw.Write(data); err != nil {
		xw.Close()
		return fmt.Errorf("snapshot: xz compress: %w", err)
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("snapshot: xz compress: %w", err)
	}
	return nil
}

func (XZCodec) Decompress(r io.Reader) ([]byte, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: xz decompress: %w", err)
	}
	out, err := io.ReadAll(xr)
	if err != nil {
		return nil, fmt.Errorf("snapshot: xz decompress: %w", err)
	}
	return out, nil
}

// ZstdCodec compresses with klauspost/compress's zstd implementation,
// trading some ratio for much faster compress/decompress than XZCodec.
type ZstdCodec struct{}

func (ZstdCodec) Name() string { return "zst" }

func (ZstdCodec) Compress(w io.Writer, data []byte) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("snapshot: zstd compress: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return fmt.Errorf("snapshot: zstd compress: %w", err)
	}
	return zw.Close()
}

func (ZstdCodec) Decompress(r io.Reader) ([]byte, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: zstd decompress: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("snapshot: zstd decompress: %w", err)
	}
	return out, nil
}

// Export compresses the volume image at imagePath (its raw bytes, not a
// mounted *sfs.Volume — the caller must Close the volume first) into
// archivePath using codec.
func Export(imagePath, archivePath string, codec Codec) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("snapshot: read %s: %w", imagePath, err)
	}

	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", archivePath, err)
	}
	defer f.Close()

	return codec.Compress(f, data)
}

// Import decompresses archivePath (written by Export with the same codec)
// back into imagePath, overwriting it.
func Import(archivePath, imagePath string, codec Codec) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", archivePath, err)
	}
	defer f.Close()

	data, err := codec.Decompress(f)
	if err != nil {
		return err
	}

	return os.WriteFile(imagePath, data, 0o644)
}

// Sniff reads the first few bytes of archivePath and returns the codec
// that produced it, so callers don't have to remember which one they used.
func Sniff(archivePath string) (Codec, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", archivePath, err)
	}
	defer f.Close()

	magic := make([]byte, 6)
	n, err := io.ReadFull(f, magic)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("snapshot: read magic: %w", err)
	}
	magic = magic[:n]

	if bytes.HasPrefix(magic, []byte{0x1f, 0x8b}) {
		return GzipCodec{}, nil
	}
	if bytes.HasPrefix(magic, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}) {
		return XZCodec{}, nil
	}
	if bytes.HasPrefix(magic, []byte{0x28, 0xb5, 0x2f, 0xfd}) {
		return ZstdCodec{}, nil
	}
	return nil, fmt.Errorf("snapshot: unrecognized archive format in %s", archivePath)
}

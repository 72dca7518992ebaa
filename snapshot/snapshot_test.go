package snapshot_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gosfs/sfs/snapshot"
)

func TestGzipRoundTrip(t *testing.T) {
	testRoundTrip(t, snapshot.GzipCodec{})
}

func TestXZRoundTrip(t *testing.T) {
	testRoundTrip(t, snapshot.XZCodec{})
}

func TestZstdRoundTrip(t *testing.T) {
	testRoundTrip(t, snapshot.ZstdCodec{})
}

func testRoundTrip(t *testing.T, codec snapshot.Codec) {
	dir := t.TempDir()
	image := filepath.Join(dir, "sfs")
	archive := filepath.Join(dir, "sfs."+codec.Name())

	want := bytes.Repeat([]byte{0xAB, 0xCD, 0x00, 0x00}, 65536)
	if err := os.WriteFile(image, want, 0o644); err != nil {
		t.Fatalf("write image: %s", err)
	}

	if err := snapshot.Export(image, archive, codec); err != nil {
		t.Fatalf("export: %s", err)
	}

	restored := filepath.Join(dir, "restored")
	if err := snapshot.Import(archive, restored, codec); err != nil {
		t.Fatalf("import: %s", err)
	}

	got, err := os.ReadFile(restored)
	if err != nil {
		t.Fatalf("read restored: %s", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch")
	}

	sniffed, err := snapshot.Sniff(archive)
	if err != nil {
		t.Fatalf("sniff: %s", err)
	}
	if sniffed.Name() != codec.Name() {
		t.Fatalf("sniff returned %s, want %s", sniffed.Name(), codec.Name())
	}
}

package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteAssets writes <i>.png and <i>.json for i in 1..count. Each metadata
// document carries a name, an image reference, and one attribute.
func WriteAssets(t testing.TB, imagesDir, metadataDir string, count int) {
	t.Helper()

	for i := 1; i <= count; i++ {
		WriteFile(t, filepath.Join(imagesDir, strconv.Itoa(i)+".png"), int64(64+i))
		doc := fmt.Sprintf(`{
  "name": "Item #%d",
  "description": "test item %d",
  "image": "%d.png",
  "attributes": [{"trait_type": "index", "value": "%d"}],
  "properties": {"files": [{"uri": "%d.png", "type": "image/png"}], "category": "image"}
}`, i, i, i, i, i)
		path := filepath.Join(metadataDir, strconv.Itoa(i)+".json")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

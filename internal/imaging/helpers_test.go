package imaging

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/kdomanski/iso9660"
	"github.com/stretchr/testify/require"
)

// buildISO writes an ISO-9660 image holding files (slash paths to contents)
func buildISO(t *testing.T, files map[string]string) string {
	t.Helper()
	w, err := iso9660.NewWriter()
	require.NoError(t, err)
	defer w.Cleanup()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		require.NoError(t, w.AddFile(strings.NewReader(files[name]), name))
	}

	out := filepath.Join(t.TempDir(), "image.iso")
	f, err := os.Create(out)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, w.WriteTo(f, "TESTVOL"))
	return out
}

// writeImage writes size bytes of a repeating, position dependent pattern
func writeImage(t *testing.T, size int) string {
	t.Helper()
	block := make([]byte, 1<<20)
	out := filepath.Join(t.TempDir(), "image.img")
	f, err := os.Create(out)
	require.NoError(t, err)
	defer f.Close()
	for written := 0; written < size; {
		n := len(block)
		if size-written < n {
			n = size - written
		}
		for i := 0; i < n; i++ {
			block[i] = byte((written + i) % 251)
		}
		_, err := f.Write(block[:n])
		require.NoError(t, err)
		written += n
	}
	return out
}

// sparseTarget creates a zero-filled regular file standing in for a device
func sparseTarget(t *testing.T, size int64) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "target.img")
	f, err := os.Create(out)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return out
}

type guardFunc func(string) bool

func (g guardFunc) IsSafeDevice(id string) bool { return g(id) }

var allowAll = guardFunc(func(string) bool { return true })

// recorder collects every published update
type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) record(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update{}, r.updates...)
}

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utkarshgautam22/DiskForge/internal/imaging"
	"github.com/utkarshgautam22/DiskForge/internal/platform"
	"github.com/utkarshgautam22/DiskForge/internal/platform/fakehost"
	"github.com/utkarshgautam22/DiskForge/internal/safety"
)

type fixture struct {
	host    *fakehost.Host
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	host := fakehost.New()
	host.System = []string{"/dev/sda2", "/dev/sda"}
	host.Mounts = []platform.MountedPartition{{Device: "/dev/sda2", Mountpoint: "/", FSType: "ext4", Parent: "/dev/sda"}}
	host.Devices = []platform.PhysicalDevice{
		{Path: "/dev/sda", Size: 500 << 30, Model: "Samsung SSD"},
		{Path: "/dev/sdb", Size: 16 << 30, Model: "Cruzer", Removable: true},
	}
	host.Removable["/dev/sdb"] = true

	classifier := safety.NewClassifier(host)
	reg := prometheus.NewRegistry()
	engine := imaging.NewEngine(host, classifier, imaging.Options{PollInterval: 5 * time.Millisecond, Metrics: imaging.NewMetrics(reg)})
	srv := NewServer(host, classifier, engine, reg)
	return &fixture{host: host, handler: srv.Handler([]string{"http://localhost:3000"})}
}

func (f *fixture) do(t *testing.T, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndDevices(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "GET", "/api/devices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var devices []platform.PhysicalDevice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &devices))
	assert.Len(t, devices, 2)
	assert.True(t, devices[1].Removable)
}

func TestProbeFailureIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.host.ProbeErr = errors.New("lsblk missing")

	rec := f.do(t, "GET", "/api/partitions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "lsblk missing")
}

func TestAssess(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/assess?device=/dev/sda", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var a safety.Assessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, safety.RiskCritical, a.RiskTier)
	assert.True(t, a.IsSystemDevice)

	rec = f.do(t, "GET", "/api/assess", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFormatRequiresConfirmation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/format", formatRequest{Device: "/dev/sdb", Filesystem: "fat32", Confirmation: "yes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "/dev/sdb")

	rec = f.do(t, "POST", "/api/format", formatRequest{Device: "/dev/sdb", Filesystem: "zfs", Confirmation: "/dev/sdb"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.host.Formats())

	rec = f.do(t, "POST", "/api/format", formatRequest{Device: "/dev/sdb", Filesystem: "vfat", Confirmation: "/dev/sdb"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []fakehost.FormatCall{{Device: "/dev/sdb", Filesystem: platform.FSFAT32, Label: imaging.DefaultLabel}}, f.host.Formats())
}

func TestFormatSystemDeviceForbidden(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/format", formatRequest{Device: "/dev/sda", Filesystem: "ext4", Confirmation: safety.CriticalPhrase})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.host.Formats())
}

func TestJobLifecycle(t *testing.T) {
	f := newFixture(t)
	// confirmation phrases name the resolved path
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	image := filepath.Join(dir, "image.img")
	require.NoError(t, os.WriteFile(image, bytes.Repeat([]byte("diskforge"), 4096), 0644))
	target := filepath.Join(dir, "target.img")
	require.NoError(t, os.WriteFile(target, make([]byte, 1<<20), 0644))

	rec := f.do(t, "POST", "/api/jobs", jobRequest{Image: image, Device: target, Strategy: "rufus", Confirmation: target})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", "/api/jobs", jobRequest{Image: image, Device: target, Strategy: "dd", Confirmation: target})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var started imaging.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.ID)

	require.Eventually(t, func() bool {
		rec := f.do(t, "GET", "/api/jobs/"+started.ID, nil)
		var snap imaging.Snapshot
		if json.Unmarshal(rec.Body.Bytes(), &snap) != nil {
			return false
		}
		return snap.State == imaging.StateSucceeded && snap.Progress == 100
	}, 10*time.Second, 10*time.Millisecond)

	rec = f.do(t, "DELETE", "/api/jobs/"+started.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"succeeded"`)

	rec = f.do(t, "GET", "/api/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Eventually(t, func() bool {
		rec := f.do(t, "GET", "/metrics", nil)
		return rec.Code == http.StatusOK &&
			strings.Contains(rec.Body.String(), `diskforge_write_jobs_total{state="succeeded",strategy="raw"} 1`)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, statusFor(imaging.ErrUnsafeTarget))
	assert.Equal(t, http.StatusConflict, statusFor(imaging.ErrEngineBusy))
	assert.Equal(t, http.StatusBadRequest, statusFor(imaging.ErrUnsupportedStrategy))
	assert.Equal(t, http.StatusBadRequest, statusFor(platform.ErrUnsupportedFilesystem))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(&platform.ProbeError{Op: "devices", Err: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(imaging.ErrWriteFailure))
}

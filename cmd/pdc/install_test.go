package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha256Hex(t *testing.T) {
	input := "hello world\n"
	got, err := sha256Hex(strings.NewReader(input))
	require.NoError(t, err)

	h := sha256.Sum256([]byte(input))
	assert.Equal(t, hex.EncodeToString(h[:]), got)
}

func TestSha256File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bin")
	data := []byte("pdc test data")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := sha256File(path)
	require.NoError(t, err)

	h := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(h[:]), got)

	_, err = sha256File("/nonexistent/file")
	assert.Error(t, err)
}

func TestMermaidASCIIAssetName(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         string
		wantErr      bool
	}{
		{"linux", "amd64", "mermaid-ascii_Linux_x86_64.tar.gz", false},
		{"linux", "arm64", "mermaid-ascii_Linux_arm64.tar.gz", false},
		{"darwin", "arm64", "mermaid-ascii_Darwin_arm64.tar.gz", false},
		{"windows", "amd64", "", true},
		{"linux", "riscv64", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			got, err := mermaidASCIIAssetName(tt.goos, tt.goarch)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, mermaidASCIIChecksums, got)
		})
	}
}

// tarGz builds an archive holding the given files.
func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o755,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	archive := tarGz(t, map[string]string{
		"README.md":                "docs",
		"release/bin/mermaid-ascii": "#!/bin/sh\necho hi\n",
	})

	require.NoError(t, extractTarGz(bytes.NewReader(archive), dir, "mermaid-ascii"))
	data, err := os.ReadFile(filepath.Join(dir, "mermaid-ascii"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho hi\n", string(data))
	assert.NoFileExists(t, filepath.Join(dir, "README.md"))
}

func TestExtractTarGz_Missing(t *testing.T) {
	archive := tarGz(t, map[string]string{"other": "x"})
	err := extractTarGz(bytes.NewReader(archive), t.TempDir(), "mermaid-ascii")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExtractTarGz_NotGzip(t *testing.T) {
	err := extractTarGz(strings.NewReader("plain"), t.TempDir(), "mermaid-ascii")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gzip")
}

type stubGetter struct {
	status int
	body   []byte
	err    error
	urls   []string
}

func (s *stubGetter) Get(url string) (*http.Response, error) {
	s.urls = append(s.urls, url)
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}, nil
}

func TestDownloadToTempFile(t *testing.T) {
	dir := t.TempDir()
	path, err := downloadToTempFile("https://example.test/a", dir, &stubGetter{status: http.StatusOK, body: []byte("payload")})
	require.NoError(t, err)
	defer os.Remove(path)

	assert.Equal(t, dir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = downloadToTempFile("https://example.test/b", dir, &stubGetter{status: http.StatusNotFound})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = downloadToTempFile("https://example.test/c", dir, &stubGetter{err: errors.New("offline")})
	assert.ErrorContains(t, err, "offline")
}

func TestInstallMermaidASCII_ChecksumMismatch(t *testing.T) {
	binDir := filepath.Join(t.TempDir(), "bin")
	getter := &stubGetter{
		status: http.StatusOK,
		body:   tarGz(t, map[string]string{"mermaid-ascii": "tampered"}),
	}
	inst := &toolInstaller{client: getter, releaseURL: "https://releases.test", goos: "linux", goarch: "amd64"}

	_, err := inst.installMermaidASCII(binDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.NoFileExists(t, filepath.Join(binDir, "mermaid-ascii"))
	require.Len(t, getter.urls, 1)
	assert.Equal(t, "https://releases.test/"+mermaidASCIIVersion+"/mermaid-ascii_Linux_x86_64.tar.gz", getter.urls[0])

	// The temporary download is cleaned up.
	entries, err := os.ReadDir(binDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInstallMermaidASCII_AlreadyInstalled(t *testing.T) {
	binDir := t.TempDir()
	dest := filepath.Join(binDir, "mermaid-ascii")
	require.NoError(t, os.WriteFile(dest, []byte("bin"), 0o755))

	getter := &stubGetter{}
	inst := &toolInstaller{client: getter, releaseURL: "https://releases.test"}
	got, err := inst.installMermaidASCII(binDir)
	assert.ErrorIs(t, err, errAlreadyInstalled)
	assert.Equal(t, dest, got)
	assert.Empty(t, getter.urls)
}

func TestInstallMermaidASCII_UnsupportedPlatform(t *testing.T) {
	inst := &toolInstaller{client: &stubGetter{}, goos: "plan9", goarch: "amd64"}
	_, err := inst.installMermaidASCII(t.TempDir())
	assert.ErrorContains(t, err, "unsupported OS")
}

func TestSignalRunningServer_NoPidFile(t *testing.T) {
	_, ok := signalRunningServer(filepath.Join(t.TempDir(), "pdc.pid"))
	assert.False(t, ok)
}

func TestSignalRunningServer_GarbagePid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdc.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))
	_, ok := signalRunningServer(path)
	assert.False(t, ok)
}

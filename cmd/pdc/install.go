package main

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const mermaidASCIIVersion = "1.1.0"

const mermaidASCIIReleaseURL = "https://github.com/AlexanderGrooff/mermaid-ascii/releases/download"

// SHA-256 checksums for mermaid-ascii v1.1.0 release assets.
var mermaidASCIIChecksums = map[string]string{
	"mermaid-ascii_Darwin_arm64.tar.gz":  "068d2ff869d4921655cab471500fffd8c3ed28155b100518ed3cf3835d53d3d0",
	"mermaid-ascii_Darwin_x86_64.tar.gz": "0cd4c9c01a03284fe866f39a1ce1aaee1e6a2fbd91deedc4ec254cb87622eec8",
	"mermaid-ascii_Linux_arm64.tar.gz":   "3b7d0a95141bfbca838e445ea802ffb7fba8873b3c4af498482c84f83526f2db",
	"mermaid-ascii_Linux_x86_64.tar.gz":  "838ea93d561b3bc83aa15531c6ed7d2d261a8edc521d5484f7e91fe831cc4c65",
}

type installFlags struct {
	listenAddr  string
	databaseURL string
	storageMode string
	force       bool
	skipTools   bool
}

func newInstallCmd(opts *rootOptions) *cobra.Command {
	var f installFlags
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write ~/.pdc/settings.yaml and download helper binaries",
		Long: `install persists the resolved configuration (including --log-level and
--llm-mode) to the settings file, downloads the mermaid-ascii renderer used
for terminal previews and asks a running server to reload.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstall(cmd, opts, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.listenAddr, "listen-addr", "", "HTTP listen address")
	fl.StringVar(&f.databaseURL, "database-url", "", "SQLite path, libsql:// URL or postgres:// DSN")
	fl.StringVar(&f.storageMode, "storage-mode", "", "object storage: disabled, local, minio")
	fl.BoolVar(&f.force, "force", false, "overwrite an existing settings file")
	fl.BoolVar(&f.skipTools, "skip-tools", false, "do not download mermaid-ascii")
	return cmd
}

func runInstall(cmd *cobra.Command, opts *rootOptions, f installFlags) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	cfg := opts.cfg
	if f.listenAddr != "" {
		cfg.ListenAddr = f.listenAddr
	}
	if f.databaseURL != "" {
		cfg.DatabaseURL = f.databaseURL
	}
	if f.storageMode != "" {
		cfg.Storage.Mode = f.storageMode
	}

	path := opts.settings
	if _, err := os.Stat(path); err == nil && !f.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	// Settings may carry API keys.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	fmt.Fprintf(out, "Config written to %s\n", path)

	if !f.skipTools {
		inst := &toolInstaller{
			client:     &http.Client{Timeout: 60 * time.Second},
			releaseURL: mermaidASCIIReleaseURL,
		}
		dest, err := inst.installMermaidASCII(cfg.BinDir)
		switch {
		case errors.Is(err, errAlreadyInstalled):
			fmt.Fprintf(out, "mermaid-ascii already installed at %s\n", dest)
		case err != nil:
			fmt.Fprintf(errOut, "Warning: %v; ASCII previews will use the built-in renderer\n", err)
		default:
			fmt.Fprintf(out, "mermaid-ascii %s installed to %s\n", mermaidASCIIVersion, dest)
		}
	}

	if pid, ok := signalRunningServer(pidPath()); ok {
		fmt.Fprintf(out, "Signaled running server (PID %d) to reload configuration\n", pid)
	} else {
		fmt.Fprintln(out, "Start the server with: pdc serve")
	}
	return nil
}

// signalRunningServer sends SIGHUP to the process recorded in pidFile.
func signalRunningServer(pidFile string) (int, bool) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return 0, false
	}
	return pid, true
}

var errAlreadyInstalled = errors.New("already installed")

// toolInstaller downloads and verifies release archives.
type toolInstaller struct {
	client     httpGetter
	releaseURL string
	goos       string // defaults to runtime.GOOS
	goarch     string // defaults to runtime.GOARCH
}

// installMermaidASCII places the mermaid-ascii binary in binDir and returns
// its path.
func (t *toolInstaller) installMermaidASCII(binDir string) (string, error) {
	destPath := filepath.Join(binDir, "mermaid-ascii")
	if _, err := os.Stat(destPath); err == nil {
		return destPath, errAlreadyInstalled
	}

	assetName, err := mermaidASCIIAssetName(t.platform())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", binDir, err)
	}

	url := fmt.Sprintf("%s/%s/%s", t.releaseURL, mermaidASCIIVersion, assetName)
	tmpPath, err := downloadToTempFile(url, binDir, t.client)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", assetName, err)
	}
	defer os.Remove(tmpPath)

	if err := verifyChecksum(tmpPath, assetName); err != nil {
		return "", err
	}

	archive, err := os.Open(tmpPath)
	if err != nil {
		return "", err
	}
	defer archive.Close()

	if err := extractTarGz(archive, binDir, "mermaid-ascii"); err != nil {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("extract %s: %w", assetName, err)
	}
	if err := os.Chmod(destPath, 0o755); err != nil {
		return "", err
	}
	return destPath, nil
}

func (t *toolInstaller) platform() (string, string) {
	goos, goarch := t.goos, t.goarch
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return goos, goarch
}

func verifyChecksum(path, assetName string) error {
	expected, ok := mermaidASCIIChecksums[assetName]
	if !ok {
		return fmt.Errorf("no known checksum for %s", assetName)
	}
	actual, err := sha256File(path)
	if err != nil {
		return fmt.Errorf("checksum %s: %w", assetName, err)
	}
	if actual != expected {
		return fmt.Errorf("checksum mismatch for %s (expected %s, got %s)", assetName, expected, actual)
	}
	return nil
}

// mermaidASCIIAssetName returns the release asset name for a platform.
func mermaidASCIIAssetName(goos, goarch string) (string, error) {
	var osName string
	switch goos {
	case "darwin":
		osName = "Darwin"
	case "linux":
		osName = "Linux"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported OS %q", goos)
	}

	var archName string
	switch goarch {
	case "amd64":
		archName = "x86_64"
	case "arm64":
		archName = "arm64"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported architecture %q", goarch)
	}
	return fmt.Sprintf("mermaid-ascii_%s_%s.tar.gz", osName, archName), nil
}

// extractTarGz extracts the regular file named targetName (matched by base
// name) from a tar.gz stream into destDir.
func extractTarGz(r io.Reader, destDir, targetName string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("file %q not found in archive", targetName)
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}
		if filepath.Base(hdr.Name) != targetName || hdr.Typeflag != tar.TypeReg {
			continue
		}

		destPath := filepath.Join(destDir, targetName)
		f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return fmt.Errorf("create %s: %w", destPath, err)
		}
		if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // bounded by tar header size
			f.Close()
			return fmt.Errorf("write %s: %w", destPath, err)
		}
		return f.Close()
	}
}

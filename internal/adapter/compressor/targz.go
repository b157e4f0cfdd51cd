package compressor

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/semmidev/mdump/internal/domain"
	"gopkg.in/yaml.v3"
)

// MetadataFile is the archive member holding the run metadata.
const MetadataFile = "mdump-manifest.yaml"

type TarGzArchiver struct {
	level int
}

func NewTarGz() *TarGzArchiver {
	return &TarGzArchiver{level: gzip.BestCompression}
}

// NewTarGzLevel uses a gzip level between gzip.HuffmanOnly and
// gzip.BestCompression.
func NewTarGzLevel(level int) (*TarGzArchiver, error) {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("invalid compression level %d", level)
	}
	return &TarGzArchiver{level: level}, nil
}

// Pack writes files as flat members of a new archive at archivePath. The
// archive must not exist yet; on failure the partial file is removed.
func (a *TarGzArchiver) Pack(archivePath string, files []domain.ArchiveFile, meta *domain.ArchiveMetadata) (err error) {
	destFile, err := os.OpenFile(archivePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if err != nil {
			destFile.Close()
			os.Remove(archivePath)
		}
	}()

	gzipWriter, err := gzip.NewWriterLevel(destFile, a.level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tarWriter := tar.NewWriter(gzipWriter)

	if meta != nil {
		if err = writeMetadata(tarWriter, meta); err != nil {
			return err
		}
	}

	for _, f := range files {
		if err = addFile(tarWriter, f); err != nil {
			return err
		}
	}

	if err = tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err = gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	if err = destFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync archive: %w", err)
	}
	if err = destFile.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	return nil
}

func writeMetadata(tw *tar.Writer, meta *domain.ArchiveMetadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	header := &tar.Header{
		Name:    MetadataFile,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: meta.CreatedAt,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write metadata header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func addFile(tw *tar.Writer, f domain.ArchiveFile) error {
	sourceFile, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	info, err := sourceFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", f.Path, err)
	}

	name := f.Name
	if name == "" {
		name = filepath.Base(f.Path)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", name, err)
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", name, err)
	}
	if _, err := io.Copy(tw, sourceFile); err != nil {
		return fmt.Errorf("failed to compress %s: %w", name, err)
	}
	return nil
}

// Unpack extracts the regular files and directories of archivePath into
// destDir and returns the embedded metadata, or nil when the archive has
// none. Members escaping destDir abort the extraction.
func (a *TarGzArchiver) Unpack(archivePath, destDir string) (*domain.ArchiveMetadata, error) {
	sourceFile, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	gzipReader, err := gzip.NewReader(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	root := filepath.Clean(destDir)
	tarReader := tar.NewReader(gzipReader)

	var meta *domain.ArchiveMetadata
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar stream: %w", err)
		}

		if header.Name == MetadataFile {
			meta, err = readMetadata(tarReader)
			if err != nil {
				return nil, err
			}
			continue
		}

		target := filepath.Join(root, header.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return nil, fmt.Errorf("path traversal detected: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := extractFile(tarReader, target); err != nil {
				return nil, err
			}
		default:
			// links and devices are never produced by Pack
		}
	}

	return meta, nil
}

func readMetadata(r io.Reader) (*domain.ArchiveMetadata, error) {
	var meta domain.ArchiveMetadata
	if err := yaml.NewDecoder(r).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &meta, nil
}

func extractFile(r io.Reader, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	destFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	return copyAndClose(destFile, r, filepath.Base(target))
}

// copyAndClose fills dst from r and closes it on every path. The close error
// is returned when the copy succeeded.
func copyAndClose(dst io.WriteCloser, r io.Reader, name string) error {
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return fmt.Errorf("failed to decompress %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	return nil
}

package compressor

import (
	"archive/tar"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/semmidev/mdump/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

func writeTarGz(path string, entries map[string]string) error {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range entries {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
			return err
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func TestTarGzArchiver(t *testing.T) {
	Convey("Given a TarGzArchiver", t, func() {
		archiver := NewTarGz()

		dir, err := os.MkdirTemp("", "mdump_targz_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		staging := filepath.Join(dir, "staging")
		So(os.Mkdir(staging, 0755), ShouldBeNil)

		files := []domain.ArchiveFile{
			{Path: filepath.Join(staging, "app_20250901_143022.sql"), Name: "app_20250901_143022.sql", Database: "app"},
			{Path: filepath.Join(staging, "logs_20250901_143022.sql"), Name: "logs_20250901_143022.sql", Database: "logs"},
		}
		So(os.WriteFile(files[0].Path, []byte("CREATE TABLE a (id INT);"), 0644), ShouldBeNil)
		So(os.WriteFile(files[1].Path, []byte("CREATE TABLE l (id INT);"), 0644), ShouldBeNil)

		meta := &domain.ArchiveMetadata{
			RunID:     "run-1",
			CreatedAt: time.Date(2025, 9, 1, 14, 30, 22, 0, time.UTC),
			Databases: []domain.ArchivedDatabase{
				{File: files[0].Name, Database: "app"},
				{File: files[1].Name, Database: "logs"},
			},
		}

		archivePath := filepath.Join(dir, "out.tar.gz")

		Convey("When packing and unpacking", func() {
			So(archiver.Pack(archivePath, files, meta), ShouldBeNil)

			dest := filepath.Join(dir, "extract")
			So(os.Mkdir(dest, 0755), ShouldBeNil)

			got, err := archiver.Unpack(archivePath, dest)
			So(err, ShouldBeNil)

			Convey("It should restore the flat files and the metadata", func() {
				content, err := os.ReadFile(filepath.Join(dest, "app_20250901_143022.sql"))
				So(err, ShouldBeNil)
				So(string(content), ShouldEqual, "CREATE TABLE a (id INT);")

				_, err = os.Stat(filepath.Join(dest, MetadataFile))
				So(os.IsNotExist(err), ShouldBeTrue)

				So(got, ShouldNotBeNil)
				So(got.RunID, ShouldEqual, "run-1")
				So(got.Databases, ShouldResemble, meta.Databases)
				So(got.CreatedAt.Equal(meta.CreatedAt), ShouldBeTrue)
			})
		})

		Convey("When the archive already exists", func() {
			So(os.WriteFile(archivePath, []byte("keep"), 0644), ShouldBeNil)

			err := archiver.Pack(archivePath, files, meta)
			So(err, ShouldNotBeNil)

			content, _ := os.ReadFile(archivePath)
			So(string(content), ShouldEqual, "keep")
		})

		Convey("When a source file is missing", func() {
			missing := append(files, domain.ArchiveFile{Path: filepath.Join(staging, "gone.sql"), Name: "gone.sql"})

			err := archiver.Pack(archivePath, missing, meta)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "failed to open source file")

			_, statErr := os.Stat(archivePath)
			So(os.IsNotExist(statErr), ShouldBeTrue)
		})

		Convey("When the archive has no metadata", func() {
			So(writeTarGz(archivePath, map[string]string{"shop.sql": "x"}), ShouldBeNil)

			got, err := archiver.Unpack(archivePath, dir)
			So(err, ShouldBeNil)
			So(got, ShouldBeNil)

			_, err = os.Stat(filepath.Join(dir, "shop.sql"))
			So(err, ShouldBeNil)
		})

		Convey("When a member escapes the destination", func() {
			So(writeTarGz(archivePath, map[string]string{"../evil.sql": "x"}), ShouldBeNil)

			dest := filepath.Join(dir, "extract")
			So(os.Mkdir(dest, 0755), ShouldBeNil)

			_, err := archiver.Unpack(archivePath, dest)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "path traversal")

			_, statErr := os.Stat(filepath.Join(dir, "evil.sql"))
			So(os.IsNotExist(statErr), ShouldBeTrue)
		})

		Convey("When the file is not gzip data", func() {
			So(os.WriteFile(archivePath, []byte("not a gzip file"), 0644), ShouldBeNil)

			_, err := archiver.Unpack(archivePath, dir)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "failed to create gzip reader")
		})

		Convey("When the level is out of range", func() {
			_, err := NewTarGzLevel(42)
			So(err, ShouldNotBeNil)
		})
	})
}

type closeFailWriter struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (w *closeFailWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func TestCopyAndClose(t *testing.T) {
	Convey("Given an extracted entry", t, func() {
		Convey("A failing close is reported", func() {
			dst := &closeFailWriter{closeErr: errors.New("no space left on device")}

			err := copyAndClose(dst, bytes.NewReader([]byte("CREATE TABLE t (id INT);")), "shop.sql")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "failed to close shop.sql: no space left on device")
			So(dst.closed, ShouldBeTrue)
		})

		Convey("A successful copy keeps the content", func() {
			dst := &closeFailWriter{}

			err := copyAndClose(dst, bytes.NewReader([]byte("data")), "shop.sql")
			So(err, ShouldBeNil)
			So(dst.String(), ShouldEqual, "data")
			So(dst.closed, ShouldBeTrue)
		})
	})
}

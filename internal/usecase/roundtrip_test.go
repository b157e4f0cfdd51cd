package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/semmidev/mdump/internal/adapter/compressor"
	"github.com/semmidev/mdump/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBackupRestoreRoundTrip(t *testing.T) {
	Convey("Given a backup of a and b", t, func() {
		root, err := os.MkdirTemp("", "mdump_roundtrip_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(root)

		archiver := compressor.NewTarGz()
		source := newFakeServer("a", "b", "skipme")

		backup := NewBackup(&fakeDumper{server: source}, archiver, nil, testLogger, WithStagingRoot(root))
		archivePath := filepath.Join(root, "full.tar.gz")
		result, err := backup.Execute(context.Background(), domain.BackupPlan{
			Databases: domain.SelectionSet{"a", "b"},
			Output:    ParseOutputSpec(archivePath),
		})
		So(err, ShouldBeNil)
		So(result.ArchivePath, ShouldEqual, archivePath)

		Convey("When restoring onto an empty server", func() {
			target := newFakeServer()
			schemas, err := ListSchemas(context.Background(), target)
			So(err, ShouldBeNil)
			So(domain.NewCatalog(schemas), ShouldBeEmpty)

			analysis, err := NewAnalyzer(archiver, testLogger, root).Analyze(context.Background(), archivePath, schemas)
			So(err, ShouldBeNil)

			prompter := &scriptedPrompter{}
			plan, err := ResolveConflicts(analysis, prompter)
			So(err, ShouldBeNil)

			restoreResult, err := NewRestore(target, &fakeLoader{server: target}, testLogger, nil).
				Execute(context.Background(), plan)
			So(err, ShouldBeNil)

			Convey("Both databases exist with their content and nobody was asked", func() {
				So(prompter.asked, ShouldBeEmpty)
				So(target.names(), ShouldResemble, []string{"a", "b"})
				So(target.databases["a"], ShouldEqual, "original a")
				So(target.databases["b"], ShouldEqual, "original b")
				So(restoreResult.Restored(), ShouldResemble, []string{"a", "b"})
			})

			Convey("No extraction directory is left behind", func() {
				entries, err := os.ReadDir(root)
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 1)
				So(entries[0].Name(), ShouldEqual, "full.tar.gz")
			})
		})
	})
}

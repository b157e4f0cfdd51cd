package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/semmidev/mdump/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAnalyze(t *testing.T) {
	Convey("Given an analyzer with a temporary root", t, func() {
		root, err := os.MkdirTemp("", "mdump_analyze_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(root)

		archivePath := filepath.Join(root, "backup.tar.gz")
		So(os.WriteFile(archivePath, []byte("stub"), 0644), ShouldBeNil)

		schemas := []string{"information_schema", "mysql", "shop"}
		tempRoot := filepath.Join(root, "tmp")
		So(os.Mkdir(tempRoot, 0755), ShouldBeNil)

		Convey("When the archive carries metadata", func() {
			archiver := &stubArchiver{
				files: map[string]string{
					"shop_20250901_143022.sql":         "shop",
					"logs_archive_20250901_143022.sql": "logs",
					"notes.txt":                        "ignored",
					"nested/":                          "",
				},
				meta: &domain.ArchiveMetadata{Databases: []domain.ArchivedDatabase{
					{File: "logs_archive_20250901_143022.sql", Database: "logs_20240101_000000"},
					{File: "shop_20250901_143022.sql", Database: "shop"},
				}},
			}
			analyzer := NewAnalyzer(archiver, testLogger, tempRoot)

			analysis, err := analyzer.Analyze(context.Background(), archivePath, schemas)
			So(err, ShouldBeNil)
			defer analysis.Close()

			Convey("It should use the recorded names in recorded order", func() {
				So(len(analysis.Entries), ShouldEqual, 2)
				So(analysis.Entries[0].DatabaseName, ShouldEqual, "logs_20240101_000000")
				So(analysis.Entries[1].DatabaseName, ShouldEqual, "shop")
			})

			Convey("It should classify against the server schemas", func() {
				So(analysis.Entries[0].Class, ShouldEqual, domain.ClassNew)
				So(analysis.Entries[1].Class, ShouldEqual, domain.ClassExisting)
				So(analysis.Existing(), ShouldResemble, []string{"shop"})
			})

			Convey("It should extract below the temporary root", func() {
				So(filepath.Dir(analysis.Workspace()), ShouldEqual, tempRoot)
				So(analysis.Entries[1].SourceFile, ShouldEqual,
					filepath.Join(analysis.Workspace(), "shop_20250901_143022.sql"))
				So(analysis.Entries[1].Size, ShouldEqual, 4)
			})

			Convey("Close should remove the extraction directory", func() {
				dir := analysis.Workspace()
				So(analysis.Close(), ShouldBeNil)
				_, statErr := os.Stat(dir)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When the archive has no metadata", func() {
			archiver := &stubArchiver{files: map[string]string{
				"shop_20250901_143022.sql": "shop",
				"crm.sql":                  "crm",
				"crm_20250901_143022.sql":  "crm again",
			}}
			analyzer := NewAnalyzer(archiver, testLogger, tempRoot)

			analysis, err := analyzer.Analyze(context.Background(), archivePath, schemas)
			So(err, ShouldBeNil)
			defer analysis.Close()

			Convey("It should infer names from file names and keep the first duplicate", func() {
				var names, files []string
				for _, e := range analysis.Entries {
					names = append(names, e.DatabaseName)
					files = append(files, filepath.Base(e.SourceFile))
				}
				So(names, ShouldResemble, []string{"crm", "shop"})
				So(files, ShouldResemble, []string{"crm.sql", "shop_20250901_143022.sql"})
			})
		})

		Convey("When a dump targets a system schema", func() {
			archiver := &stubArchiver{files: map[string]string{
				"mysql_20250901_143022.sql": "users",
				"crm_20250901_143022.sql":   "crm",
			}}
			analyzer := NewAnalyzer(archiver, testLogger, tempRoot)

			analysis, err := analyzer.Analyze(context.Background(), archivePath, schemas)
			So(err, ShouldBeNil)
			defer analysis.Close()

			Convey("It should be classed as existing so it goes through conflict resolution", func() {
				So(analysis.Entries[1].DatabaseName, ShouldEqual, "mysql")
				So(analysis.Entries[1].Class, ShouldEqual, domain.ClassExisting)
				So(analysis.Existing(), ShouldResemble, []string{"mysql"})

				prompter := &scriptedPrompter{decisions: []domain.Decision{domain.DecisionSkip}}
				plan, err := ResolveConflicts(analysis, prompter)
				So(err, ShouldBeNil)
				So(prompter.asked, ShouldResemble, []string{"mysql"})
				So(plan.Entries[1].Disposition, ShouldEqual, domain.DispositionSkip)
			})
		})

		Convey("When metadata records an empty database name", func() {
			archiver := &stubArchiver{
				files: map[string]string{"crm_20250901_143022.sql": "crm"},
				meta: &domain.ArchiveMetadata{Databases: []domain.ArchivedDatabase{
					{File: "crm_20250901_143022.sql", Database: " "},
				}},
			}
			analyzer := NewAnalyzer(archiver, testLogger, tempRoot)

			analysis, err := analyzer.Analyze(context.Background(), archivePath, schemas)
			So(err, ShouldBeNil)
			defer analysis.Close()

			Convey("It should fall back to the name in the file", func() {
				So(len(analysis.Entries), ShouldEqual, 1)
				So(analysis.Entries[0].DatabaseName, ShouldEqual, "crm")
			})
		})

		Convey("When the archive holds no dumps", func() {
			archiver := &stubArchiver{files: map[string]string{"readme.txt": "hi"}}
			analyzer := NewAnalyzer(archiver, testLogger, tempRoot)

			_, err := analyzer.Analyze(context.Background(), archivePath, schemas)

			var corrupt *domain.CorruptArchiveError
			So(errors.As(err, &corrupt), ShouldBeTrue)
			So(corrupt.Reason, ShouldEqual, "no dump files found")

			entries, _ := os.ReadDir(tempRoot)
			So(entries, ShouldBeEmpty)
		})

		Convey("When extraction fails", func() {
			archiver := &stubArchiver{err: errors.New("unexpected EOF")}
			analyzer := NewAnalyzer(archiver, testLogger, tempRoot)

			_, err := analyzer.Analyze(context.Background(), archivePath, schemas)

			var corrupt *domain.CorruptArchiveError
			So(errors.As(err, &corrupt), ShouldBeTrue)
			So(corrupt.Path, ShouldEqual, archivePath)

			entries, _ := os.ReadDir(tempRoot)
			So(entries, ShouldBeEmpty)
		})

		Convey("When the archive does not exist or is a directory", func() {
			analyzer := NewAnalyzer(&stubArchiver{}, testLogger, tempRoot)

			var corrupt *domain.CorruptArchiveError
			_, err := analyzer.Analyze(context.Background(), filepath.Join(root, "missing.tar.gz"), schemas)
			So(errors.As(err, &corrupt), ShouldBeTrue)

			_, err = analyzer.Analyze(context.Background(), root, schemas)
			So(errors.As(err, &corrupt), ShouldBeTrue)
			So(corrupt.Reason, ShouldEqual, "path is a directory")
		})
	})
}

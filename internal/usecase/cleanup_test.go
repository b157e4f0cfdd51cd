package usecase

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCleanup(t *testing.T) {
	Convey("Given archives of different ages on two targets", t, func() {
		now := time.Date(2025, 9, 30, 12, 0, 0, 0, time.Local)

		local := newMemoryStorage()
		local.files["mysql_backup_20250901_010000.tar.gz"] = now.AddDate(0, 0, -29)
		local.files["mysql_backup_20250929_010000.tar.gz"] = now.AddDate(0, 0, -1)
		local.files["notes.txt"] = now.AddDate(0, -6, 0)

		remote := newMemoryStorage()
		remote.failOld = true
		remote.files["mysql_backup_20250901_010000.tar.gz"] = now
		remote.files["mysql_backup_20250929_010000.tar.gz"] = now
		remote.files["unstamped.tar.gz"] = now

		uc := NewCleanup([]UploadTarget{{Name: "local", Storage: local}, {Name: "remote", Storage: remote}}, testLogger, 7)
		uc.now = func() time.Time { return now }

		Convey("When cleanup runs", func() {
			So(uc.Execute(context.Background()), ShouldBeNil)

			Convey("Only expired archives are deleted", func() {
				So(local.deleted, ShouldResemble, []string{"mysql_backup_20250901_010000.tar.gz"})
				So(local.files, ShouldContainKey, "notes.txt")
			})

			Convey("Targets without modification times are dated by file name", func() {
				So(remote.deleted, ShouldResemble, []string{"mysql_backup_20250901_010000.tar.gz"})
				So(remote.files, ShouldContainKey, "unstamped.tar.gz")
			})
		})

		Convey("When retention is disabled", func() {
			uc.retentionDays = 0
			So(uc.Execute(context.Background()), ShouldBeNil)
			So(local.deleted, ShouldBeEmpty)
			So(remote.deleted, ShouldBeEmpty)
		})
	})
}

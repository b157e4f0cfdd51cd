package usecase

import (
	"errors"
	"testing"

	"github.com/semmidev/mdump/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseSelection(t *testing.T) {
	Convey("Given a catalog of three databases", t, func() {
		catalog := domain.NewCatalog([]string{"app", "logs", "users"})

		Convey("all selects the full catalog in order", func() {
			set, err := ParseSelection("all", catalog)
			So(err, ShouldBeNil)
			So(set, ShouldResemble, domain.SelectionSet{"app", "logs", "users"})

			set, err = ParseSelection("  all ", catalog)
			So(err, ShouldBeNil)
			So(len(set), ShouldEqual, 3)
		})

		Convey("all is matched exactly", func() {
			_, err := ParseSelection("ALL", catalog)

			var selErr *domain.InvalidSelectionError
			So(errors.As(err, &selErr), ShouldBeTrue)
			So(selErr.Token, ShouldEqual, "ALL")
		})

		Convey("all must be the only token", func() {
			_, err := ParseSelection("all,1", catalog)
			So(err, ShouldNotBeNil)

			var selErr *domain.InvalidSelectionError
			So(errors.As(err, &selErr), ShouldBeTrue)
			So(selErr.Token, ShouldEqual, "all")
		})

		Convey("single indexes pick only those entries", func() {
			set, err := ParseSelection("1,3", catalog)
			So(err, ShouldBeNil)
			So(set, ShouldResemble, domain.SelectionSet{"app", "users"})
		})

		Convey("ranges are inclusive", func() {
			set, err := ParseSelection("2-3", catalog)
			So(err, ShouldBeNil)
			So(set, ShouldResemble, domain.SelectionSet{"logs", "users"})
		})

		Convey("duplicates collapse in first-seen order", func() {
			set, err := ParseSelection("3, 1-3 ,1", catalog)
			So(err, ShouldBeNil)
			So(set, ShouldResemble, domain.SelectionSet{"users", "app", "logs"})
		})

		Convey("whitespace inside a range is ignored", func() {
			set, err := ParseSelection(" 1 - 2 ", catalog)
			So(err, ShouldBeNil)
			So(set, ShouldResemble, domain.SelectionSet{"app", "logs"})
		})

		Convey("invalid selections name the offending token", func() {
			cases := map[string]string{
				"2-1":   "2-1",
				"0":     "0",
				"4":     "4",
				"1,x":   "x",
				"1-4":   "1-4",
				"1,,2":  "",
				"-2":    "-2",
				"1-2-3": "1-2-3",
				"1.5":   "1.5",
			}
			for input, token := range cases {
				_, err := ParseSelection(input, catalog)
				So(err, ShouldNotBeNil)

				var selErr *domain.InvalidSelectionError
				So(errors.As(err, &selErr), ShouldBeTrue)
				So(selErr.Token, ShouldEqual, token)
			}
		})

		Convey("an empty selection is an error", func() {
			_, err := ParseSelection("   ", catalog)
			var selErr *domain.InvalidSelectionError
			So(errors.As(err, &selErr), ShouldBeTrue)
		})
	})

	Convey("Given an empty catalog", t, func() {
		_, err := ParseSelection("all", domain.Catalog{})
		So(err, ShouldNotBeNil)
	})
}

func TestSelectByName(t *testing.T) {
	Convey("Given a catalog", t, func() {
		catalog := domain.NewCatalog([]string{"app", "logs", "users"})

		Convey("known names are kept in request order", func() {
			set, missing, err := SelectByName([]string{"users", "ghost", "app", "users"}, catalog)
			So(err, ShouldBeNil)
			So(set, ShouldResemble, domain.SelectionSet{"users", "app"})
			So(missing, ShouldResemble, []string{"ghost"})
		})

		Convey("no known names is an error", func() {
			_, missing, err := SelectByName([]string{"ghost"}, catalog)
			So(err, ShouldNotBeNil)
			So(missing, ShouldResemble, []string{"ghost"})
		})
	})
}

package usecase

import (
	"testing"
	"time"

	"github.com/semmidev/mdump/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

func analysisOf(entries ...AnalyzedEntry) *Analysis {
	return &Analysis{Entries: entries, run: NewRun(time.Now(), "")}
}

func entry(name string, class domain.Classification) AnalyzedEntry {
	return AnalyzedEntry{
		ManifestEntry: domain.ManifestEntry{DatabaseName: name, SourceFile: "/tmp/" + name + ".sql"},
		Class:         class,
	}
}

func dispositions(plan domain.RestorePlan) []domain.Disposition {
	out := make([]domain.Disposition, len(plan.Entries))
	for i, e := range plan.Entries {
		out[i] = e.Disposition
	}
	return out
}

func TestResolveConflicts(t *testing.T) {
	Convey("Given an archive with one new and two existing databases", t, func() {
		analysis := analysisOf(
			entry("a", domain.ClassExisting),
			entry("b", domain.ClassNew),
			entry("c", domain.ClassExisting),
		)

		Convey("Only existing databases are asked about, in order", func() {
			prompter := &scriptedPrompter{decisions: []domain.Decision{domain.DecisionOverwrite, domain.DecisionSkip}}

			plan, err := ResolveConflicts(analysis, prompter)
			So(err, ShouldBeNil)
			So(plan.Cancelled, ShouldBeFalse)
			So(prompter.asked, ShouldResemble, []string{"a", "c"})
			So(prompter.confirmed, ShouldResemble, []string{"a"})
			So(dispositions(plan), ShouldResemble, []domain.Disposition{
				domain.DispositionOverwrite, domain.DispositionNew, domain.DispositionSkip,
			})

			executable := plan.Executable()
			So(len(executable), ShouldEqual, 2)
			So(executable[0].DatabaseName, ShouldEqual, "a")
			So(executable[1].DatabaseName, ShouldEqual, "b")
		})

		Convey("Cancel abandons the whole plan", func() {
			prompter := &scriptedPrompter{decisions: []domain.Decision{domain.DecisionCancel}}

			plan, err := ResolveConflicts(analysis, prompter)
			So(err, ShouldBeNil)
			So(plan.Cancelled, ShouldBeTrue)
			So(prompter.asked, ShouldResemble, []string{"a"})
			So(plan.Executable(), ShouldBeEmpty)
		})

		Convey("A declined overwrite asks again for the same database", func() {
			prompter := &scriptedPrompter{
				decisions:     []domain.Decision{domain.DecisionOverwrite, domain.DecisionSkip, domain.DecisionSkip},
				confirmations: []bool{false},
			}

			plan, err := ResolveConflicts(analysis, prompter)
			So(err, ShouldBeNil)
			So(prompter.asked, ShouldResemble, []string{"a", "a", "c"})
			So(plan.Entries[0].Disposition, ShouldEqual, domain.DispositionSkip)
		})

		Convey("A prompt failure cancels the plan", func() {
			prompter := &scriptedPrompter{decisions: []domain.Decision{domain.DecisionSkip}}

			plan, err := ResolveConflicts(analysis, prompter)
			So(err, ShouldNotBeNil)
			So(plan.Cancelled, ShouldBeTrue)
		})
	})

	Convey("Given an archive of new databases only", t, func() {
		analysis := analysisOf(entry("a", domain.ClassNew), entry("b", domain.ClassNew))
		prompter := &scriptedPrompter{}

		plan, err := ResolveConflicts(analysis, prompter)
		So(err, ShouldBeNil)
		So(prompter.asked, ShouldBeEmpty)
		So(len(plan.Executable()), ShouldEqual, 2)
	})
}

func TestFixedPolicy(t *testing.T) {
	Convey("Given a fixed policy", t, func() {
		analysis := analysisOf(entry("a", domain.ClassExisting), entry("b", domain.ClassNew))

		Convey("overwrite requires the yes flag", func() {
			_, err := NewFixedPolicy(domain.DecisionOverwrite, false)
			So(err, ShouldNotBeNil)

			policy, err := NewFixedPolicy(domain.DecisionOverwrite, true)
			So(err, ShouldBeNil)

			plan, err := ResolveConflicts(analysis, policy)
			So(err, ShouldBeNil)
			So(dispositions(plan), ShouldResemble, []domain.Disposition{domain.DispositionOverwrite, domain.DispositionNew})
		})

		Convey("skip leaves existing databases alone", func() {
			policy, err := NewFixedPolicy(domain.DecisionSkip, false)
			So(err, ShouldBeNil)

			plan, err := ResolveConflicts(analysis, policy)
			So(err, ShouldBeNil)
			So(dispositions(plan), ShouldResemble, []domain.Disposition{domain.DispositionSkip, domain.DispositionNew})
		})
	})
}

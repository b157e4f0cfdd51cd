package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/semmidev/mdump/internal/domain"
	"github.com/semmidev/mdump/internal/usecase"
	"golang.org/x/term"
)

var (
	titleColor = color.New(color.FgBlue, color.Bold)
	indexColor = color.New(color.FgCyan)
	nameColor  = color.New(color.FgMagenta)
	sizeColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
)

// ErrNoSelection is returned when the operator leaves the selection prompt
// empty.
var ErrNoSelection = errors.New("no databases selected")

// Terminal is the line based operator interface. Prompts and tables go to
// out; answers are read one line at a time from in.
type Terminal struct {
	in       *bufio.Reader
	out      io.Writer
	password func() ([]byte, error)
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{
		in:  bufio.NewReader(in),
		out: out,
	}
	t.password = t.readLine
	return t
}

// Stdio returns a Terminal on the process's standard streams. Passwords are
// read without echo when stdin is a terminal.
func Stdio() *Terminal {
	t := NewTerminal(os.Stdin, os.Stdout)
	if IsInteractive() {
		t.password = func() ([]byte, error) {
			defer fmt.Fprintln(t.out)
			return term.ReadPassword(int(os.Stdin.Fd()))
		}
	}
	return t
}

func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (t *Terminal) readLine() ([]byte, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func (t *Terminal) ask(question string) (string, error) {
	fmt.Fprint(t.out, question)
	line, err := t.readLine()
	if err != nil {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(string(line)), nil
}

func (t *Terminal) Password(user, host string) (string, error) {
	fmt.Fprintf(t.out, "Password for %s@%s: ", user, host)
	secret, err := t.password()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(secret), nil
}

// Confirm asks a yes/no question. An empty answer takes def.
func (t *Terminal) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}

	for {
		answer, err := t.ask(fmt.Sprintf("%s %s: ", question, hint))
		if err != nil {
			return false, err
		}

		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		warnColor.Fprintln(t.out, "Please answer y or n")
	}
}

type CatalogRow struct {
	Index int
	Name  string
	Size  string
}

func (t *Terminal) ShowCatalog(rows []CatalogRow) {
	if len(rows) == 0 {
		warnColor.Fprintln(t.out, "No user databases found")
		return
	}

	width := len("Database Name")
	for _, r := range rows {
		if len(r.Name) > width {
			width = len(r.Name)
		}
	}

	titleColor.Fprintln(t.out, "Available Databases")
	fmt.Fprintf(t.out, "%-4s %-*s  %s\n", "#", width, "Database Name", "Size")
	for _, r := range rows {
		indexColor.Fprintf(t.out, "%-4d ", r.Index)
		nameColor.Fprintf(t.out, "%-*s  ", width, r.Name)
		sizeColor.Fprintln(t.out, r.Size)
	}
}

// SelectDatabases asks for a selection until a valid one is confirmed. An
// empty answer returns ErrNoSelection.
func (t *Terminal) SelectDatabases(catalog domain.Catalog) (domain.SelectionSet, error) {
	warnColor.Fprintln(t.out, "\nSelect databases to backup:")
	dimColor.Fprintln(t.out, "Options:")
	dimColor.Fprintln(t.out, "- Individual numbers: 1,3,5")
	dimColor.Fprintln(t.out, "- Ranges: 1-3")
	dimColor.Fprintln(t.out, "- Combinations: 1,3-5,7")
	dimColor.Fprintln(t.out, "- 'all' for all databases")
	dimColor.Fprintln(t.out, "- Enter to exit")

	for {
		answer, err := t.ask("\nYour selection: ")
		if err != nil {
			return nil, err
		}
		if answer == "" {
			return nil, ErrNoSelection
		}

		set, err := usecase.ParseSelection(answer, catalog)
		if err != nil {
			errColor.Fprintln(t.out, err)
			warnColor.Fprintln(t.out, "Please try again")
			continue
		}

		sizeColor.Fprintln(t.out, "\nSelected databases:")
		for _, db := range set {
			fmt.Fprintf(t.out, "  • %s\n", db)
		}

		ok, err := t.Confirm("\nContinue with this selection?", true)
		if err != nil {
			return nil, err
		}
		if ok {
			return set, nil
		}
	}
}

func (t *Terminal) ShowRestorePlan(analysis *usecase.Analysis) {
	titleColor.Fprintf(t.out, "\nFound %d database backup(s):\n", len(analysis.Entries))

	width := len("Database Name")
	for _, e := range analysis.Entries {
		if len(e.DatabaseName) > width {
			width = len(e.DatabaseName)
		}
	}

	fmt.Fprintf(t.out, "%-*s  %12s  %s\n", width, "Database Name", "File Size", "Status")
	for _, e := range analysis.Entries {
		indexColor.Fprintf(t.out, "%-*s  ", width, e.DatabaseName)
		sizeColor.Fprintf(t.out, "%12s  ", fmt.Sprintf("%.1f KB", float64(e.Size)/1024))
		status := sizeColor
		if e.Class == domain.ClassExisting {
			status = warnColor
		}
		status.Fprintln(t.out, e.Class)
	}
}

// ChooseDisposition asks what to do with a database that already exists.
// Empty input skips; anything unrecognised is asked again.
func (t *Terminal) ChooseDisposition(database string) (domain.Decision, error) {
	warnColor.Fprintf(t.out, "\nDatabase '%s' already exists\n", database)

	for {
		answer, err := t.ask("What would you like to do? [overwrite/skip/cancel] (skip): ")
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return domain.DecisionSkip, nil
		}

		if decision, ok := domain.ParseDecision(strings.ToLower(answer)); ok {
			return decision, nil
		}
		errColor.Fprintf(t.out, "Please choose overwrite, skip or cancel\n")
	}
}

func (t *Terminal) ConfirmOverwrite(database string) (bool, error) {
	question := fmt.Sprintf("This drops '%s' and every table in it. Continue?", database)
	return t.Confirm(errColor.Sprint(question), false)
}

// FormatSize renders a database size for the catalog listing.
func FormatSize(bytes int64, err error) string {
	switch {
	case err != nil:
		return "N/A"
	case bytes < 1024*1024:
		return "< 1 MB"
	default:
		return fmt.Sprintf("%.2f MB", float64(bytes)/(1024*1024))
	}
}

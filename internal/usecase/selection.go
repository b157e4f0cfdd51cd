package usecase

import (
	"strconv"
	"strings"

	"github.com/semmidev/mdump/internal/domain"
)

// ParseSelection turns a selection such as "1,3-5,7" or "all" into the
// matching database names of catalog. Indexes are 1-based, ranges inclusive,
// and repeated indexes keep their first position.
func ParseSelection(selection string, catalog domain.Catalog) (domain.SelectionSet, error) {
	if strings.TrimSpace(selection) == "" {
		return nil, &domain.InvalidSelectionError{Reason: "no databases selected"}
	}
	if len(catalog) == 0 {
		return nil, &domain.InvalidSelectionError{Reason: "no databases available"}
	}

	tokens := strings.Split(selection, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}

	for _, token := range tokens {
		if token == "all" {
			if len(tokens) != 1 {
				return nil, &domain.InvalidSelectionError{Token: token, Reason: "all must be the only token"}
			}
			return domain.SelectionSet(catalog.Names()), nil
		}
	}

	seen := make(map[int]bool)
	var set domain.SelectionSet
	add := func(index int) {
		if seen[index] {
			return
		}
		seen[index] = true
		set = append(set, catalog[index-1].Name)
	}

	for _, token := range tokens {
		start, end, err := parseToken(token, len(catalog))
		if err != nil {
			return nil, err
		}
		for i := start; i <= end; i++ {
			add(i)
		}
	}

	if len(set) == 0 {
		return nil, &domain.InvalidSelectionError{Reason: "no databases selected"}
	}
	return set, nil
}

func parseToken(token string, size int) (int, int, error) {
	if token == "" {
		return 0, 0, &domain.InvalidSelectionError{Token: token, Reason: "empty token"}
	}

	lo, hi, isRange := strings.Cut(token, "-")
	start, err := parseIndex(lo, token, size)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return start, start, nil
	}

	end, err := parseIndex(hi, token, size)
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, &domain.InvalidSelectionError{Token: token, Reason: "reversed range"}
	}
	return start, end, nil
}

func parseIndex(s, token string, size int) (int, error) {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, &domain.InvalidSelectionError{Token: token, Reason: "not a number or range"}
		}
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &domain.InvalidSelectionError{Token: token, Reason: "not a number or range"}
	}
	if n < 1 || n > size {
		return 0, &domain.InvalidSelectionError{Token: token, Reason: "out of range 1-" + strconv.Itoa(size)}
	}
	return n, nil
}

// SelectByName keeps the requested names that exist in catalog, in the
// order requested. Unknown names are returned separately.
func SelectByName(names []string, catalog domain.Catalog) (domain.SelectionSet, []string, error) {
	seen := make(map[string]bool)
	var set domain.SelectionSet
	var missing []string

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if catalog.Contains(name) {
			set = append(set, name)
		} else {
			missing = append(missing, name)
		}
	}

	if len(set) == 0 {
		return nil, missing, &domain.InvalidSelectionError{
			Token:  strings.Join(names, ","),
			Reason: "none of the requested databases exist",
		}
	}
	return set, missing, nil
}

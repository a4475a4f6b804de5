package branchver

import (
	"errors"
	"regexp"
	"slices"
	"sort"
	"strconv"
)

// DefaultLastTagPattern matches any tag ending with a number.
const DefaultLastTagPattern = `(\d+)$`

// FilterAndSortTags keeps the tags containing a match of pattern and orders
// them by the integer captured by the first group, highest first. Tags with
// the same number keep their relative order.
func FilterAndSortTags(pattern *regexp.Regexp, tags []string) ([]string, error) {
	if pattern.NumSubexp() < 1 {
		return nil, &TagPatternError{
			Pattern: pattern.String(),
			Reason:  "at least one numeric capturing group is required",
		}
	}

	type keyedTag struct {
		name string
		key  int
	}

	var matched []keyedTag
	for _, tag := range tags {
		m := pattern.FindStringSubmatch(tag)
		if m == nil {
			continue
		}
		key, err := tagNumber(pattern, tag, m[1])
		if err != nil {
			return nil, err
		}
		matched = append(matched, keyedTag{name: tag, key: key})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].key > matched[j].key
	})

	sorted := make([]string, len(matched))
	for i, t := range matched {
		sorted[i] = t.name
	}
	return sorted, nil
}

// LastMatchingTag returns the first tag of FilterAndSortTags.
func LastMatchingTag(pattern *regexp.Regexp, tags []string) (string, bool, error) {
	sorted, err := FilterAndSortTags(pattern, tags)
	if err != nil || len(sorted) == 0 {
		return "", false, err
	}
	return sorted[0], true, nil
}

// WithTagEquivalents adds the expanded forms of major and major.minor tags
// so that a "2" tag is found by a "2.0.(\d+)" pattern. Duplicates are
// dropped, first occurrence wins.
func WithTagEquivalents(tags []string) []string {
	var expanded []string
	for _, tag := range tags {
		v, err := ParseVersion(tag)
		if err == nil && len(v.equivalents) > 0 {
			expanded = append(expanded, v.equivalents...)
			continue
		}
		expanded = append(expanded, tag)
	}

	seen := make(map[string]struct{}, len(expanded))
	return slices.DeleteFunc(expanded, func(tag string) bool {
		if _, dup := seen[tag]; dup {
			return true
		}
		seen[tag] = struct{}{}
		return false
	})
}

func tagNumber(pattern *regexp.Regexp, tag, group string) (int, error) {
	n, err := strconv.Atoi(group)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, &NumberOverflowError{Value: group}
	}
	return 0, &TagPatternError{
		Pattern: pattern.String(),
		Tag:     tag,
		Reason:  "first capturing group is not a number",
	}
}

package service

import "regexp"

var cityAbbreviations = []struct {
	pattern *regexp.Regexp
	expand  string
}{
	{regexp.MustCompile(`(?i)\bSt\.? `), "Saint "},
	{regexp.MustCompile(`(?i)\bMt\.? `), "Mount "},
	{regexp.MustCompile(`(?i)\bFt\.? `), "Fort "},
	{regexp.MustCompile(`(?i)\bN\.? `), "North "},
	{regexp.MustCompile(`(?i)\bS\.? `), "South "},
	{regexp.MustCompile(`(?i)\bMc `), "Mc"},
	{regexp.MustCompile(`(?i)\bSprgs`), "Springs"},
}

// ExpandCityAbbreviations spells out common abbreviations in a city name and
// reports whether anything changed.
func ExpandCityAbbreviations(city string) (string, bool) {
	expanded := city
	for _, a := range cityAbbreviations {
		expanded = a.pattern.ReplaceAllLiteralString(expanded, a.expand)
	}
	return expanded, expanded != city
}

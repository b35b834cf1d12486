// Package nlmap maps a natural-language question onto a catalogue template
// and its parameters: keyword rules first, then the LLM, then a fixed default.
package nlmap

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Template ids of the embedded catalogue.
const (
	TemplateCompareRain     = "compare_rain_and_top_crops"
	TemplateDistrictHighLow = "district_high_low"
	TemplateTrendCorr       = "trend_corr"
	TemplatePolicyArgs      = "policy_args"
	TemplateDistrictVsState = "district_vs_state"
)

// CerealFilter is the CEREAL_WHERE value used when a question mentions cereals.
const CerealFilter = "AND Crop IN ('Wheat','Rice','Maize')"

// States lists the state and union territory names recognised in questions.
var States = []string{
	"Punjab", "Rajasthan", "Uttar Pradesh", "Bihar", "Maharashtra", "Karnataka", "Kerala",
	"Tamil Nadu", "Andhra Pradesh", "Odisha", "Jharkhand", "Himachal Pradesh", "Assam",
	"West Bengal", "Gujarat", "Madhya Pradesh", "Telangana", "Chhattisgarh", "Uttarakhand",
	"Haryana", "Sikkim", "Tripura", "Nagaland", "Manipur", "Meghalaya", "Mizoram",
	"Andaman and Nicobar Islands", "Dadra and Nagar Haveli", "Daman and Diu", "Lakshadweep",
	"Puducherry", "Delhi", "Jammu and Kashmir", "Ladakh",
}

var (
	yearPattern   = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	lastNPattern  = regexp.MustCompile(`(?i)last\s+(\d+)\s+years`)
	topMPattern   = regexp.MustCompile(`(?i)top\s+(\d+)`)
	cropPattern   = regexp.MustCompile(`(?i)\b(rice|wheat|maize|bajra|jowar|ragi|sugarcane|cotton)\b`)
	cerealPattern = regexp.MustCompile(`(?i)\bcereals?\b`)
)

// ExtractStates returns the states named in text in order of their first
// appearance, without duplicates.
func ExtractStates(text string) []string {
	lower := strings.ToLower(text)
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, s := range States {
		if i := strings.Index(lower, strings.ToLower(s)); i >= 0 {
			hits = append(hits, hit{s, i})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

// ExtractYears returns the distinct four-digit years in text, ascending.
func ExtractYears(text string) []int {
	seen := map[int]bool{}
	var years []int
	for _, m := range yearPattern.FindAllString(text, -1) {
		y, _ := strconv.Atoi(m)
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

// ExtractCounts returns N from "last N years" and M from "top M"; zero when absent.
func ExtractCounts(text string) (lastN, topM int) {
	if m := lastNPattern.FindStringSubmatch(text); m != nil {
		lastN, _ = strconv.Atoi(m[1])
	}
	if m := topMPattern.FindStringSubmatch(text); m != nil {
		topM, _ = strconv.Atoi(m[1])
	}
	return lastN, topM
}

// ExtractCrops returns the crops named in text, title-cased, in order.
func ExtractCrops(text string) []string {
	seen := map[string]bool{}
	var crops []string
	for _, m := range cropPattern.FindAllString(text, -1) {
		c := strings.ToUpper(m[:1]) + strings.ToLower(m[1:])
		if !seen[c] {
			seen[c] = true
			crops = append(crops, c)
		}
	}
	return crops
}

// yearSpan returns the number of years covered by the first and last of
// years, or zero when fewer than two are given.
func yearSpan(years []int) int {
	if len(years) < 2 {
		return 0
	}
	return years[len(years)-1] - years[0] + 1
}

func orDefault(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}

// ParseRules maps question with keyword rules. ok is false when no rule applies.
// Optional parameters that the question does not supply are left out. A year
// range such as "from 2008 to 2014" sets the window when "last N years" is
// absent. A comparison naming fewer than two states falls through to the
// later rules.
func ParseRules(question string) (m Mapping, ok bool) {
	q := strings.ToLower(question)
	states := ExtractStates(question)
	crops := ExtractCrops(question)
	lastN, topM := ExtractCounts(question)
	lastN = orDefault(lastN, yearSpan(ExtractYears(question)))

	switch {
	case ((strings.Contains(q, "compare") && strings.Contains(q, "rain")) || strings.Contains(q, "average annual rainfall")) &&
		len(states) >= 2:
		p := map[string]any{
			"STATE_A": states[0],
			"STATE_B": states[1],
			"N_YEARS": orDefault(lastN, 10),
			"TOP_M":   orDefault(topM, 3),
		}
		if cerealPattern.MatchString(question) {
			p["CEREAL_WHERE"] = CerealFilter
		}
		return Mapping{TemplateID: TemplateCompareRain, Params: p, Source: SourceRules}, true

	case strings.Contains(q, "trend") || strings.Contains(q, "correlat"):
		state := "Punjab"
		if len(states) > 0 {
			state = states[0]
		}
		p := map[string]any{"STATE": state, "N_YEARS": orDefault(lastN, 8)}
		if len(crops) > 0 {
			p["CROP_NAME"] = crops[0]
		}
		return Mapping{TemplateID: TemplateTrendCorr, Params: p, Source: SourceRules}, true

	case strings.Contains(q, "highest") && strings.Contains(q, "lowest") && strings.Contains(q, "district"):
		if len(states) < 2 || len(crops) == 0 {
			return Mapping{}, false
		}
		return Mapping{TemplateID: TemplateDistrictHighLow, Params: map[string]any{
			"STATE_A":   states[0],
			"STATE_B":   states[1],
			"CROP_NAME": crops[0],
		}, Source: SourceRules}, true

	case strings.Contains(q, "policy") || strings.Contains(q, "argument"):
		if len(states) == 0 || len(crops) < 2 {
			return Mapping{}, false
		}
		return Mapping{TemplateID: TemplatePolicyArgs, Params: map[string]any{
			"STATE":   states[0],
			"CROP_A":  crops[0],
			"CROP_B":  crops[1],
			"N_YEARS": orDefault(lastN, 10),
		}, Source: SourceRules}, true
	}
	return Mapping{}, false
}

package params

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// Finding records a raw parameter value that libinjection fingerprints as SQL.
//
// Findings are advisory: the class grammar decides acceptance. A filter
// expression such as "AND Crop IN ('Wheat')" is SQL by construction and is
// expected to be flagged.
type Finding struct {
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
}

// Screen runs libinjection over every string value in params, in name order.
func Screen(params map[string]any) []Finding {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var findings []Finding
	for _, name := range names {
		s, ok := params[name].(string)
		if !ok {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(s); isSQLi {
			findings = append(findings, Finding{Name: name, Fingerprint: string(fingerprint)})
		}
	}
	return findings
}

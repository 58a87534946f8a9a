package validation

// Finding is one rule violation or advisory.
type Finding struct {
	RuleID         string   `json:"ruleId"`
	Clause         string   `json:"clause"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	Location       string   `json:"location"`
	Recommendation string   `json:"recommendation"`
}

// Evidence is a key/value fact recorded while validating.
type Evidence struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Evidence keys.
const (
	EvidenceEntryCount    = "entry_count"
	EvidencePageCount     = "page_count"
	EvidenceArchiveDigest = "archive_digest"
	EvidenceProfileID     = "profile_id"
)

type Report struct {
	ProfileID      string     `json:"profileId"`
	ProfileVersion string     `json:"profileVersion"`
	Passed         bool       `json:"passed"`
	Findings       []Finding  `json:"findings"`
	Evidence       []Evidence `json:"evidence"`
}

// HasRule reports whether any finding carries id.
func (r *Report) HasRule(id string) bool {
	_, ok := r.Finding(id)
	return ok
}

// Finding returns the first finding with the given rule id.
func (r *Report) Finding(id string) (Finding, bool) {
	for _, f := range r.Findings {
		if f.RuleID == id {
			return f, true
		}
	}
	return Finding{}, false
}

// EvidenceValue returns the value recorded under key.
func (r *Report) EvidenceValue(key string) (string, bool) {
	for _, e := range r.Evidence {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Count returns the number of findings with severity s.
func (r *Report) Count(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

func passed(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == Error {
			return false
		}
	}
	return true
}

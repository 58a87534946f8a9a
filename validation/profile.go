package validation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Severity orders findings. Only Error fails a Report.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "Info"
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	switch s {
	case Info, Warning, Error:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("validation: unknown severity %d", int(s))
}

// UnmarshalText accepts the severity names in any letter case.
func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "info":
		*s = Info
	case "warning", "warn":
		*s = Warning
	case "error":
		*s = Error
	default:
		return fmt.Errorf("validation: unknown severity %q", text)
	}
	return nil
}

// Profile names the rules a validation run reports against. Rules listed
// here override the clause and recommendation of matching findings.
type Profile struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	Version     string `json:"version" yaml:"version" toml:"version"`
	Description string `json:"description" yaml:"description" toml:"description"`
	Rules       []Rule `json:"rules" yaml:"rules" toml:"rules"`
}

type Rule struct {
	RuleID         string   `json:"ruleId" yaml:"ruleId" toml:"ruleId"`
	Clause         string   `json:"clause" yaml:"clause" toml:"clause"`
	Severity       Severity `json:"severity" yaml:"severity" toml:"severity"`
	Summary        string   `json:"summary" yaml:"summary" toml:"summary"`
	Recommendation string   `json:"recommendation" yaml:"recommendation" toml:"recommendation"`
}

// Rule returns the rule with the given id.
func (p *Profile) Rule(id string) (Rule, bool) {
	if p == nil {
		return Rule{}, false
	}
	for _, r := range p.Rules {
		if r.RuleID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Format is the on-disk encoding of a profile.
type Format int

const (
	FormatJSONC Format = iota
	FormatYAML
	FormatTOML
)

// FormatFromPath picks a Format from the file extension. Unknown extensions
// are read as JSONC, which also covers plain JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSONC
	}
}

// ParseProfile decodes a profile. JSONC input may carry comments and
// trailing commas.
func ParseProfile(data []byte, format Format) (*Profile, error) {
	var p Profile
	var err error
	switch format {
	case FormatJSONC:
		err = json.Unmarshal(jsonc.ToJSON(data), &p)
	case FormatYAML:
		err = yaml.Unmarshal(data, &p)
	case FormatTOML:
		err = toml.NewDecoder(bytes.NewReader(data)).Decode(&p)
	default:
		return nil, fmt.Errorf("validation: unknown profile format %d", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if strings.TrimSpace(p.ID) == "" {
		return nil, fmt.Errorf("parsing profile: id is empty")
	}
	seen := make(map[string]struct{}, len(p.Rules))
	for i, r := range p.Rules {
		if strings.TrimSpace(r.RuleID) == "" {
			return nil, fmt.Errorf("parsing profile: rule %d has no ruleId", i)
		}
		if _, dup := seen[r.RuleID]; dup {
			return nil, fmt.Errorf("parsing profile: duplicate rule %q", r.RuleID)
		}
		seen[r.RuleID] = struct{}{}
	}
	return &p, nil
}

// ReadProfileFile reads and parses a profile file; the format follows the
// extension.
func ReadProfileFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	p, err := ParseProfile(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

//go:embed profiles/emr-ofd-h.jsonc
var defaultProfileData []byte

// DefaultProfile returns a fresh copy of the built-in EMR OFD-H profile.
func DefaultProfile() *Profile {
	p, err := ParseProfile(defaultProfileData, FormatJSONC)
	if err != nil {
		panic("validation: embedded profile is invalid: " + err.Error())
	}
	return p
}

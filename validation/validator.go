package validation

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	ofd "github.com/logicossoftware/go-ofd"
)

// Validator checks OFD containers against a Profile. A Validator holds only
// configuration and may be shared between goroutines.
type Validator struct {
	logger    *slog.Logger
	limits    ofd.Limits
	docType   string
	namespace string
	docRoot   string
}

type Option func(*Validator)

func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithLimits bounds how much of the container is loaded.
func WithLimits(l ofd.Limits) Option {
	return func(v *Validator) { v.limits = l }
}

// WithExpectedDocType replaces the required DocType, "OFD-H" by default.
func WithExpectedDocType(docType string) Option {
	return func(v *Validator) { v.docType = docType }
}

// WithExpectedNamespace replaces the namespace every XML root must carry.
func WithExpectedNamespace(ns string) Option {
	return func(v *Validator) { v.namespace = ns }
}

func New(opts ...Option) *Validator {
	v := &Validator{
		docType:   ofd.DefaultDocType,
		namespace: ofd.Namespace,
		docRoot:   ofd.DefaultDocumentID + "/Document.xml",
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.New(slog.DiscardHandler)
	}
	return v
}

// Validate buffers r, loads it as an OFD container and runs ValidateArchive.
// Only argument errors and containers that cannot be unzipped are returned
// as errors; every other defect becomes a Finding.
func (v *Validator) Validate(ctx context.Context, r io.Reader, p *Profile) (*Report, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: reader is nil", ofd.ErrInvalidArgument)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: profile is nil", ofd.ErrInvalidArgument)
	}
	a, err := ofd.Load(ctx, r, ofd.WithReadLimits(v.limits), ofd.WithReadLogger(v.logger))
	if err != nil {
		return nil, err
	}
	return v.ValidateArchive(ctx, a, p)
}

// ValidateArchive runs the validation pipeline over a:
//  1. Structure issues, one finding each
//  2. OFD.xml DocType and DocRoot
//  3. Encoding, well-formedness and namespace of every .xml entry
//  4. A full document read with image resource integrity
//  5. Advisory warnings for signatures, encryption and version history
//
// Profile rules adjust the clause and recommendation of stages 2 to 5 only.
// ctx is checked between stages.
func (v *Validator) ValidateArchive(ctx context.Context, a *ofd.Archive, p *Profile) (*Report, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: archive is nil", ofd.ErrInvalidArgument)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: profile is nil", ofd.ErrInvalidArgument)
	}
	st := &run{validator: v, archive: a, profile: p}
	st.evidence(EvidenceEntryCount, strconv.Itoa(a.Len()))

	stages := []func(){
		st.checkStructure,
		st.checkRoot,
		st.checkXMLEntries,
		st.checkDocument,
		st.checkAdvisories,
	}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stage()
	}
	st.evidence(EvidenceArchiveDigest, archiveDigest(a))
	st.evidence(EvidenceProfileID, p.ID)

	report := &Report{
		ProfileID:      p.ID,
		ProfileVersion: p.Version,
		Passed:         passed(st.findings),
		Findings:       st.findings,
		Evidence:       st.evidenceList,
	}
	v.logger.Debug("validation: finished",
		"profile", p.ID,
		"passed", report.Passed,
		"errors", report.Count(Error),
		"warnings", report.Count(Warning))
	return report, nil
}

// run is the state of one ValidateArchive call.
type run struct {
	validator    *Validator
	archive      *ofd.Archive
	profile      *Profile
	findings     []Finding
	evidenceList []Evidence
}

func (r *run) evidence(key, value string) {
	r.evidenceList = append(r.evidenceList, Evidence{Key: key, Value: value})
}

// add records f. A profile rule with the same id may override its clause
// and recommendation; severity never changes. Structure findings are
// appended directly and keep their fixed clause and recommendation.
func (r *run) add(f Finding) {
	if rule, ok := r.profile.Rule(f.RuleID); ok {
		if rule.Clause != "" {
			f.Clause = rule.Clause
		}
		if rule.Recommendation != "" {
			f.Recommendation = rule.Recommendation
		}
	}
	r.findings = append(r.findings, f)
}

func (r *run) addRule(id, location, detail string) {
	def := catalog[id]
	msg := def.message
	if detail != "" {
		msg += ": " + detail
	}
	if location == "" {
		location = def.location
	}
	r.add(Finding{
		RuleID:         id,
		Clause:         def.clause,
		Severity:       def.severity,
		Message:        msg,
		Location:       location,
		Recommendation: def.recommendation,
	})
}

func (r *run) checkStructure() {
	for _, issue := range ofd.CheckStructure(r.archive) {
		sev := Warning
		if issue.Error {
			sev = Error
		}
		r.findings = append(r.findings, Finding{
			RuleID:         issue.Code,
			Clause:         structureClause,
			Severity:       sev,
			Message:        issue.Message,
			Location:       structureLocation,
			Recommendation: structureRecommendation,
		})
	}
}

func (r *run) checkRoot() {
	if !r.archive.Contains(ofd.RootFile) {
		return
	}
	root, err := ofd.ReadRootDescriptor(r.archive)
	if err != nil {
		// Reported per entry by checkXMLEntries.
		r.validator.logger.Debug("validation: OFD.xml unreadable", "err", err)
		return
	}
	if root.DocType != r.validator.docType {
		r.addRule(RuleDocType, "", "")
	}
	// Archive paths compare case-insensitively, so DocRoot does too.
	if !strings.EqualFold(root.DocRoot, r.validator.docRoot) {
		r.addRule(RuleSingleDoc, "", "")
	}
}

func (r *run) checkXMLEntries() {
	for _, name := range r.archive.Names() {
		if !strings.HasSuffix(strings.ToLower(name), ".xml") {
			continue
		}
		text, err := r.archive.Text(name)
		if err != nil {
			continue
		}
		if strings.ContainsRune(text, '\uFFFD') {
			r.addRule(RuleUTF8Readable, name, "")
			continue
		}
		root, err := ofd.ParseRoot([]byte(text))
		if err != nil {
			r.addRule(RuleXMLValid, name, "")
			continue
		}
		if root.Space != r.validator.namespace {
			r.addRule(RuleNamespace, name, "")
		}
	}
}

func (r *run) checkDocument() {
	pkg, err := ofd.ReadArchive(r.archive, ofd.WithReadLogger(r.validator.logger))
	if err != nil {
		r.addRule(RuleParseDocument, "", err.Error())
		return
	}
	r.evidence(EvidencePageCount, strconv.Itoa(len(pkg.Pages)))
	for _, page := range pkg.Pages {
		for _, img := range page.Images() {
			if len(img.Data) == 0 {
				r.addRule(RuleResourceIntegrity, fmt.Sprintf("page[%d]/%s", page.Index, img.ResourceID), "")
			}
		}
	}
}

func (r *run) checkAdvisories() {
	names := r.archive.Names()
	if !r.archive.Contains(ofd.DefaultDocumentID+"/Signatures.xml") && !anyContains(names, "/signs/") {
		r.addRule(RuleSignature, "", "")
	}
	if !r.archive.Contains("Encryptions.xml") {
		r.addRule(RuleEncryption, "", "")
	}
	if !anyContains(names, "docinfo_") {
		r.addRule(RuleVersionHistory, "", "")
	}
}

func anyContains(names []string, lowerSub string) bool {
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), lowerSub) {
			return true
		}
	}
	return false
}

// archiveDigest hashes every entry in name order with BLAKE3, framing each
// as name, NUL, payload length and payload.
func archiveDigest(a *ofd.Archive) string {
	h := blake3.New()
	var size [8]byte
	for _, name := range a.Names() {
		data, _ := a.Lookup(name)
		h.Write([]byte(name))
		h.Write([]byte{0})
		binary.BigEndian.PutUint64(size[:], uint64(len(data)))
		h.Write(size[:])
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

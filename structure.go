package ofd

import (
	"strings"
)

// Structure issue codes reported by CheckStructure.
const (
	IssueMissingRoot     = "missing_ofd_xml"
	IssueMissingDocument = "missing_doc0_document"
	IssueMultipleDocs    = "multiple_docs_detected"
	IssueMissingPages    = "missing_pages"
)

// StructureIssue is a layout problem found without parsing any XML.
type StructureIssue struct {
	Code    string
	Message string
	Error   bool
}

// CheckStructure inspects entry paths of a for the single-document OFD-H
// layout. It never reads entry payloads.
func CheckStructure(a *Archive) []StructureIssue {
	if a == nil {
		a = newArchive()
	}
	var issues []StructureIssue
	if !a.Contains(RootFile) {
		issues = append(issues, StructureIssue{Code: IssueMissingRoot, Message: RootFile + " is required.", Error: true})
	}
	docPath := DefaultDocumentID + "/Document.xml"
	if !a.Contains(docPath) {
		issues = append(issues, StructureIssue{Code: IssueMissingDocument, Message: docPath + " is required.", Error: true})
	}

	docs := map[string]struct{}{}
	for _, name := range a.Names() {
		dir, ok := topDir(name)
		if !ok {
			continue
		}
		if key := foldKey(dir); strings.HasPrefix(key, foldKey("Doc_")) {
			docs[key] = struct{}{}
		}
	}
	if len(docs) > 1 {
		issues = append(issues, StructureIssue{Code: IssueMultipleDocs, Message: "Only single document " + DefaultDocumentID + " is allowed.", Error: true})
	}

	pagesDir := DefaultDocumentID + "/Pages"
	if len(a.FindByPrefix(pagesDir)) == 0 {
		issues = append(issues, StructureIssue{Code: IssueMissingPages, Message: pagesDir + " is required.", Error: true})
	}
	return issues
}

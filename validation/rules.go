package validation

import ofd "github.com/logicossoftware/go-ofd"

// Rule ids emitted by the pipeline besides the structure issue codes.
const (
	RuleDocType           = "r-doc-type-ofd-h"
	RuleSingleDoc         = "r-single-doc-doc0"
	RuleUTF8Readable      = "r-utf8-readable"
	RuleXMLValid          = "r-xml-valid"
	RuleNamespace         = "r-namespace-ofd"
	RuleResourceIntegrity = "r-resource-integrity"
	RuleParseDocument     = "r-parse-document"
	RuleSignature         = "w-signature-recommended"
	RuleEncryption        = "w-encryption-optional"
	RuleVersionHistory    = "w-version-history"
)

// ruleDef is the built-in wording of a finding.
type ruleDef struct {
	clause         string
	severity       Severity
	message        string
	location       string
	recommendation string
}

const (
	structureClause         = "6.1.3"
	structureLocation       = "package"
	structureRecommendation = "Fix OFD package layout to match OFD-H single-document structure."
)

var catalog = map[string]ruleDef{
	RuleDocType: {
		clause:         "7-a",
		severity:       Error,
		message:        "DocType must be OFD-H.",
		location:       "OFD.xml@DocType",
		recommendation: "Set OFD root DocType to OFD-H.",
	},
	RuleSingleDoc: {
		clause:         "6.1.2",
		severity:       Error,
		message:        "DocRoot must point to Doc_0/Document.xml.",
		location:       "OFD.xml/DocBody/DocRoot",
		recommendation: "Use a single document package and point DocRoot to Doc_0/Document.xml.",
	},
	RuleUTF8Readable: {
		clause:         "7-机读信息要求",
		severity:       Error,
		message:        "XML content is not valid UTF-8 text.",
		recommendation: "Ensure XML files are encoded in UTF-8.",
	},
	RuleXMLValid: {
		clause:         "6.1.3",
		severity:       Error,
		message:        "XML file cannot be parsed.",
		recommendation: "Fix XML syntax.",
	},
	RuleNamespace: {
		clause:         "6.1.3",
		severity:       Error,
		message:        "XML namespace must be " + ofd.Namespace + ".",
		recommendation: "Use the OFD namespace in all XML root elements.",
	},
	RuleResourceIntegrity: {
		clause:         "7-资源文件要求",
		severity:       Error,
		message:        "Image resource reference is broken.",
		recommendation: "Ensure every ImageObject points to an existing resource file.",
	},
	RuleParseDocument: {
		clause:         "5.3.1",
		severity:       Error,
		message:        "Document cannot be parsed",
		location:       "document",
		recommendation: "Ensure OFD document structure is complete and consistent.",
	},
	RuleSignature: {
		clause:         "5.3.1/8",
		severity:       Warning,
		message:        "No signature artifacts found. Effective medical record files are recommended to include signatures.",
		location:       "Doc_0/Signs",
		recommendation: "Add digital signature/signature metadata when document enters effective state.",
	},
	RuleEncryption: {
		clause:         "8",
		severity:       Warning,
		message:        "Encryptions.xml not found. This is acceptable unless encryption is required by scene policy.",
		location:       "Encryptions.xml",
		recommendation: "Use Encryptions.xml for temporary protected OFD scenarios.",
	},
	RuleVersionHistory: {
		clause:         "7-版本要求",
		severity:       Warning,
		message:        "No DocInfo_N version metadata found.",
		location:       "Doc_0",
		recommendation: "Keep historical version metadata or attach historical versions as internal attachments.",
	},
}

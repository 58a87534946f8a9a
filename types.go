package ofd

import "time"

const (
	// Namespace is the XML namespace declared on every OFD root element.
	Namespace = "http://www.ofdspec.org"

	DefaultDocType    = "OFD-H"
	DefaultDocumentID = "Doc_0"
	RootFile          = "OFD.xml"

	DefaultFontName = "SimSun"
	DefaultFontSize = 4.0

	DefaultImageMediaType      = "image/png"
	DefaultAttachmentMediaType = "application/octet-stream"
)

// AutoIndex marks a page whose index is assigned by the Builder. Every
// negative index is treated the same way.
const AutoIndex = -1

// Metadata is the optional DocInfo block of OFD.xml.
type Metadata struct {
	DocID        string
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	CreationDate *time.Time
	ModDate      *time.Time
}

// Options carries package-wide settings.
type Options struct {
	DocType    string
	Namespace  string
	DocumentID string

	// Compress selects deflate (true) or store (false) for container entries.
	Compress bool

	DefaultPageWidth  float64 // millimetres
	DefaultPageHeight float64 // millimetres

	Metadata Metadata
}

// DefaultOptions returns the options of a single-document OFD-H package with
// A4 pages and deflate compression.
func DefaultOptions() Options {
	return Options{
		DocType:           DefaultDocType,
		Namespace:         Namespace,
		DocumentID:        DefaultDocumentID,
		Compress:          true,
		DefaultPageWidth:  210,
		DefaultPageHeight: 297,
	}
}

// Box is a rectangle in millimetres.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Element is a page content object. The set of implementations is closed:
// TextElement and ImageElement.
type Element interface {
	Bounds() Box
	isElement()
}

type TextElement struct {
	Box      Box
	Text     string
	FontName string
	FontSize float64 // millimetres
}

func (t TextElement) Bounds() Box { return t.Box }
func (TextElement) isElement()    {}

type ImageElement struct {
	Box        Box
	Data       []byte
	MediaType  string
	ResourceID string
	FileName   string
}

func (i ImageElement) Bounds() Box { return i.Box }
func (ImageElement) isElement()    {}

// Page holds elements in paint order.
type Page struct {
	Index    int
	Width    float64
	Height   float64
	Elements []Element
}

// NewPage returns an empty page of the given size whose index is assigned
// when it is added to a Builder.
func NewPage(width, height float64) Page {
	return Page{Index: AutoIndex, Width: width, Height: height}
}

// Attachment is either embedded (Data) or a reference to ExternalPath.
type Attachment struct {
	Name         string
	MediaType    string
	External     bool
	ExternalPath string
	Data         []byte
}

// Package is the in-memory representation of one OFD container.
//
// Pages are ordered by ascending Index. Tags is a free-form key/value map
// written to the EMR custom tag file.
type Package struct {
	Options     Options
	Pages       []Page
	Attachments []Attachment
	Tags        map[string]string
}

// NewPackage returns an empty package with DefaultOptions.
func NewPackage() *Package {
	return &Package{Options: DefaultOptions(), Tags: map[string]string{}}
}

// Images returns the image elements of p in paint order.
func (p Page) Images() []ImageElement {
	var out []ImageElement
	for _, el := range p.Elements {
		if img, ok := el.(ImageElement); ok {
			out = append(out, img)
		}
	}
	return out
}

// Texts returns the text elements of p in paint order.
func (p Page) Texts() []TextElement {
	var out []TextElement
	for _, el := range p.Elements {
		if t, ok := el.(TextElement); ok {
			out = append(out, t)
		}
	}
	return out
}

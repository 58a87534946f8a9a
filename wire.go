package ofd

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"
)

// Write shapes. Element names carry the "ofd:" prefix literally and every
// root declares xmlns:ofd, which is how encoding/xml emits prefixed output.

type ofdXML struct {
	XMLName xml.Name   `xml:"ofd:OFD"`
	NS      string     `xml:"xmlns:ofd,attr"`
	Version string     `xml:"Version,attr"`
	DocType string     `xml:"DocType,attr"`
	DocBody docBodyXML `xml:"ofd:DocBody"`
}

type docBodyXML struct {
	DocInfo docInfoXML `xml:"ofd:DocInfo"`
	DocRoot string     `xml:"ofd:DocRoot"`
}

type docInfoXML struct {
	DocID        string `xml:"ofd:DocID,omitempty"`
	Title        string `xml:"ofd:Title,omitempty"`
	Author       string `xml:"ofd:Author,omitempty"`
	Subject      string `xml:"ofd:Subject,omitempty"`
	Keywords     string `xml:"ofd:Keywords,omitempty"`
	Creator      string `xml:"ofd:Creator,omitempty"`
	CreationDate string `xml:"ofd:CreationDate,omitempty"`
	ModDate      string `xml:"ofd:ModDate,omitempty"`
}

type documentXML struct {
	XMLName     xml.Name      `xml:"ofd:Document"`
	NS          string        `xml:"xmlns:ofd,attr"`
	CommonData  commonDataXML `xml:"ofd:CommonData"`
	Pages       pagesXML      `xml:"ofd:Pages"`
	Attachments string        `xml:"ofd:Attachments,omitempty"`
	CustomTags  string        `xml:"ofd:CustomTags,omitempty"`
}

type commonDataXML struct {
	MaxUnitID int         `xml:"ofd:MaxUnitID"`
	PageArea  pageAreaXML `xml:"ofd:PageArea"`
	PublicRes string      `xml:"ofd:PublicRes,omitempty"`
}

type pageAreaXML struct {
	PhysicalBox string `xml:"ofd:PhysicalBox"`
}

type pagesXML struct {
	Page []pageRefXML `xml:"ofd:Page"`
}

type pageRefXML struct {
	ID      int    `xml:"ID,attr"`
	BaseLoc string `xml:"BaseLoc,attr"`
}

type resXML struct {
	XMLName    xml.Name        `xml:"ofd:Res"`
	NS         string          `xml:"xmlns:ofd,attr"`
	Fonts      []fontXML       `xml:"ofd:Font"`
	MultiMedia []multiMediaXML `xml:"ofd:MultiMedia"`
}

type fontXML struct {
	ID       int    `xml:"ID,attr"`
	FontName string `xml:"FontName,attr"`
}

type multiMediaXML struct {
	ID        string `xml:"ID,attr"`
	Type      string `xml:"Type,attr"`
	Format    string `xml:"Format,attr"`
	MediaFile string `xml:"MediaFile,attr"`
}

type pageXML struct {
	XMLName xml.Name    `xml:"ofd:Page"`
	NS      string      `xml:"xmlns:ofd,attr"`
	ID      int         `xml:"ID,attr"`
	PageRes string      `xml:"ofd:PageRes,omitempty"`
	Area    pageAreaXML `xml:"ofd:Area"`
	Content contentXML  `xml:"ofd:Content"`
}

type contentXML struct {
	Layer layerXML `xml:"ofd:Layer"`
}

type layerXML struct {
	ID   int    `xml:"ID,attr"`
	Type string `xml:"Type,attr"`
	// Objects holds *textObjectXML and *imageObjectXML values in paint order.
	Objects []any `xml:"Object"`
}

type textObjectXML struct {
	XMLName  xml.Name `xml:"ofd:TextObject"`
	ID       int      `xml:"ID,attr"`
	Boundary string   `xml:"Boundary,attr"`
	Font     string   `xml:"Font,attr"`
	Size     string   `xml:"Size,attr"`
	Text     string   `xml:",chardata"`
}

type imageObjectXML struct {
	XMLName    xml.Name `xml:"ofd:ImageObject"`
	ID         int      `xml:"ID,attr"`
	Boundary   string   `xml:"Boundary,attr"`
	ResourceID string   `xml:"ResourceID,attr"`
}

type attachmentsXML struct {
	XMLName     xml.Name        `xml:"ofd:Attachments"`
	NS          string          `xml:"xmlns:ofd,attr"`
	Attachments []attachmentXML `xml:"ofd:Attachment"`
}

type attachmentXML struct {
	ID        int    `xml:"ID,attr"`
	Name      string `xml:"Name,attr"`
	MediaType string `xml:"MediaType,attr"`
	External  bool   `xml:"External,attr"`
	FileLoc   string `xml:"FileLoc,attr"`
}

type customTagsXML struct {
	XMLName xml.Name       `xml:"ofd:CustomTags"`
	NS      string         `xml:"xmlns:ofd,attr"`
	Tags    []customTagXML `xml:"ofd:CustomTag"`
}

type customTagXML struct {
	ID      string `xml:"ID,attr"`
	FileLoc string `xml:"FileLoc,attr"`
}

type emrTagsXML struct {
	XMLName xml.Name    `xml:"ofd:EMRTags"`
	NS      string      `xml:"xmlns:ofd,attr"`
	Tags    []emrTagXML `xml:"ofd:Tag"`
}

type emrTagXML struct {
	Key   string `xml:"Key,attr"`
	Value string `xml:"Value,attr"`
}

// Read shapes match on local names so any prefix or default namespace binding
// of the OFD namespace is accepted.

type ofdIn struct {
	XMLName xml.Name
	DocType string      `xml:"DocType,attr"`
	DocBody []docBodyIn `xml:"DocBody"`
}

type docBodyIn struct {
	DocInfo *docInfoIn `xml:"DocInfo"`
	DocRoot string     `xml:"DocRoot"`
}

type docInfoIn struct {
	DocID        string `xml:"DocID"`
	Title        string `xml:"Title"`
	Author       string `xml:"Author"`
	Subject      string `xml:"Subject"`
	Keywords     string `xml:"Keywords"`
	Creator      string `xml:"Creator"`
	CreationDate string `xml:"CreationDate"`
	ModDate      string `xml:"ModDate"`
}

type documentIn struct {
	XMLName    xml.Name
	CommonData struct {
		PageArea struct {
			PhysicalBox string `xml:"PhysicalBox"`
		} `xml:"PageArea"`
		PublicRes   []string `xml:"PublicRes"`
		DocumentRes []string `xml:"DocumentRes"`
	} `xml:"CommonData"`
	Pages struct {
		Page []struct {
			ID      string `xml:"ID,attr"`
			BaseLoc string `xml:"BaseLoc,attr"`
		} `xml:"Page"`
	} `xml:"Pages"`
}

type resIn struct {
	XMLName     xml.Name
	BaseLoc     string         `xml:"BaseLoc,attr"`
	MultiMedia  []multiMediaIn `xml:"MultiMedia"`
	MultiMedias struct {
		MultiMedia []multiMediaIn `xml:"MultiMedia"`
	} `xml:"MultiMedias"`
}

type multiMediaIn struct {
	ID            string `xml:"ID,attr"`
	Type          string `xml:"Type,attr"`
	Format        string `xml:"Format,attr"`
	MediaFileAttr string `xml:"MediaFile,attr"`
	MediaFileElem string `xml:"MediaFile"`
}

func (m multiMediaIn) mediaFile() string {
	if m.MediaFileAttr != "" {
		return m.MediaFileAttr
	}
	return m.MediaFileElem
}

type pageIn struct {
	XMLName xml.Name
	PageRes []string `xml:"PageRes"`
	Area    struct {
		PhysicalBox string `xml:"PhysicalBox"`
	} `xml:"Area"`
	Content struct {
		Layer []struct {
			Objects []layerObjectIn `xml:",any"`
		} `xml:"Layer"`
	} `xml:"Content"`
}

// layerObjectIn captures any child of a Layer; XMLName.Local tells the kind.
type layerObjectIn struct {
	XMLName    xml.Name
	Boundary   string `xml:"Boundary,attr"`
	Font       string `xml:"Font,attr"`
	Size       string `xml:"Size,attr"`
	ResourceID string `xml:"ResourceID,attr"`
	CharData   string `xml:",chardata"`
	TextCode   []struct {
		Text string `xml:",chardata"`
	} `xml:"TextCode"`
}

type attachmentsIn struct {
	XMLName    xml.Name
	Attachment []struct {
		Name      string `xml:"Name,attr"`
		MediaType string `xml:"MediaType,attr"`
		External  string `xml:"External,attr"`
		FileLoc   string `xml:"FileLoc,attr"`
	} `xml:"Attachment"`
}

type emrTagsIn struct {
	XMLName xml.Name
	Tag     []struct {
		Key   string  `xml:"Key,attr"`
		Value *string `xml:"Value,attr"`
	} `xml:"Tag"`
}

// Function variables for testing injection.
var (
	xmlMarshal = marshalXML
)

// marshalXML renders v as an indented UTF-8 document with an XML declaration.
func marshalXML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newXMLDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// unmarshalXML decodes data into out. Errors wrap ErrMalformed.
func unmarshalXML(name string, data []byte, out any) error {
	if err := newXMLDecoder(data).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return nil
}

// ParseRoot checks that data is a well-formed XML document and returns the
// name of its root element; Space holds the resolved namespace URI. Element
// prefixes without an xmlns binding in scope are malformed. Errors wrap
// ErrMalformed.
func ParseRoot(data []byte) (xml.Name, error) {
	dec := newXMLDecoder(data)
	var root xml.Name
	// scopes holds the namespace URIs declared by each open element.
	var scopes [][]string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return xml.Name{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(scopes) == 0 {
				if root.Local != "" {
					return xml.Name{}, fmt.Errorf("%w: multiple root elements", ErrMalformed)
				}
				root = t.Name
			}
			var declared []string
			for _, attr := range t.Attr {
				if attr.Name.Space == "xmlns" || attr.Name.Space == "" && attr.Name.Local == "xmlns" {
					declared = append(declared, attr.Value)
				}
			}
			scopes = append(scopes, declared)
			if t.Name.Space != "" && !inScope(scopes, t.Name.Space) {
				return xml.Name{}, fmt.Errorf("%w: element %s:%s uses an unbound prefix", ErrMalformed, t.Name.Space, t.Name.Local)
			}
		case xml.EndElement:
			scopes = scopes[:len(scopes)-1]
		case xml.CharData:
			if len(scopes) == 0 && len(bytes.TrimSpace(t)) > 0 {
				return xml.Name{}, fmt.Errorf("%w: text outside root element", ErrMalformed)
			}
		}
	}
	if root.Local == "" {
		return xml.Name{}, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	return root, nil
}

// inScope reports whether uri was declared by an open element. The decoder
// resolves bound prefixes to their URI and leaves unbound ones as written.
func inScope(scopes [][]string, uri string) bool {
	if uri == "http://www.w3.org/XML/1998/namespace" {
		return true
	}
	for _, declared := range scopes {
		for _, d := range declared {
			if d == uri {
				return true
			}
		}
	}
	return false
}

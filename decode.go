package ofd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Read loads an OFD container from r and interprets it as a Package.
//
// The decoding process:
//  1. Buffers r completely and unzips it into an Archive (see [Load])
//  2. Parses OFD.xml for options, metadata and the DocRoot pointer
//  3. Parses the DocRoot Document.xml and every page it references
//  4. Resolves image resources through the page and document registries
//  5. Parses attachments and custom tags when their files exist
//
// OFD.xml, Document.xml and referenced page content are mandatory: missing
// files wrap ErrNotFound and unparsable ones wrap ErrMalformed. Optional
// registries that fail to parse are treated as absent.
func Read(ctx context.Context, r io.Reader, opts ...ReadOption) (*Package, error) {
	a, err := Load(ctx, r, opts...)
	if err != nil {
		return nil, err
	}
	return ReadArchive(a, opts...)
}

// Unmarshal interprets container bytes as a Package.
func Unmarshal(data []byte, opts ...ReadOption) (*Package, error) {
	return Read(context.Background(), bytes.NewReader(data), opts...)
}

// RootDescriptor is the content of OFD.xml.
type RootDescriptor struct {
	Namespace string // namespace URI of the root element
	DocType   string
	DocRoot   string // normalized DocRoot pointer, "" when absent
	Metadata  Metadata
}

// ReadRootDescriptor parses OFD.xml of a.
func ReadRootDescriptor(a *Archive) (*RootDescriptor, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: archive is nil", ErrInvalidArgument)
	}
	data, err := a.Bytes(RootFile)
	if err != nil {
		return nil, err
	}
	var in ofdIn
	if err := unmarshalXML(RootFile, data, &in); err != nil {
		return nil, err
	}
	rd := &RootDescriptor{Namespace: in.XMLName.Space, DocType: in.DocType}
	for _, body := range in.DocBody {
		if rd.DocRoot == "" && strings.TrimSpace(body.DocRoot) != "" {
			rd.DocRoot = NormalizePath(strings.TrimSpace(body.DocRoot))
		}
		if body.DocInfo != nil && rd.Metadata == (Metadata{}) {
			rd.Metadata = metadataFromXML(body.DocInfo)
		}
	}
	return rd, nil
}

func metadataFromXML(in *docInfoIn) Metadata {
	return Metadata{
		DocID:        strings.TrimSpace(in.DocID),
		Title:        in.Title,
		Author:       in.Author,
		Subject:      in.Subject,
		Keywords:     in.Keywords,
		Creator:      in.Creator,
		CreationDate: parseTime(in.CreationDate),
		ModDate:      parseTime(in.ModDate),
	}
}

// ReadArchive interprets an unpacked container as a Package.
func ReadArchive(a *Archive, opts ...ReadOption) (*Package, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: archive is nil", ErrInvalidArgument)
	}
	cfg := newReadConfig(opts)
	root, err := ReadRootDescriptor(a)
	if err != nil {
		return nil, err
	}

	pkg := NewPackage()
	docRoot := DefaultDocumentID + "/Document.xml"
	if root.DocRoot != "" {
		docRoot = ResolvePath(RootFile, root.DocRoot)
	}
	pkg.Options.DocType = root.DocType
	if pkg.Options.DocType == "" {
		pkg.Options.DocType = DefaultDocType
	}
	if root.Namespace != "" {
		pkg.Options.Namespace = root.Namespace
	}
	if id, ok := topDir(docRoot); ok {
		pkg.Options.DocumentID = id
	}
	pkg.Options.Metadata = root.Metadata

	dr := &documentReader{archive: a, docRoot: docRoot, logger: cfg.logger}
	if err := dr.readDocument(pkg); err != nil {
		return nil, err
	}
	dr.readAttachments(pkg)
	dr.readTags(pkg)
	cfg.logger.Debug("ofd: package read", "doc_root", docRoot, "pages", len(pkg.Pages), "attachments", len(pkg.Attachments))
	return pkg, nil
}

// mediaRef is a resolved MultiMedia registration.
type mediaRef struct {
	path      string
	mediaType string
}

type documentReader struct {
	archive *Archive
	docRoot string
	logger  *slog.Logger
	// docMedia holds registrations from PublicRes and DocumentRes, keyed by
	// case-folded resource id.
	docMedia map[string]mediaRef
}

func (dr *documentReader) readDocument(pkg *Package) error {
	data, err := dr.archive.Bytes(dr.docRoot)
	if err != nil {
		return err
	}
	var doc documentIn
	if err := unmarshalXML(dr.docRoot, data, &doc); err != nil {
		return err
	}
	area := parseBox(doc.CommonData.PageArea.PhysicalBox)

	dr.docMedia = map[string]mediaRef{}
	for _, ref := range append(doc.CommonData.PublicRes, doc.CommonData.DocumentRes...) {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		dr.registerMedia(ResolvePath(dr.docRoot, strings.TrimSpace(ref)), dr.docMedia)
	}

	for i, ref := range doc.Pages.Page {
		if strings.TrimSpace(ref.BaseLoc) == "" {
			continue
		}
		page, err := dr.readPage(i, ResolvePath(dr.docRoot, strings.TrimSpace(ref.BaseLoc)), area)
		if err != nil {
			return err
		}
		pkg.Pages = append(pkg.Pages, page)
	}
	return nil
}

// registerMedia adds the MultiMedia entries of the registry at resPath to
// into. A missing or malformed registry is ignored.
func (dr *documentReader) registerMedia(resPath string, into map[string]mediaRef) {
	data, ok := dr.archive.Lookup(resPath)
	if !ok {
		return
	}
	var res resIn
	if err := unmarshalXML(resPath, data, &res); err != nil {
		dr.logger.Debug("ofd: ignoring resource registry", "path", resPath, "err", err)
		return
	}
	// base names an entry inside the directory media files are relative to.
	base := resPath
	if loc := strings.TrimSpace(res.BaseLoc); loc != "" {
		base = ResolvePath(resPath, loc) + "/"
	}
	for _, m := range append(res.MultiMedia, res.MultiMedias.MultiMedia...) {
		id := strings.TrimSpace(m.ID)
		file := strings.TrimSpace(m.mediaFile())
		if id == "" || file == "" {
			continue
		}
		mt, _ := mediaTypeFromFormat(m.Format)
		into[foldKey(id)] = mediaRef{path: ResolvePath(base, file), mediaType: mt}
	}
}

func (dr *documentReader) readPage(index int, contentPath string, area Box) (Page, error) {
	data, err := dr.archive.Bytes(contentPath)
	if err != nil {
		return Page{}, err
	}
	var in pageIn
	if err := unmarshalXML(contentPath, data, &in); err != nil {
		return Page{}, err
	}
	page := Page{Index: index, Width: area.Width, Height: area.Height}
	if strings.TrimSpace(in.Area.PhysicalBox) != "" {
		box := parseBox(in.Area.PhysicalBox)
		page.Width, page.Height = box.Width, box.Height
	}

	media := map[string]mediaRef{}
	resPaths := []string{Dir(contentPath) + "/PageRes.xml"}
	for _, ref := range in.PageRes {
		if strings.TrimSpace(ref) != "" {
			resPaths = append(resPaths, ResolvePath(contentPath, strings.TrimSpace(ref)))
		}
	}
	seen := map[string]bool{}
	for _, p := range resPaths {
		if key := foldKey(p); !seen[key] {
			seen[key] = true
			dr.registerMedia(p, media)
		}
	}

	for _, layer := range in.Content.Layer {
		for _, obj := range layer.Objects {
			switch strings.ToLower(obj.XMLName.Local) {
			case "textobject":
				page.Elements = append(page.Elements, textFromXML(obj))
			case "imageobject":
				page.Elements = append(page.Elements, dr.imageFromXML(obj, media))
			}
		}
	}
	return page, nil
}

func textFromXML(obj layerObjectIn) TextElement {
	text := obj.CharData
	if len(obj.TextCode) > 0 {
		var sb strings.Builder
		for _, tc := range obj.TextCode {
			sb.WriteString(tc.Text)
		}
		text = sb.String()
	}
	font := obj.Font
	if font == "" {
		font = DefaultFontName
	}
	return TextElement{
		Box:      parseBox(obj.Boundary),
		Text:     text,
		FontName: font,
		FontSize: parseNumber(obj.Size, DefaultFontSize),
	}
}

// imageFromXML resolves the image payload through the page registry, then
// the document registries. An unresolvable image keeps an empty payload.
func (dr *documentReader) imageFromXML(obj layerObjectIn, pageMedia map[string]mediaRef) ImageElement {
	img := ImageElement{Box: parseBox(obj.Boundary), ResourceID: strings.TrimSpace(obj.ResourceID)}
	key := foldKey(img.ResourceID)
	ref, ok := pageMedia[key]
	if !ok {
		ref, ok = dr.docMedia[key]
	}
	if ok {
		if data, found := dr.archive.Lookup(ref.path); found {
			img.Data = data
			img.FileName = baseName(ref.path)
		}
		img.MediaType = ref.mediaType
	}
	if img.MediaType == "" {
		if mt, sniffed := sniffImageMediaType(img.Data); sniffed {
			img.MediaType = mt
		} else {
			img.MediaType = DefaultImageMediaType
		}
	}
	return img
}

func (dr *documentReader) docDir() string {
	return Dir(dr.docRoot)
}

func (dr *documentReader) readAttachments(pkg *Package) {
	listPath := dr.docDir() + "/Attachs/Attachments.xml"
	data, ok := dr.archive.Lookup(listPath)
	if !ok {
		return
	}
	var in attachmentsIn
	if err := unmarshalXML(listPath, data, &in); err != nil {
		dr.logger.Debug("ofd: ignoring attachments", "path", listPath, "err", err)
		return
	}
	for _, node := range in.Attachment {
		external, _ := strconv.ParseBool(strings.TrimSpace(node.External))
		att := Attachment{
			Name:      node.Name,
			MediaType: node.MediaType,
			External:  external,
		}
		if att.Name == "" {
			att.Name = "Attachment"
		}
		if att.MediaType == "" {
			att.MediaType = DefaultAttachmentMediaType
		}
		if external {
			att.ExternalPath = node.FileLoc
		} else if b, found := dr.archive.Lookup(ResolvePath(listPath, node.FileLoc)); found {
			att.Data = b
		}
		pkg.Attachments = append(pkg.Attachments, att)
	}
}

func (dr *documentReader) readTags(pkg *Package) {
	tagPath := dr.docDir() + "/Tags/CustomTag_EMR.xml"
	data, ok := dr.archive.Lookup(tagPath)
	if !ok {
		return
	}
	var in emrTagsIn
	if err := unmarshalXML(tagPath, data, &in); err != nil {
		dr.logger.Debug("ofd: ignoring custom tags", "path", tagPath, "err", err)
		return
	}
	for _, t := range in.Tag {
		if strings.TrimSpace(t.Key) == "" || t.Value == nil {
			continue
		}
		pkg.Tags[t.Key] = *t.Value
	}
}

// parseBox reads "x y w h". Anything unparsable yields the zero box.
func parseBox(s string) Box {
	parts := strings.Fields(s)
	if len(parts) < 4 {
		return Box{}
	}
	return Box{
		X:      parseNumber(parts[0], 0),
		Y:      parseNumber(parts[1], 0),
		Width:  parseNumber(parts[2], 0),
		Height: parseNumber(parts[3], 0),
	}
}

func parseNumber(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

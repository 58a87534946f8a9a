package ofd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Write serializes pkg as an OFD container to w.
//
// The package is first rendered into an Archive (see [BuildArchive]) and then
// zipped with entries in case-insensitive lexicographic order. Entry headers
// carry a fixed modification time so identical packages produce identical
// bytes:
//   - WithModTime(t) when given
//   - otherwise Metadata.ModDate, then Metadata.CreationDate
//   - otherwise the zero DOS time
//
// Options.Compress selects deflate or store; WithCompression overrides it.
// Write returns ErrInvalidArgument for a nil package or writer. ctx is checked
// before each entry is written.
func Write(ctx context.Context, w io.Writer, pkg *Package, opts ...WriteOption) error {
	if w == nil {
		return fmt.Errorf("%w: writer is nil", ErrInvalidArgument)
	}
	cfg := newWriteConfig(opts)
	a, err := buildArchive(pkg, cfg)
	if err != nil {
		return err
	}
	if cfg.modTime == nil {
		if t := pkg.Options.Metadata.ModDate; t != nil {
			cfg.modTime = t
		} else if t := pkg.Options.Metadata.CreationDate; t != nil {
			cfg.modTime = t
		}
	}
	return writeContainer(ctx, w, a, pkg.Options.Compress, cfg)
}

// Marshal returns the container bytes of pkg.
func Marshal(pkg *Package, opts ...WriteOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(context.Background(), &buf, pkg, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildArchive renders pkg into the entries of an OFD container without
// zipping them.
func BuildArchive(pkg *Package, opts ...WriteOption) (*Archive, error) {
	return buildArchive(pkg, newWriteConfig(opts))
}

// pageResource is one MultiMedia registration of a page.
type pageResource struct {
	id        string
	fileName  string
	mediaType string
}

type packageWriter struct {
	pkg     *Package
	ns      string
	docID   string
	entries *Archive
}

func buildArchive(pkg *Package, cfg writeConfig) (*Archive, error) {
	if err := validatePackage(pkg); err != nil {
		return nil, err
	}
	pw := &packageWriter{
		pkg:     pkg,
		ns:      pkg.Options.Namespace,
		docID:   pkg.Options.DocumentID,
		entries: newArchive(),
	}
	pages := orderedPages(pkg)
	steps := []func() error{
		pw.writeRoot,
		func() error { return pw.writeDocument(pages) },
		func() error { return pw.writePublicRes(pages) },
		func() error { return pw.writePages(pages) },
		pw.writeAttachments,
		pw.writeTags,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	cfg.logger.Debug("ofd: package rendered", "pages", len(pages), "entries", pw.entries.Len())
	return pw.entries, nil
}

// orderedPages stably sorts the pages by index. A package without pages gets
// one page of the default size.
func orderedPages(pkg *Package) []Page {
	pages := make([]Page, len(pkg.Pages))
	copy(pages, pkg.Pages)
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	if len(pages) == 0 {
		pages = append(pages, Page{
			Index:  0,
			Width:  pkg.Options.DefaultPageWidth,
			Height: pkg.Options.DefaultPageHeight,
		})
	}
	return pages
}

func (pw *packageWriter) put(name string, v any) error {
	b, err := xmlMarshal(v)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	return pw.putBytes(name, b)
}

func (pw *packageWriter) putBytes(name string, data []byte) error {
	if err := validateContainerPath(name); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPath, name, err)
	}
	if pw.entries.Contains(name) {
		return fmt.Errorf("%w: entry %q written twice", ErrInvalidArgument, name)
	}
	pw.entries.put(name, data)
	return nil
}

func (pw *packageWriter) docPath(rel string) string {
	return pw.docID + "/" + rel
}

func (pw *packageWriter) writeRoot() error {
	md := pw.pkg.Options.Metadata
	root := ofdXML{
		NS:      pw.ns,
		Version: "1.0",
		DocType: pw.pkg.Options.DocType,
		DocBody: docBodyXML{
			DocInfo: docInfoXML{
				DocID:        pw.docInfoID(),
				Title:        strings.TrimSpace(md.Title),
				Author:       strings.TrimSpace(md.Author),
				Subject:      strings.TrimSpace(md.Subject),
				Keywords:     strings.TrimSpace(md.Keywords),
				Creator:      strings.TrimSpace(md.Creator),
				CreationDate: formatTime(md.CreationDate),
				ModDate:      formatTime(md.ModDate),
			},
			DocRoot: pw.docPath("Document.xml"),
		},
	}
	return pw.put(RootFile, root)
}

// docInfoID returns Metadata.DocID or a name-based UUID derived from the
// package identity, so repeated writes agree.
func (pw *packageWriter) docInfoID() string {
	md := pw.pkg.Options.Metadata
	if id := strings.TrimSpace(md.DocID); id != "" {
		return id
	}
	seed := strings.Join([]string{pw.ns, pw.docID, md.Title, formatTime(md.CreationDate)}, "\x00")
	return strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String(), "-", "")
}

func (pw *packageWriter) writeDocument(pages []Page) error {
	doc := documentXML{
		NS: pw.ns,
		CommonData: commonDataXML{
			PageArea:  pageAreaXML{PhysicalBox: formatBox(Box{Width: pages[0].Width, Height: pages[0].Height})},
			PublicRes: "PublicRes.xml",
		},
	}
	for i := range pages {
		doc.Pages.Page = append(doc.Pages.Page, pageRefXML{
			ID:      i + 1,
			BaseLoc: fmt.Sprintf("Pages/Page_%d/Content.xml", i),
		})
	}
	if len(pw.pkg.Attachments) > 0 {
		doc.Attachments = "Attachs/Attachments.xml"
	}
	if len(pw.pkg.Tags) > 0 {
		doc.CustomTags = "Tags/CustomTags.xml"
	}
	doc.CommonData.MaxUnitID = pw.maxUnitID(pages)
	return pw.put(pw.docPath("Document.xml"), doc)
}

// maxUnitID is the highest page, layer or object id handed out. Object ids
// restart at 1 on every page.
func (pw *packageWriter) maxUnitID(pages []Page) int {
	highest := len(pages)
	for _, p := range pages {
		highest = max(highest, len(p.Elements))
	}
	return highest
}

// writePublicRes registers every distinct font name used by a text element.
// Names are compared case-insensitively; the first spelling wins.
func (pw *packageWriter) writePublicRes(pages []Page) error {
	res := resXML{NS: pw.ns}
	seen := map[string]struct{}{}
	fold := cases.Fold()
	for _, p := range pages {
		for _, el := range p.Elements {
			t, ok := el.(TextElement)
			if !ok {
				continue
			}
			name := fontName(t)
			key := fold.String(name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			res.Fonts = append(res.Fonts, fontXML{ID: len(res.Fonts) + 1, FontName: name})
		}
	}
	return pw.put(pw.docPath("PublicRes.xml"), res)
}

func (pw *packageWriter) writePages(pages []Page) error {
	for i, p := range pages {
		if err := pw.writePage(i, p); err != nil {
			return err
		}
	}
	return nil
}

func (pw *packageWriter) writePage(i int, p Page) error {
	dir := pw.docPath(fmt.Sprintf("Pages/Page_%d", i))
	layer := layerXML{ID: 1, Type: "Body"}
	var resources []pageResource
	ids := map[string]struct{}{}
	objectID := 1

	for _, el := range p.Elements {
		switch e := el.(type) {
		case TextElement:
			if err := validateXMLText(e.Text, e.FontName); err != nil {
				return fmt.Errorf("%w: page %d text object %d: %v", ErrInvalidArgument, p.Index, objectID, err)
			}
			size := fontSize(e)
			box := e.Box
			if box.Width <= 0 {
				box.Width = math.Max(float64(utf8.RuneCountInString(e.Text))*size*0.5, size)
			}
			if box.Height <= 0 {
				box.Height = size * 1.5
			}
			layer.Objects = append(layer.Objects, &textObjectXML{
				ID:       objectID,
				Boundary: formatBox(box),
				Font:     fontName(e),
				Size:     formatNumber(size),
				Text:     e.Text,
			})
		case ImageElement:
			n := len(resources) + 1
			mediaType := imageMediaType(e)
			id := strings.TrimSpace(e.ResourceID)
			if id == "" {
				id = fmt.Sprintf("IMG_%d_%d", i, n)
			}
			fileName := strings.TrimSpace(e.FileName)
			if fileName == "" {
				fileName = fmt.Sprintf("Image_%d%s", n, imageExtension(mediaType))
			}
			if err := validateSegment(fileName); err != nil {
				return fmt.Errorf("%w: page %d image file name: %v", ErrInvalidArgument, p.Index, err)
			}
			if err := validateXMLText(id, e.MediaType); err != nil {
				return fmt.Errorf("%w: page %d image %d: %v", ErrInvalidArgument, p.Index, n, err)
			}
			// Readers look resource ids up case-insensitively.
			if _, dup := ids[foldKey(id)]; dup {
				return fmt.Errorf("%w: page %d resource id %q used twice", ErrInvalidArgument, p.Index, id)
			}
			ids[foldKey(id)] = struct{}{}
			resources = append(resources, pageResource{id: id, fileName: fileName, mediaType: mediaType})
			layer.Objects = append(layer.Objects, &imageObjectXML{
				ID:         objectID,
				Boundary:   formatBox(e.Box),
				ResourceID: id,
			})
			if err := pw.putBytes(dir+"/Res/"+fileName, e.Data); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unsupported element %T", ErrInvalidArgument, el)
		}
		objectID++
	}

	content := pageXML{
		NS:      pw.ns,
		ID:      i + 1,
		PageRes: "PageRes.xml",
		Area:    pageAreaXML{PhysicalBox: formatBox(Box{Width: p.Width, Height: p.Height})},
		Content: contentXML{Layer: layer},
	}
	if err := pw.put(dir+"/Content.xml", content); err != nil {
		return err
	}

	res := resXML{NS: pw.ns}
	for _, r := range resources {
		res.MultiMedia = append(res.MultiMedia, multiMediaXML{
			ID:        r.id,
			Type:      "Image",
			Format:    r.mediaType,
			MediaFile: "Res/" + r.fileName,
		})
	}
	return pw.put(dir+"/PageRes.xml", res)
}

func (pw *packageWriter) writeAttachments() error {
	if len(pw.pkg.Attachments) == 0 {
		return nil
	}
	list := attachmentsXML{NS: pw.ns}
	for i, att := range pw.pkg.Attachments {
		mediaType := att.MediaType
		if mediaType == "" {
			mediaType = DefaultAttachmentMediaType
		}
		item := attachmentXML{
			ID:        i + 1,
			Name:      att.Name,
			MediaType: mediaType,
			External:  att.External,
		}
		if att.External {
			item.FileLoc = att.ExternalPath
		} else {
			item.FileLoc = fmt.Sprintf("Attach_%d_%s", i+1, sanitizeFileName(att.Name))
			if err := pw.putBytes(pw.docPath("Attachs/"+item.FileLoc), att.Data); err != nil {
				return err
			}
		}
		list.Attachments = append(list.Attachments, item)
	}
	return pw.put(pw.docPath("Attachs/Attachments.xml"), list)
}

// writeTags emits the custom tag index and the EMR tag file, keys sorted.
func (pw *packageWriter) writeTags() error {
	if len(pw.pkg.Tags) == 0 {
		return nil
	}
	index := customTagsXML{
		NS:   pw.ns,
		Tags: []customTagXML{{ID: "EMR", FileLoc: "CustomTag_EMR.xml"}},
	}
	if err := pw.put(pw.docPath("Tags/CustomTags.xml"), index); err != nil {
		return err
	}
	keys := make([]string, 0, len(pw.pkg.Tags))
	for k := range pw.pkg.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	detail := emrTagsXML{NS: pw.ns}
	for _, k := range keys {
		detail.Tags = append(detail.Tags, emrTagXML{Key: k, Value: pw.pkg.Tags[k]})
	}
	return pw.put(pw.docPath("Tags/CustomTag_EMR.xml"), detail)
}

func fontName(t TextElement) string {
	if name := strings.TrimSpace(t.FontName); name != "" {
		return name
	}
	return DefaultFontName
}

func fontSize(t TextElement) float64 {
	if t.FontSize > 0 {
		return t.FontSize
	}
	return DefaultFontSize
}

// sanitizeFileName replaces characters that are unsafe in a file name.
func sanitizeFileName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Attachment.bin"
	}
	out := strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, name)
	if out == "." || out == ".." {
		return "Attachment.bin"
	}
	return out
}

// formatNumber renders v with at most three decimals and no trailing zeros.
func formatNumber(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func formatBox(b Box) string {
	return formatNumber(b.X) + " " + formatNumber(b.Y) + " " + formatNumber(b.Width) + " " + formatNumber(b.Height)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

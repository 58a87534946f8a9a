package ofd

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func samplePackage(t *testing.T) *Package {
	t.Helper()
	created := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	b := NewBuilder()
	opts := b.Options()
	opts.Metadata = Metadata{Title: "Discharge summary", Author: "Ward 3", CreationDate: &created}
	if err := b.SetOptions(&opts); err != nil {
		t.Fatal(err)
	}
	p0, err := b.AddPage(NewPage(210, 297))
	if err != nil {
		t.Fatal(err)
	}
	p1, err := b.AddPage(NewPage(148, 210))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddText(p0, TextElement{Box: Box{X: 10, Y: 12, Width: 60, Height: 8}, Text: "hello ofd", FontSize: 4}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddImage(p0, ImageElement{Box: Box{X: 10, Y: 30, Width: 20, Height: 20}, Data: pngBytes(t)}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddText(p1, TextElement{Box: Box{X: 5, Y: 5, Width: 40, Height: 6}, Text: "第二页", FontName: "KaiTi", FontSize: 3.5}); err != nil {
		t.Fatal(err)
	}
	b.AddAttachment(Attachment{Name: "lab.csv", MediaType: "text/csv", Data: []byte("k,v\n")})
	b.AddAttachment(Attachment{Name: "scan", External: true, ExternalPath: "https://example.org/scan.pdf"})
	if err := b.SetTag("PatientID", "P-001"); err != nil {
		t.Fatal(err)
	}
	return b.Build()
}

type failingWriter struct {
	n int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, io.ErrClosedPipe
	}
	if len(p) > w.n {
		p = p[:w.n]
	}
	w.n -= len(p)
	return len(p), nil
}

func TestWriteReadRoundTrip(t *testing.T) {
	in := samplePackage(t)
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(out.Pages) != len(in.Pages) {
		t.Fatalf("pages: got %d want %d", len(out.Pages), len(in.Pages))
	}
	for i := range in.Pages {
		want, got := in.Pages[i], out.Pages[i]
		if len(got.Elements) != len(want.Elements) {
			t.Fatalf("page %d elements: got %d want %d", i, len(got.Elements), len(want.Elements))
		}
		if got.Width != want.Width || got.Height != want.Height {
			t.Fatalf("page %d size: got %gx%g want %gx%g", i, got.Width, got.Height, want.Width, want.Height)
		}
		for j, wt := range want.Texts() {
			gt := got.Texts()[j]
			if gt.Text != wt.Text || gt.Box != wt.Box || gt.FontSize != wt.FontSize {
				t.Fatalf("page %d text %d: got %+v want %+v", i, j, gt, wt)
			}
		}
		for j, wi := range want.Images() {
			if !bytes.Equal(got.Images()[j].Data, wi.Data) {
				t.Fatalf("page %d image %d payload differs", i, j)
			}
		}
	}
	if got := out.Pages[1].Texts()[0].FontName; got != "KaiTi" {
		t.Fatalf("font name: got %q", got)
	}

	if out.Options.DocType != DefaultDocType || out.Options.DocumentID != DefaultDocumentID || out.Options.Namespace != Namespace {
		t.Fatalf("options: %+v", out.Options)
	}
	md := out.Options.Metadata
	if md.Title != "Discharge summary" || md.Author != "Ward 3" || md.DocID == "" {
		t.Fatalf("metadata: %+v", md)
	}
	if md.CreationDate == nil || !md.CreationDate.Equal(*in.Options.Metadata.CreationDate) {
		t.Fatalf("creation date: %v", md.CreationDate)
	}

	if len(out.Attachments) != 2 {
		t.Fatalf("attachments: %+v", out.Attachments)
	}
	if a := out.Attachments[0]; a.Name != "lab.csv" || a.MediaType != "text/csv" || string(a.Data) != "k,v\n" || a.External {
		t.Fatalf("embedded attachment: %+v", a)
	}
	if a := out.Attachments[1]; !a.External || a.ExternalPath != "https://example.org/scan.pdf" || a.Data != nil {
		t.Fatalf("external attachment: %+v", a)
	}
	if out.Tags["PatientID"] != "P-001" || len(out.Tags) != 1 {
		t.Fatalf("tags: %v", out.Tags)
	}
}

func TestHelloOFDScenario(t *testing.T) {
	b := NewBuilder()
	idx, err := b.AddPage(NewPage(210, 297))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddText(idx, TextElement{Box: Box{X: 10, Y: 12, Width: 60, Height: 8}, Text: "hello ofd", FontSize: 4}); err != nil {
		t.Fatal(err)
	}
	a, err := BuildArchive(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"OFD.xml", "Doc_0/Document.xml", "Doc_0/Pages/Page_0/Content.xml"} {
		if !a.Contains(name) {
			t.Fatalf("missing %s in %v", name, a.Names())
		}
	}

	var buf bytes.Buffer
	if err := WriteArchive(context.Background(), &buf, a); err != nil {
		t.Fatal(err)
	}
	pkg, err := Read(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkg.Pages) != 1 || len(pkg.Pages[0].Elements) != 1 {
		t.Fatalf("unexpected pages: %+v", pkg.Pages)
	}
	text, ok := pkg.Pages[0].Elements[0].(TextElement)
	if !ok || text.Text != "hello ofd" {
		t.Fatalf("unexpected element: %#v", pkg.Pages[0].Elements[0])
	}
}

func TestSyntheticImageIdentity(t *testing.T) {
	payload := pngBytes(t)
	pkg := NewPackage()
	pkg.Pages = []Page{{Index: 0, Width: 100, Height: 100, Elements: []Element{
		ImageElement{Box: Box{Width: 10, Height: 10}, Data: payload},
	}}}
	a, err := BuildArchive(pkg)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Contains("Doc_0/Pages/Page_0/Res/Image_1.png") {
		t.Fatalf("synthetic file missing: %v", a.Names())
	}
	res, _ := a.Text("Doc_0/Pages/Page_0/PageRes.xml")
	if !bytes.Contains([]byte(res), []byte(`ID="IMG_0_1"`)) {
		t.Fatalf("synthetic id missing:\n%s", res)
	}

	out, err := ReadArchive(a)
	if err != nil {
		t.Fatal(err)
	}
	img := out.Pages[0].Images()[0]
	if img.ResourceID != "IMG_0_1" || img.FileName != "Image_1.png" || img.MediaType != "image/png" {
		t.Fatalf("identity: %+v", img)
	}
	if !bytes.Equal(img.Data, payload) {
		t.Fatal("payload differs")
	}
}

func TestWriteDeterministic(t *testing.T) {
	first, err := Marshal(samplePackage(t))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Marshal(samplePackage(t))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("container bytes differ between writes")
	}
}

func TestWriteEntryOrderAndModTime(t *testing.T) {
	stamp := time.Date(2025, 12, 24, 10, 0, 0, 0, time.UTC)
	data, err := Marshal(samplePackage(t), WithModTime(stamp))
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	var prev string
	for _, f := range zr.File {
		if prev != "" && foldKey(prev) > foldKey(f.Name) {
			t.Fatalf("entries out of order: %q before %q", prev, f.Name)
		}
		prev = f.Name
		if !f.Modified.Equal(stamp) {
			t.Fatalf("%s modified %v", f.Name, f.Modified)
		}
		if f.Method != zip.Deflate {
			t.Fatalf("%s method %d", f.Name, f.Method)
		}
	}
}

func TestWriteCompressionModes(t *testing.T) {
	cases := []struct {
		name     string
		compress bool
		opts     []WriteOption
		want     uint16
	}{
		{"auto-deflate", true, nil, zip.Deflate},
		{"auto-store", false, nil, zip.Store},
		{"store", true, []WriteOption{WithCompression(CompStore)}, zip.Store},
		{"deflate-best", false, []WriteOption{WithCompression(CompDeflate), WithCompressionLevel(9)}, zip.Deflate},
		{"zstd", true, []WriteOption{WithCompression(CompZSTD)}, zstd.ZipMethodWinZip},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pkg := samplePackage(t)
			pkg.Options.Compress = tc.compress
			data, err := Marshal(pkg, tc.opts...)
			if err != nil {
				t.Fatal(err)
			}
			zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				t.Fatal(err)
			}
			for _, f := range zr.File {
				if f.Method != tc.want {
					t.Fatalf("%s: method %d want %d", f.Name, f.Method, tc.want)
				}
			}
			out, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if out.Pages[0].Texts()[0].Text != "hello ofd" {
				t.Fatal("content lost")
			}
		})
	}
}

func TestWriteErrors(t *testing.T) {
	if err := Write(context.Background(), nil, NewPackage()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil writer: %v", err)
	}
	if err := Write(context.Background(), io.Discard, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil package: %v", err)
	}
	if err := Write(context.Background(), &failingWriter{n: 10}, samplePackage(t)); err == nil {
		t.Fatal("expected writer error")
	}
	if _, err := Marshal(samplePackage(t), WithCompression(Compression(42))); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("unknown compression: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Write(ctx, io.Discard, samplePackage(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled: %v", err)
	}
}

func TestWriteRejectsUnsafePackages(t *testing.T) {
	img := func(id, file string) Element {
		return ImageElement{Data: []byte{1}, MediaType: "image/png", ResourceID: id, FileName: file}
	}
	cases := []struct {
		name string
		mod  func(p *Package)
	}{
		{"document id with slash", func(p *Package) { p.Options.DocumentID = "Doc_0/x" }},
		{"document id dotdot", func(p *Package) { p.Options.DocumentID = ".." }},
		{"empty namespace", func(p *Package) { p.Options.Namespace = " " }},
		{"control character in text", func(p *Package) { p.Pages = []Page{{Elements: []Element{TextElement{Text: "a\x01b"}}}} }},
		{"invalid UTF-8 in font", func(p *Package) { p.Pages = []Page{{Elements: []Element{TextElement{Text: "a", FontName: "\xff"}}}} }},
		{"control character in title", func(p *Package) { p.Options.Metadata.Title = "x\x1fy" }},
		{"control character in tag value", func(p *Package) { p.Tags["k"] = "\x00" }},
		{"control character in attachment name", func(p *Package) { p.Attachments = []Attachment{{Name: "a\x02", Data: []byte{1}}} }},
		{"resource ids differing in case", func(p *Package) { p.Pages = []Page{{Elements: []Element{img("a", "1.png"), img("A", "2.png")}}} }},
		{"nil element", func(p *Package) { p.Pages = []Page{{Elements: []Element{nil}}} }},
		{"empty tag key", func(p *Package) { p.Tags[""] = "x" }},
		{"image file escapes", func(p *Package) { p.Pages = []Page{{Elements: []Element{img("a", "../x.png")}}} }},
		{"duplicate resource id", func(p *Package) { p.Pages = []Page{{Elements: []Element{img("a", "1.png"), img("a", "2.png")}}} }},
		{"duplicate image file", func(p *Package) { p.Pages = []Page{{Elements: []Element{img("a", "1.png"), img("b", "1.png")}}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pkg := NewPackage()
			tc.mod(pkg)
			if _, err := BuildArchive(pkg); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestWriteEmptyPackageGetsDefaultPage(t *testing.T) {
	out, err := Unmarshal(mustMarshal(t, NewPackage()))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Pages) != 1 || out.Pages[0].Width != 210 || out.Pages[0].Height != 297 {
		t.Fatalf("pages: %+v", out.Pages)
	}
}

func TestWriteDerivesTextBox(t *testing.T) {
	pkg := NewPackage()
	pkg.Pages = []Page{{Width: 100, Height: 100, Elements: []Element{
		TextElement{Box: Box{X: 1, Y: 2}, Text: "abcd", FontSize: 4},
		TextElement{Box: Box{X: 1, Y: 2}, Text: "", FontSize: 4},
	}}}
	out, err := Unmarshal(mustMarshal(t, pkg))
	if err != nil {
		t.Fatal(err)
	}
	texts := out.Pages[0].Texts()
	if texts[0].Box != (Box{X: 1, Y: 2, Width: 8, Height: 6}) {
		t.Fatalf("derived box: %+v", texts[0].Box)
	}
	if texts[1].Box.Width != 4 {
		t.Fatalf("minimum width: %+v", texts[1].Box)
	}
}

func TestWritePageOrderFollowsIndex(t *testing.T) {
	pkg := NewPackage()
	pkg.Pages = []Page{
		{Index: 5, Width: 10, Height: 10, Elements: []Element{TextElement{Text: "second"}}},
		{Index: 2, Width: 10, Height: 10, Elements: []Element{TextElement{Text: "first"}}},
	}
	out, err := Unmarshal(mustMarshal(t, pkg))
	if err != nil {
		t.Fatal(err)
	}
	if out.Pages[0].Texts()[0].Text != "first" || out.Pages[1].Texts()[0].Text != "second" {
		t.Fatalf("order: %+v", out.Pages)
	}
	if out.Pages[0].Index != 0 || out.Pages[1].Index != 1 {
		t.Fatalf("indices: %d %d", out.Pages[0].Index, out.Pages[1].Index)
	}
}

func TestWriteEqualIndicesKeepSequenceOrder(t *testing.T) {
	pkg := NewPackage()
	pkg.Pages = []Page{
		{Width: 210, Height: 297, Elements: []Element{TextElement{Text: "first"}}},
		{Width: 100, Height: 100, Elements: []Element{TextElement{Text: "second"}}},
		{Index: -1, Width: 50, Height: 50, Elements: []Element{TextElement{Text: "zeroth"}}},
	}
	out, err := Unmarshal(mustMarshal(t, pkg))
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, p := range out.Pages {
		got = append(got, p.Texts()[0].Text)
	}
	if len(got) != 3 || got[0] != "zeroth" || got[1] != "first" || got[2] != "second" {
		t.Fatalf("order: %v", got)
	}
	if out.Pages[2].Width != 100 {
		t.Fatalf("second page size: %+v", out.Pages[2])
	}
}

func TestWriteKeepsAllowedWhitespace(t *testing.T) {
	pkg := NewPackage()
	text := "line 1\n\tline 2 病历 \U0001F600"
	pkg.Pages = []Page{{Width: 10, Height: 10, Elements: []Element{TextElement{Text: text}}}}
	out, err := Unmarshal(mustMarshal(t, pkg))
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Pages[0].Texts()[0].Text; got != text {
		t.Fatalf("text: %q", got)
	}
}

func TestFontRegistryIsDeduplicated(t *testing.T) {
	pkg := NewPackage()
	pkg.Pages = []Page{{Width: 10, Height: 10, Elements: []Element{
		TextElement{Text: "a", FontName: "KaiTi"},
		TextElement{Text: "b", FontName: "kaiti"},
		TextElement{Text: "c"},
	}}}
	a, err := BuildArchive(pkg)
	if err != nil {
		t.Fatal(err)
	}
	res, _ := a.Text("Doc_0/PublicRes.xml")
	if n := bytes.Count([]byte(res), []byte("<ofd:Font ")); n != 2 {
		t.Fatalf("expected 2 fonts, got %d:\n%s", n, res)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		0:        "0",
		210:      "210",
		4.5:      "4.5",
		1.23456:  "1.235",
		-0.0001:  "0",
		12.10000: "12.1",
	}
	for in, want := range cases {
		if got := formatNumber(in); got != want {
			t.Fatalf("formatNumber(%v) = %q want %q", in, got, want)
		}
	}
}

func mustMarshal(t *testing.T, pkg *Package, opts ...WriteOption) []byte {
	t.Helper()
	data, err := Marshal(pkg, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

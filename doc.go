// Package ofd implements a codec for the OFD fixed-layout document container.
//
// An OFD file is a ZIP archive holding interlinked XML descriptors, page
// content and binary resources. This package is restricted to containers that
// hold exactly one logical document (conventionally Doc_0).
//
// # Container Layout
//
// The writer emits a fixed path scheme:
//   - OFD.xml: root descriptor with DocType, metadata and a DocRoot pointer
//   - Doc_0/Document.xml: page area and the ordered list of page references
//   - Doc_0/PublicRes.xml: registry of the fonts used by text objects
//   - Doc_0/Pages/Page_<i>/Content.xml: one body layer of text and image objects
//   - Doc_0/Pages/Page_<i>/PageRes.xml: per-page multimedia registry
//   - Doc_0/Pages/Page_<i>/Res/<file>: image payloads
//   - Doc_0/Attachs/Attachments.xml and attachment payloads, when present
//   - Doc_0/Tags/CustomTags.xml and Doc_0/Tags/CustomTag_EMR.xml, when present
//
// The reader walks the same scheme, resolving every BaseLoc, MediaFile and
// FileLoc relative to the directory of the file that references it.
//
// # Basic Usage
//
// To build and write an OFD file:
//
//	b := ofd.NewBuilder()
//	idx, _ := b.AddPage(ofd.NewPage(210, 297))
//	_ = b.AddText(idx, ofd.TextElement{
//		Box:      ofd.Box{X: 10, Y: 12, Width: 60, Height: 8},
//		Text:     "hello ofd",
//		FontSize: 4,
//	})
//	f, _ := os.Create("output.ofd")
//	defer f.Close()
//	err := ofd.Write(ctx, f, b.Build())
//
// To read an OFD file:
//
//	f, _ := os.Open("input.ofd")
//	defer f.Close()
//	pkg, err := ofd.Read(ctx, f)
//
// Structural checks that do not require XML parsing are available through
// [CheckStructure]. Profile-driven validation lives in the validation
// subpackage.
//
// # Security Considerations
//
// The loader buffers the whole container in memory and enforces configurable
// [Limits] on container size, entry count and decompressed entry sizes.
package ofd

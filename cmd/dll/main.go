// Package main provides C-compatible exports for the go-ofd library.
// Build with: go build -buildmode=c-shared -o ofd.dll
package main

/*
#include <stdlib.h>
#include <stdint.h>

// Result structure for operations that return data
typedef struct {
    char* data;
    int   data_len;
    char* error;
} OfdResult;
*/
import "C"

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"unsafe"

	"github.com/logicossoftware/go-ofd"
	"github.com/logicossoftware/go-ofd/validation"
)

func main() {}

// OfdFreeResult frees memory allocated by other Ofd functions.
// Must be called to avoid memory leaks.
//
//export OfdFreeResult
func OfdFreeResult(result C.OfdResult) {
	if result.data != nil {
		C.free(unsafe.Pointer(result.data))
	}
	if result.error != nil {
		C.free(unsafe.Pointer(result.error))
	}
}

// OfdFreeString frees a C string allocated by Go.
//
//export OfdFreeString
func OfdFreeString(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

func makeResult(data []byte) C.OfdResult {
	var result C.OfdResult
	if len(data) > 0 {
		result.data = (*C.char)(C.CBytes(data))
		result.data_len = C.int(len(data))
	}
	return result
}

func makeError(err error) C.OfdResult {
	var result C.OfdResult
	result.error = C.CString(err.Error())
	return result
}

// writeRequest is the JSON accepted by OfdWrite. Byte fields are base64.
type writeRequest struct {
	DocType     string            `json:"docType"`
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	Compression uint16            `json:"compression"`
	Pages       []pageRequest     `json:"pages"`
	Attachments []ofdAttachment   `json:"attachments"`
	Tags        map[string]string `json:"tags"`
}

type boxRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b boxRequest) box() ofd.Box { return ofd.Box(b) }

type pageRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Texts  []struct {
		Box      boxRequest `json:"box"`
		Text     string     `json:"text"`
		FontName string     `json:"fontName"`
		FontSize float64    `json:"fontSize"`
	} `json:"texts"`
	Images []struct {
		Box       boxRequest `json:"box"`
		MediaType string     `json:"mediaType"`
		Data      []byte     `json:"data"`
	} `json:"images"`
}

type ofdAttachment struct {
	Name         string `json:"name"`
	MediaType    string `json:"mediaType"`
	External     bool   `json:"external"`
	ExternalPath string `json:"externalPath,omitempty"`
	Data         []byte `json:"data,omitempty"`
}

func (req *writeRequest) build() (*ofd.Package, error) {
	b := ofd.NewBuilder()
	opts := b.Options()
	if req.DocType != "" {
		opts.DocType = req.DocType
	}
	opts.Metadata.Title = req.Title
	opts.Metadata.Author = req.Author
	if err := b.SetOptions(&opts); err != nil {
		return nil, err
	}
	for _, p := range req.Pages {
		w, h := p.Width, p.Height
		if w == 0 && h == 0 {
			w, h = opts.DefaultPageWidth, opts.DefaultPageHeight
		}
		idx, err := b.AddPage(ofd.NewPage(w, h))
		if err != nil {
			return nil, err
		}
		for _, t := range p.Texts {
			if err := b.AddText(idx, ofd.TextElement{Box: t.Box.box(), Text: t.Text, FontName: t.FontName, FontSize: t.FontSize}); err != nil {
				return nil, err
			}
		}
		for _, img := range p.Images {
			if err := b.AddImage(idx, ofd.ImageElement{Box: img.Box.box(), MediaType: img.MediaType, Data: img.Data}); err != nil {
				return nil, err
			}
		}
	}
	for _, a := range req.Attachments {
		b.AddAttachment(ofd.Attachment(a))
	}
	for k, v := range req.Tags {
		if err := b.SetTag(k, v); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// OfdWrite builds an OFD container from a JSON request.
// Parameters:
//   - requestJSON: document description (pages with texts and images,
//     attachments, tags, compression 0=auto 1=store 2=deflate 3=zstd)
//
// Returns OfdResult with container bytes or error. Call OfdFreeResult when done.
//
//export OfdWrite
func OfdWrite(requestJSON *C.char) C.OfdResult {
	if requestJSON == nil {
		return makeError(fmt.Errorf("%w: request is NULL", ofd.ErrInvalidArgument))
	}
	var req writeRequest
	if err := json.Unmarshal([]byte(C.GoString(requestJSON)), &req); err != nil {
		return makeError(err)
	}
	pkg, err := req.build()
	if err != nil {
		return makeError(err)
	}
	out, err := ofd.Marshal(pkg, ofd.WithCompression(ofd.Compression(req.Compression)))
	if err != nil {
		return makeError(err)
	}
	return makeResult(out)
}

// OfdWriteSimple writes a single A4 page holding text.
// Parameters:
//   - title: optional document title (can be NULL)
//   - text: the page text
//
// Returns OfdResult with container bytes or error. Call OfdFreeResult when done.
//
//export OfdWriteSimple
func OfdWriteSimple(title *C.char, text *C.char) C.OfdResult {
	pkg := ofd.NewPackage()
	if title != nil {
		pkg.Options.Metadata.Title = C.GoString(title)
	}
	page := ofd.NewPage(pkg.Options.DefaultPageWidth, pkg.Options.DefaultPageHeight)
	page.Index = 0
	page.Elements = []ofd.Element{ofd.TextElement{
		Box:  ofd.Box{X: 10, Y: 10, Width: 190, Height: 10},
		Text: C.GoString(text),
	}}
	pkg.Pages = []ofd.Page{page}

	out, err := ofd.Marshal(pkg)
	if err != nil {
		return makeError(err)
	}
	return makeResult(out)
}

func readPackage(data *C.char, dataLen C.int) (*ofd.Package, error) {
	if data == nil || dataLen <= 0 {
		return nil, fmt.Errorf("%w: empty container", ofd.ErrInvalidArgument)
	}
	return ofd.Unmarshal(C.GoBytes(unsafe.Pointer(data), dataLen))
}

// OfdRead decodes a container and returns a JSON summary.
// Image and attachment payloads are reported by length only; use
// OfdGetImageData for image bytes.
//
//export OfdRead
func OfdRead(data *C.char, dataLen C.int) C.OfdResult {
	pkg, err := readPackage(data, dataLen)
	if err != nil {
		return makeError(err)
	}

	pages := make([]map[string]any, len(pkg.Pages))
	for i, p := range pkg.Pages {
		var texts, images []map[string]any
		for _, t := range p.Texts() {
			texts = append(texts, map[string]any{
				"box":      t.Box,
				"text":     t.Text,
				"fontName": t.FontName,
				"fontSize": t.FontSize,
			})
		}
		for _, img := range p.Images() {
			images = append(images, map[string]any{
				"box":        img.Box,
				"resourceId": img.ResourceID,
				"mediaType":  img.MediaType,
				"fileName":   img.FileName,
				"dataLen":    len(img.Data),
			})
		}
		pages[i] = map[string]any{
			"index":  p.Index,
			"width":  p.Width,
			"height": p.Height,
			"texts":  texts,
			"images": images,
		}
	}
	attachments := make([]map[string]any, len(pkg.Attachments))
	for i, a := range pkg.Attachments {
		attachments[i] = map[string]any{
			"name":         a.Name,
			"mediaType":    a.MediaType,
			"external":     a.External,
			"externalPath": a.ExternalPath,
			"dataLen":      len(a.Data),
		}
	}
	result := map[string]any{
		"docType":     pkg.Options.DocType,
		"documentId":  pkg.Options.DocumentID,
		"metadata":    pkg.Options.Metadata,
		"pages":       pages,
		"attachments": attachments,
		"tags":        pkg.Tags,
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return makeError(err)
	}
	return makeResult(jsonBytes)
}

// OfdGetImageData returns the payload of an image on a page.
// Parameters:
//   - pageIndex: position of the page in the document
//   - resourceID: the ResourceID of the image object
//
//export OfdGetImageData
func OfdGetImageData(data *C.char, dataLen C.int, pageIndex C.int, resourceID *C.char) C.OfdResult {
	pkg, err := readPackage(data, dataLen)
	if err != nil {
		return makeError(err)
	}
	id := C.GoString(resourceID)
	for _, p := range pkg.Pages {
		if p.Index != int(pageIndex) {
			continue
		}
		for _, img := range p.Images() {
			if img.ResourceID == id {
				return makeResult(img.Data)
			}
		}
	}
	return makeError(fmt.Errorf("%w: image %s on page %d", ofd.ErrNotFound, id, int(pageIndex)))
}

// OfdValidate runs the EMR validator and returns the JSON report.
// Parameters:
//   - profileJSON: optional JSONC profile (can be NULL for the built-in profile)
//
// A container that fails validation still yields a report; only unreadable
// input is returned as an error.
//
//export OfdValidate
func OfdValidate(data *C.char, dataLen C.int, profileJSON *C.char) C.OfdResult {
	if data == nil || dataLen <= 0 {
		return makeError(fmt.Errorf("%w: empty container", ofd.ErrInvalidArgument))
	}
	profile := validation.DefaultProfile()
	if profileJSON != nil {
		if s := C.GoString(profileJSON); s != "" {
			p, err := validation.ParseProfile([]byte(s), validation.FormatJSONC)
			if err != nil {
				return makeError(err)
			}
			profile = p
		}
	}
	goData := C.GoBytes(unsafe.Pointer(data), dataLen)
	report, err := validation.New().Validate(context.Background(), bytes.NewReader(goData), profile)
	if err != nil {
		return makeError(err)
	}
	jsonBytes, err := json.Marshal(report)
	if err != nil {
		return makeError(err)
	}
	return makeResult(jsonBytes)
}

// OfdGetPageCount returns the number of pages in a container.
// Returns -1 on error.
//
//export OfdGetPageCount
func OfdGetPageCount(data *C.char, dataLen C.int) C.int {
	pkg, err := readPackage(data, dataLen)
	if err != nil {
		return -1
	}
	return C.int(len(pkg.Pages))
}

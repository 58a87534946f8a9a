package ofd

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Builder assembles a Package incrementally. It is not safe for concurrent
// use.
type Builder struct {
	opts        Options
	pages       []Page
	attachments []Attachment
	tags        map[string]string
}

// NewBuilder returns a Builder seeded with DefaultOptions.
func NewBuilder() *Builder {
	return &Builder{opts: DefaultOptions(), tags: map[string]string{}}
}

// Options returns the current options.
func (b *Builder) Options() Options {
	return b.opts
}

// SetOptions replaces the options wholesale.
func (b *Builder) SetOptions(opts *Options) error {
	if opts == nil {
		return fmt.Errorf("%w: options are nil", ErrInvalidArgument)
	}
	b.opts = *opts
	return nil
}

// AddPage appends p and returns its index. A negative index (AutoIndex or
// any other) gets the next free index; an explicit index must not be taken
// yet.
func (b *Builder) AddPage(p Page) (int, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return 0, fmt.Errorf("%w: page size %gx%g", ErrInvalidArgument, p.Width, p.Height)
	}
	switch {
	case p.Index < 0:
		p.Index = b.nextIndex()
	case b.page(p.Index) != nil:
		return 0, fmt.Errorf("%w: page %d already exists", ErrInvalidArgument, p.Index)
	}
	p.Elements = slices.Clone(p.Elements)
	b.pages = append(b.pages, p)
	return p.Index, nil
}

// AddText appends t to the page at pageIndex, creating the page with the
// default size when it does not exist.
func (b *Builder) AddText(pageIndex int, t TextElement) error {
	p, err := b.ensurePage(pageIndex)
	if err != nil {
		return err
	}
	p.Elements = append(p.Elements, t)
	return nil
}

// AddImage appends img to the page at pageIndex, creating the page with the
// default size when it does not exist.
func (b *Builder) AddImage(pageIndex int, img ImageElement) error {
	p, err := b.ensurePage(pageIndex)
	if err != nil {
		return err
	}
	p.Elements = append(p.Elements, img)
	return nil
}

func (b *Builder) AddAttachment(a Attachment) {
	b.attachments = append(b.attachments, a)
}

// SetTag stores an EMR custom tag. Setting an existing key replaces its value.
func (b *Builder) SetTag(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: tag key is empty", ErrInvalidArgument)
	}
	b.tags[key] = value
	return nil
}

// Build returns a snapshot of the builder state. Pages are stably sorted by
// index. The Builder stays usable and later changes do not leak into the
// returned Package.
func (b *Builder) Build() *Package {
	pages := make([]Page, len(b.pages))
	for i, p := range b.pages {
		p.Elements = slices.Clone(p.Elements)
		pages[i] = p
	}
	slices.SortStableFunc(pages, func(x, y Page) int { return x.Index - y.Index })
	return &Package{
		Options:     b.opts,
		Pages:       pages,
		Attachments: slices.Clone(b.attachments),
		Tags:        maps.Clone(b.tags),
	}
}

func (b *Builder) nextIndex() int {
	next := 0
	for _, p := range b.pages {
		next = max(next, p.Index+1)
	}
	return next
}

func (b *Builder) page(index int) *Page {
	for i := range b.pages {
		if b.pages[i].Index == index {
			return &b.pages[i]
		}
	}
	return nil
}

func (b *Builder) ensurePage(index int) (*Page, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: page index %d", ErrInvalidArgument, index)
	}
	if p := b.page(index); p != nil {
		return p, nil
	}
	b.pages = append(b.pages, Page{Index: index, Width: b.opts.DefaultPageWidth, Height: b.opts.DefaultPageHeight})
	return &b.pages[len(b.pages)-1], nil
}

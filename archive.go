package ofd

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Archive is the unpacked container: normalized entry path to payload.
// Lookups fold case, so "doc_0/document.xml" finds "Doc_0/Document.xml".
//
// An Archive is produced once by the writer or the loader and is read-only
// afterwards.
type Archive struct {
	entries map[string]archiveEntry
}

type archiveEntry struct {
	name string
	data []byte
}

// NewArchive builds an Archive from a populated mapping. Names that are equal
// after normalization and case folding are rejected.
func NewArchive(entries map[string][]byte) (*Archive, error) {
	a := newArchive()
	for name, data := range entries {
		n := NormalizePath(name)
		if n == "" {
			return nil, fmt.Errorf("%w: empty entry name", ErrInvalidArgument)
		}
		if prev, ok := a.entries[foldKey(n)]; ok {
			return nil, fmt.Errorf("%w: entries %q and %q collide", ErrInvalidArgument, prev.name, n)
		}
		a.put(n, data)
	}
	return a, nil
}

func newArchive() *Archive {
	return &Archive{entries: make(map[string]archiveEntry)}
}

// put stores data under name, replacing any entry that folds to the same key.
func (a *Archive) put(name string, data []byte) {
	n := NormalizePath(name)
	a.entries[foldKey(n)] = archiveEntry{name: n, data: data}
}

func foldKey(p string) string {
	return cases.Fold().String(p)
}

// Len returns the number of entries.
func (a *Archive) Len() int { return len(a.entries) }

// Names returns all entry names in case-insensitive lexicographic order.
func (a *Archive) Names() []string {
	keys := make([]string, 0, len(a.entries))
	for k := range a.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = a.entries[k].name
	}
	return names
}

func (a *Archive) Contains(name string) bool {
	_, ok := a.entries[foldKey(NormalizePath(name))]
	return ok
}

// Lookup returns the payload of name and whether it exists.
func (a *Archive) Lookup(name string) ([]byte, bool) {
	e, ok := a.entries[foldKey(NormalizePath(name))]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Bytes returns the payload of name or ErrNotFound.
func (a *Archive) Bytes(name string) ([]byte, error) {
	b, ok := a.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return b, nil
}

// Text returns the payload of name decoded as UTF-8. Invalid sequences are
// replaced with U+FFFD.
func (a *Archive) Text(name string) (string, error) {
	b, err := a.Bytes(name)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(b), "\uFFFD"), nil
}

// FindByPrefix returns the entries located under directory dir, in the same
// order as Names.
func (a *Archive) FindByPrefix(dir string) []string {
	prefix := foldKey(strings.TrimRight(NormalizePath(dir), "/") + "/")
	var keys []string
	for k := range a.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = a.entries[k].name
	}
	return names
}

package ofd

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

// validatePackage rejects packages whose entries could not be written
// safely. Page sizes are not checked here; the Builder enforces them.
func validatePackage(pkg *Package) error {
	if pkg == nil {
		return fmt.Errorf("%w: package is nil", ErrInvalidArgument)
	}
	if err := validateSegment(pkg.Options.DocumentID); err != nil {
		return fmt.Errorf("%w: document id: %v", ErrInvalidArgument, err)
	}
	if strings.TrimSpace(pkg.Options.Namespace) == "" {
		return fmt.Errorf("%w: namespace is empty", ErrInvalidArgument)
	}
	// Pages may share an index; the writer keeps their sequence order.
	for i := range pkg.Pages {
		for _, el := range pkg.Pages[i].Elements {
			if el == nil {
				return fmt.Errorf("%w: page %d has a nil element", ErrInvalidArgument, pkg.Pages[i].Index)
			}
		}
	}
	md := pkg.Options.Metadata
	for _, f := range []struct{ name, value string }{
		{"DocType", pkg.Options.DocType},
		{"DocID", md.DocID},
		{"Title", md.Title},
		{"Author", md.Author},
		{"Subject", md.Subject},
		{"Keywords", md.Keywords},
		{"Creator", md.Creator},
	} {
		if err := validateXMLText(f.value); err != nil {
			return fmt.Errorf("%w: metadata %s: %v", ErrInvalidArgument, f.name, err)
		}
	}
	for k, v := range pkg.Tags {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: empty tag key", ErrInvalidArgument)
		}
		if err := validateXMLText(k, v); err != nil {
			return fmt.Errorf("%w: tag %q: %v", ErrInvalidArgument, k, err)
		}
	}
	for i, att := range pkg.Attachments {
		if err := validateXMLText(att.Name, att.MediaType, att.ExternalPath); err != nil {
			return fmt.Errorf("%w: attachment %d: %v", ErrInvalidArgument, i, err)
		}
	}
	return nil
}

// validateXMLText rejects strings that XML 1.0 cannot carry: invalid UTF-8
// and characters outside the Char production, such as most C0 controls.
func validateXMLText(values ...string) error {
	for _, s := range values {
		if err := checkXMLChars(s); err != nil {
			return err
		}
	}
	return nil
}

func checkXMLChars(s string) error {
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				return fmt.Errorf("invalid UTF-8 at byte %d", i)
			}
		}
		if !isXMLChar(r) {
			return fmt.Errorf("character %U at byte %d is not allowed in XML", r, i)
		}
	}
	return nil
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

// validateSegment checks a single path segment such as a document id or a
// resource file name.
func validateSegment(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("segment is empty")
	}
	if strings.ContainsAny(s, "/\\") {
		return fmt.Errorf("segment %q contains a path separator", s)
	}
	if s == "." || s == ".." {
		return fmt.Errorf("segment %q is not a file name", s)
	}
	return nil
}

func validateContainerPath(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("path must not be absolute")
	}
	if strings.Contains(p, "\\") {
		return fmt.Errorf("path must use forward slashes")
	}
	clean := path.Clean(p)
	if clean != p {
		return fmt.Errorf("path must be normalized: %q", clean)
	}
	if clean == "." {
		return fmt.Errorf("path must not be current directory")
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path must not escape")
	}
	return nil
}

package ofd

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolvePath(t *testing.T) {
	cases := []struct {
		base, ref, want string
	}{
		{"Doc_0/Document.xml", "Pages/Page_0/Content.xml", "Doc_0/Pages/Page_0/Content.xml"},
		{"Doc_0/Pages/Page_0/PageRes.xml", "Res/Image_1.png", "Doc_0/Pages/Page_0/Res/Image_1.png"},
		{"Doc_0/Pages/Page_0/Content.xml", "../../PublicRes.xml", "Doc_0/PublicRes.xml"},
		{"Doc_0/Document.xml", "./a/./b", "Doc_0/a/b"},
		{"Doc_0/Document.xml", "../../../../x", "x"},
		{"Doc_0/Document.xml", "/Doc_0/Res/logo.png", "Doc_0/Res/logo.png"},
		{"Doc_0/Document.xml", `Pages\Page_1\Content.xml`, "Doc_0/Pages/Page_1/Content.xml"},
		{"OFD.xml", "Doc_0/Document.xml", "Doc_0/Document.xml"},
	}
	for _, tc := range cases {
		if got := ResolvePath(tc.base, tc.ref); got != tc.want {
			t.Fatalf("ResolvePath(%q, %q) = %q want %q", tc.base, tc.ref, got, tc.want)
		}
	}
}

func TestNormalizePathAndDir(t *testing.T) {
	if got := NormalizePath(`\\Doc_0\Res\a.png`); got != "Doc_0/Res/a.png" {
		t.Fatalf("NormalizePath: %q", got)
	}
	if Dir("OFD.xml") != "" || Dir("/Doc_0/Document.xml") != "Doc_0" {
		t.Fatal("Dir")
	}
}

func TestArchiveLookupFoldsCase(t *testing.T) {
	a, err := NewArchive(map[string][]byte{
		"Doc_0/Document.xml":              []byte("doc"),
		`\Doc_0\Pages\Page_0\Content.xml`: []byte("page"),
		"OFD.xml":                         []byte("root\xff"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Contains("doc_0/DOCUMENT.XML") || !a.Contains(`Doc_0\Document.xml`) {
		t.Fatal("case-insensitive lookup failed")
	}
	b, ok := a.Lookup("doc_0/pages/page_0/content.xml")
	if !ok || string(b) != "page" {
		t.Fatalf("Lookup: %q %v", b, ok)
	}
	if _, err := a.Bytes("missing.xml"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Bytes: %v", err)
	}
	if s, _ := a.Text("OFD.xml"); s != "root\uFFFD" {
		t.Fatalf("Text: %q", s)
	}
	want := []string{"Doc_0/Document.xml", "Doc_0/Pages/Page_0/Content.xml", "OFD.xml"}
	if got := a.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names: %v", got)
	}
	if got := a.FindByPrefix("doc_0/pages"); !reflect.DeepEqual(got, want[1:2]) {
		t.Fatalf("FindByPrefix: %v", got)
	}
	if got := a.FindByPrefix("Doc_0/Pag"); len(got) != 0 {
		t.Fatalf("prefix must match whole segments: %v", got)
	}
}

func TestNewArchiveRejectsCollisions(t *testing.T) {
	_, err := NewArchive(map[string][]byte{"a/B.xml": nil, "A/b.xml": nil})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected collision error, got %v", err)
	}
	if _, err := NewArchive(map[string][]byte{"/": nil}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected empty name error, got %v", err)
	}
}

package docx

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p><w:r><w:t>Total: </w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>{{&apos;[f]S&apos;!A1}}</w:t></w:r></w:p>` +
	`<w:p w:rsidR="00AB"><w:r><w:t xml:space="preserve">Split {{'[f]S'!</w:t></w:r><w:r><w:t>B1}} here</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Missing {{'[f]S'!Z9}} and {{'[f]S'!C1}}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Plain &amp; simple</w:t></w:r></w:p>` +
	`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>{{'[f]S'!A1}}</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
	`</w:body></w:document>`

func writeTestDocx(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "template.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		documentPart:          testDocument,
	}
	for _, name := range []string{"[Content_Types].xml", documentPart} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip Create() error = %v", err)
		}
		io.WriteString(w, parts[name])
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close() error = %v", err)
	}
	return path
}

func readPart(t *testing.T, path, name string) string {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		return string(b)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func ptr(v float64) *float64 { return &v }

func TestRender(t *testing.T) {
	dir := t.TempDir()
	in := writeTestDocx(t, dir)
	out := filepath.Join(dir, "out.docx")

	values := map[string]*float64{
		"'[f]S'!A1": ptr(3.14159),
		"'[f]S'!B1": ptr(10),
		"'[f]S'!C1": nil,
	}

	report, err := Render(in, out, values)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if report.Replaced != 3 {
		t.Errorf("Replaced = %d, want 3", report.Replaced)
	}
	if len(report.Unresolved) != 2 {
		t.Errorf("Unresolved = %v, want 2 entries", report.Unresolved)
	}

	doc := readPart(t, out, documentPart)

	wantContains := []string{
		`<w:t xml:space="preserve">Total: 3.14</w:t>`,
		`<w:rPr><w:b/></w:rPr><w:t></w:t>`,
		`<w:t xml:space="preserve">Split 10 here</w:t>`,
		`{{'[f]S'!Z9}}`,
		`{{'[f]S'!C1}}`,
		`Plain &amp; simple`,
		`<w:tc><w:p><w:r><w:t xml:space="preserve">3.14</w:t>`,
	}
	for _, want := range wantContains {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q\n%s", want, doc)
		}
	}

	if got := readPart(t, out, "[Content_Types].xml"); got != `<?xml version="1.0"?><Types/>` {
		t.Errorf("content types part = %q, want unchanged", got)
	}
}

func TestRender_InPlace(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDocx(t, dir)

	if _, err := Render(path, path, map[string]*float64{"'[f]S'!A1": ptr(1)}); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if doc := readPart(t, path, documentPart); !strings.Contains(doc, "Total: 1<") {
		t.Errorf("in-place render did not substitute:\n%s", doc)
	}
}

func TestRender_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Render(filepath.Join(dir, "missing.docx"), filepath.Join(dir, "out.docx"), nil); err == nil {
		t.Error("Render() expected error for missing input")
	}

	// A zip without word/document.xml is not a document.
	bogus := filepath.Join(dir, "bogus.docx")
	f, _ := os.Create(bogus)
	zw := zip.NewWriter(f)
	w, _ := zw.Create("other.xml")
	io.WriteString(w, "<x/>")
	zw.Close()
	f.Close()

	_, err := Render(bogus, filepath.Join(dir, "out.docx"), nil)
	if !errors.Is(err, ErrNotDocument) {
		t.Errorf("Render() error = %v, want ErrNotDocument", err)
	}

	in := writeTestDocx(t, dir)
	if _, err := Render(in, filepath.Join(dir, "no", "such", "dir", "out.docx"), nil); err == nil {
		t.Error("Render() expected error for unwritable output")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{10, "10"},
		{1e6, "1000000"},
		{0.1 + 0.2, "0.3"},
		{3.14159, "3.14"},
		{2.5, "2.5"},
		{-1.006, "-1.01"},
		{0.004, "0"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	path := writeTestDocx(t, t.TempDir())

	got, err := Placeholders(path)
	if err != nil {
		t.Fatalf("Placeholders() error = %v", err)
	}
	want := []string{"'[f]S'!A1", "'[f]S'!B1", "'[f]S'!Z9", "'[f]S'!C1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Placeholders() mismatch (-want +got):\n%s", diff)
	}

	if _, err := Placeholders(filepath.Join(t.TempDir(), "missing.docx")); err == nil {
		t.Error("Placeholders() on a missing file should fail")
	}
}

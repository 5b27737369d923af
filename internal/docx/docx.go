// Package docx fills {{placeholder}} markers in Word documents.
//
// Only the main document part (word/document.xml) is rewritten; body
// paragraphs and paragraphs inside table cells are both covered because
// table cells hold ordinary paragraphs. A paragraph whose text changes is
// collapsed into its first text run, the other runs keep their properties
// but lose their text.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const documentPart = "word/document.xml"

// ErrNotDocument is returned when the archive has no main document part.
var ErrNotDocument = errors.New("not a docx document")

var (
	paragraphRe   = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textRunRe     = regexp.MustCompile(`(?s)(<w:t(?:\s[^>]*[^/>])?>)(.*?)(</w:t>)`)
	placeholderRe = regexp.MustCompile(`\{\{.*?\}\}`)

	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// Report summarizes one Render call.
type Report struct {
	Replaced   int
	Unresolved []string
}

// Render copies the document at inPath to outPath, replacing every
// {{key}} whose key has a non-nil value with that value rounded to two
// decimals. Other placeholders are left as they are. inPath and outPath
// may be the same file.
func Render(inPath, outPath string, values map[string]*float64) (Report, error) {
	zr, err := zip.OpenReader(inPath)
	if err != nil {
		return Report{}, fmt.Errorf("cannot load file from %q: %w", inPath, err)
	}
	defer zr.Close()

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".docx-*")
	if err != nil {
		return Report{}, fmt.Errorf("cannot save file to %q: %w", outPath, err)
	}
	defer os.Remove(tmp.Name())

	report, err := rewrite(&zr.Reader, tmp, values)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		if errors.Is(err, ErrNotDocument) {
			return Report{}, fmt.Errorf("cannot load file from %q: %w", inPath, err)
		}
		return Report{}, fmt.Errorf("cannot save file to %q: %w", outPath, err)
	}

	if err := os.Rename(tmp.Name(), outPath); err != nil {
		return Report{}, fmt.Errorf("cannot save file to %q: %w", outPath, err)
	}
	return report, nil
}

func rewrite(zr *zip.Reader, w io.Writer, values map[string]*float64) (Report, error) {
	var report Report
	found := false

	zw := zip.NewWriter(w)
	for _, f := range zr.File {
		if f.Name != documentPart {
			if err := zw.Copy(f); err != nil {
				return report, err
			}
			continue
		}
		found = true

		rc, err := f.Open()
		if err != nil {
			return report, err
		}
		doc, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return report, err
		}

		out, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return report, err
		}
		if _, err := out.Write(fill(doc, values, &report)); err != nil {
			return report, err
		}
	}
	if !found {
		return report, ErrNotDocument
	}
	return report, zw.Close()
}

// fill performs a single pass over the paragraphs of doc. Substituted text
// is not scanned again.
func fill(doc []byte, values map[string]*float64, report *Report) []byte {
	return paragraphRe.ReplaceAllFunc(doc, func(p []byte) []byte {
		runs := textRunRe.FindAllSubmatchIndex(p, -1)
		if len(runs) == 0 {
			return p
		}

		var text strings.Builder
		for _, r := range runs {
			text.WriteString(html.UnescapeString(string(p[r[4]:r[5]])))
		}
		original := text.String()

		changed := placeholderRe.ReplaceAllStringFunc(original, func(m string) string {
			v, ok := values[m[2:len(m)-2]]
			if !ok || v == nil {
				report.Unresolved = append(report.Unresolved, m)
				return m
			}
			report.Replaced++
			return FormatValue(*v)
		})
		if changed == original {
			return p
		}

		var b bytes.Buffer
		last := 0
		for i, r := range runs {
			b.Write(p[last:r[2]])
			if i == 0 {
				b.Write(preserveSpace(p[r[2]:r[3]]))
				b.WriteString(textEscaper.Replace(changed))
			} else {
				b.Write(p[r[2]:r[3]])
			}
			b.Write(p[r[6]:r[7]])
			last = r[1]
		}
		b.Write(p[last:])
		return b.Bytes()
	})
}

// FormatValue renders v rounded to two decimals without trailing zeros or
// exponent, so 10 renders as "10" and 3.14159 as "3.14".
func FormatValue(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func preserveSpace(open []byte) []byte {
	if bytes.Contains(open, []byte("xml:space")) {
		return open
	}
	return []byte(`<w:t xml:space="preserve"` + string(open[len("<w:t"):]))
}

// Placeholders lists the keys of the {{key}} markers in the document at
// path, in document order without duplicates.
func Placeholders(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load file from %q: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		doc, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		return placeholderKeys(doc), nil
	}
	return nil, fmt.Errorf("cannot load file from %q: %w", path, ErrNotDocument)
}

func placeholderKeys(doc []byte) []string {
	keys := []string{}
	seen := make(map[string]bool)
	for _, p := range paragraphRe.FindAll(doc, -1) {
		var text strings.Builder
		for _, r := range textRunRe.FindAllSubmatch(p, -1) {
			text.WriteString(html.UnescapeString(string(r[2])))
		}
		for _, m := range placeholderRe.FindAllString(text.String(), -1) {
			key := m[2 : len(m)-2]
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}

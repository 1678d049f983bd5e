// Package docx reads the paragraph text and inline images of Word .docx documents.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const (
	documentPart  = "word/document.xml"
	relationsPart = "word/_rels/document.xml.rels"

	// MaxPartSize caps the decompressed size of the XML parts.
	MaxPartSize = 32 << 20
	// MaxImageSize matches the largest photo Telegram accepts by upload.
	MaxImageSize = 10 << 20
	// MaxImageBytes caps the images kept from one document.
	MaxImageBytes = 40 << 20
)

var (
	ErrNotDocx      = errors.New("not a docx document")
	ErrPartTooLarge = errors.New("docx part exceeds size limit")
)

// Paragraph is one w:p of the document body.
type Paragraph struct {
	Text   string
	Images []Image
}

type Image struct {
	Name string
	Data []byte
}

// Paragraphs returns the text of every paragraph in document order.
// Empty paragraphs are kept so callers see the document as written.
func Paragraphs(r io.ReaderAt, size int64) ([]string, error) {
	paragraphs, err := read(r, size, false)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		out = append(out, p.Text)
	}
	return out, nil
}

// Read returns every paragraph with the images embedded in it. Images that are
// too large, missing, or beyond MaxImageBytes are skipped.
func Read(r io.ReaderAt, size int64) ([]Paragraph, error) {
	return read(r, size, true)
}

func read(r io.ReaderAt, size int64, withImages bool) ([]Paragraph, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}

	body, err := readZipFile(zr.File, documentPart, MaxPartSize)
	if err != nil {
		return nil, err
	}

	paragraphs, embeds, err := extractParagraphs(body)
	if err != nil {
		return nil, err
	}
	if withImages && len(embeds) > 0 {
		resolveImages(zr.File, paragraphs, embeds)
	}
	return paragraphs, nil
}

func findZipFile(files []*zip.File, target string) *zip.File {
	for _, f := range files {
		if f != nil && strings.EqualFold(strings.TrimSpace(f.Name), target) {
			return f
		}
	}
	return nil
}

// readZipFile reads target fully, refusing anything that decompresses past limit.
// The declared size is only a fast path; the reader is capped regardless.
func readZipFile(files []*zip.File, target string, limit int64) ([]byte, error) {
	f := findZipFile(files, target)
	if f == nil {
		return nil, fmt.Errorf("%w: %s not found", ErrNotDocx, target)
	}
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%w: %w: %s", ErrNotDocx, ErrPartTooLarge, target)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrNotDocx, target, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrNotDocx, target, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %w: %s", ErrNotDocx, ErrPartTooLarge, target)
	}
	return data, nil
}

// extractParagraphs also returns the relationship IDs of images, keyed by paragraph index.
func extractParagraphs(body []byte) ([]Paragraph, map[int][]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		inParagraph bool
		inText      bool
		inProps     bool
		depth       int
		text        strings.Builder
		rels        []string
		out         []Paragraph
		embeds      = make(map[int][]string)
	)

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, fmt.Errorf("%w: malformed %s: %v", ErrNotDocx, documentPart, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				// nested paragraphs (text boxes) are flattened into the outer one
				depth++
				if !inParagraph {
					inParagraph = true
					text.Reset()
					rels = nil
				}
			case "t":
				if inParagraph {
					inText = true
				}
			case "pPr":
				inProps = true
			case "tab":
				// tab stops inside paragraph properties are not text
				if inParagraph && !inProps {
					text.WriteByte('\t')
				}
			case "br", "cr":
				if inParagraph {
					text.WriteByte('\n')
				}
			case "blip":
				if id := attr(t, "embed"); inParagraph && id != "" {
					rels = append(rels, id)
				}
			case "imagedata":
				// legacy VML pictures
				if id := attr(t, "id"); inParagraph && id != "" {
					rels = append(rels, id)
				}
			}
		case xml.CharData:
			if inParagraph && inText {
				text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "pPr":
				inProps = false
			case "p":
				if depth > 0 {
					depth--
				}
				if depth == 0 && inParagraph {
					if len(rels) > 0 {
						embeds[len(out)] = rels
					}
					out = append(out, Paragraph{Text: text.String()})
					inParagraph = false
					inText = false
					text.Reset()
					rels = nil
				}
			}
		}
	}
	return out, embeds, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// readRelationships maps relationship IDs to the zip paths of internal image parts.
func readRelationships(files []*zip.File) (map[string]string, error) {
	data, err := readZipFile(files, relationsPart, MaxPartSize)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Relationships []relationship `xml:"Relationship"`
	}
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: malformed %s: %v", ErrNotDocx, relationsPart, err)
	}

	targets := make(map[string]string, len(doc.Relationships))
	for _, rel := range doc.Relationships {
		if strings.EqualFold(rel.TargetMode, "External") || !strings.HasSuffix(rel.Type, "/image") {
			continue
		}
		target := rel.Target
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Join("word", target)
		}
		targets[rel.ID] = path.Clean(target)
	}
	return targets, nil
}

// resolveImages is best effort: a document with broken image references still yields its text.
func resolveImages(files []*zip.File, paragraphs []Paragraph, embeds map[int][]string) {
	targets, err := readRelationships(files)
	if err != nil {
		return
	}

	var total int64
	loaded := make(map[string][]byte)
	for i := range paragraphs {
		for _, id := range embeds[i] {
			name, ok := targets[id]
			if !ok {
				continue
			}
			data, ok := loaded[name]
			if !ok {
				data, err = readZipFile(files, name, MaxImageSize)
				if err != nil || total+int64(len(data)) > MaxImageBytes {
					continue
				}
				total += int64(len(data))
				loaded[name] = data
			}
			paragraphs[i].Images = append(paragraphs[i].Images, Image{Name: path.Base(name), Data: data})
		}
	}
}

package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// The OOXML formats are zip containers around XML parts. Text lives in
// word/document.xml for docx, xl/sharedStrings.xml plus the worksheet
// parts for xlsx, and ppt/slides/slideN.xml for pptx.

func openOOXML(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return zr, nil
}

func zipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%w: missing part %s", ErrMalformedDocument, name)
}

func (p *documentProcessor) processDocx(input Input) (*Result, error) {
	zr, err := openOOXML(input.Data)
	if err != nil {
		return nil, err
	}
	part, err := zipPart(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}
	text, err := wordText(part)
	if err != nil {
		return nil, fmt.Errorf("docx body: %w", err)
	}

	title := ooxmlTitle(zr)
	if title == "" {
		title = titleFromPath(input.Path)
	}
	return &Result{
		Text: text,
		Metadata: Metadata{
			Title: title,
			Words: countWords(text),
		},
	}, nil
}

// wordText walks a WordprocessingML body, keeping run text and turning
// paragraph ends, breaks, and tabs into whitespace.
func wordText(part []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(part))
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return normalizeText(b.String()), nil
}

func (p *documentProcessor) processXlsx(input Input) (*Result, error) {
	zr, err := openOOXML(input.Data)
	if err != nil {
		return nil, err
	}

	shared := sharedStrings(zr)

	var sheets []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/sheet") && strings.HasSuffix(f.Name, ".xml") {
			sheets = append(sheets, f.Name)
		}
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no worksheets", ErrMalformedDocument)
	}
	sortNumericSuffix(sheets)

	var b strings.Builder
	for _, name := range sheets {
		part, err := zipPart(zr, name)
		if err != nil {
			return nil, err
		}
		if err := sheetText(&b, part, shared); err != nil {
			return nil, fmt.Errorf("xlsx sheet %s: %w", name, err)
		}
		b.WriteByte('\n')
	}

	text := normalizeText(b.String())
	title := ooxmlTitle(zr)
	if title == "" {
		title = titleFromPath(input.Path)
	}
	return &Result{
		Text: text,
		Metadata: Metadata{
			Title: title,
			Words: countWords(text),
			Extra: map[string]string{"sheets": strconv.Itoa(len(sheets))},
		},
	}, nil
}

// sharedStrings loads xl/sharedStrings.xml. Each si item may hold several
// t runs (rich text); they concatenate into one table entry. A workbook
// without the part simply has no string cells.
func sharedStrings(zr *zip.Reader) []string {
	part, err := zipPart(zr, "xl/sharedStrings.xml")
	if err != nil {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(part))
	var (
		shared  []string
		current strings.Builder
		inSI    bool
		inT     bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inSI = true
				current.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				inSI = false
				shared = append(shared, current.String())
			case "t":
				inT = false
			}
		case xml.CharData:
			if inSI && inT {
				current.Write(t)
			}
		}
	}
	return shared
}

// sheetText renders one worksheet as tab-separated rows. Cells typed "s"
// resolve through the shared string table; inline strings and raw values
// pass through.
func sheetText(b *strings.Builder, part []byte, shared []string) error {
	dec := xml.NewDecoder(bytes.NewReader(part))
	var (
		cellType string
		inValue  bool
		inInline bool
		cells    []string
		cell     strings.Builder
	)
	flushCell := func() {
		if s := strings.TrimSpace(cell.String()); s != "" {
			cells = append(cells, s)
		}
		cell.Reset()
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "c":
				cellType = ""
				for _, a := range t.Attr {
					if a.Name.Local == "t" {
						cellType = a.Value
					}
				}
			case "v":
				inValue = true
			case "is":
				inInline = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "c":
				flushCell()
			case "v":
				inValue = false
			case "is":
				inInline = false
			case "row":
				if len(cells) > 0 {
					b.WriteString(strings.Join(cells, "\t"))
					b.WriteByte('\n')
					cells = cells[:0]
				}
			}
		case xml.CharData:
			switch {
			case inValue:
				v := string(t)
				if cellType == "s" {
					if idx, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && idx >= 0 && idx < len(shared) {
						v = shared[idx]
					}
				}
				cell.WriteString(v)
			case inInline:
				cell.Write(t)
			}
		}
	}
	return nil
}

func (p *documentProcessor) processPptx(input Input) (*Result, error) {
	zr, err := openOOXML(input.Data)
	if err != nil {
		return nil, err
	}

	var slides []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("%w: no slides", ErrMalformedDocument)
	}
	sortNumericSuffix(slides)

	var b strings.Builder
	for _, name := range slides {
		part, err := zipPart(zr, name)
		if err != nil {
			return nil, err
		}
		if err := slideText(&b, part); err != nil {
			return nil, fmt.Errorf("pptx slide %s: %w", name, err)
		}
		b.WriteByte('\n')
	}

	text := normalizeText(b.String())
	title := ooxmlTitle(zr)
	if title == "" {
		title = titleFromPath(input.Path)
	}
	return &Result{
		Text: text,
		Metadata: Metadata{
			Title: title,
			Pages: len(slides),
			Words: countWords(text),
		},
	}, nil
}

func slideText(b *strings.Builder, part []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(part))
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
				b.WriteByte(' ')
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return nil
}

// ooxmlTitle reads dc:title from docProps/core.xml, empty when absent.
func ooxmlTitle(zr *zip.Reader) string {
	part, err := zipPart(zr, "docProps/core.xml")
	if err != nil {
		return ""
	}
	dec := xml.NewDecoder(bytes.NewReader(part))
	var b strings.Builder
	inTitle := false
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "title" {
				inTitle = true
			}
		case xml.EndElement:
			if t.Name.Local == "title" {
				inTitle = false
			}
		case xml.CharData:
			if inTitle {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// sortNumericSuffix orders part names like sheet1.xml, sheet2.xml,
// sheet10.xml numerically rather than lexically.
func sortNumericSuffix(names []string) {
	num := func(name string) int {
		base := strings.TrimSuffix(name, ".xml")
		i := len(base)
		for i > 0 && base[i-1] >= '0' && base[i-1] <= '9' {
			i--
		}
		n, err := strconv.Atoi(base[i:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.Slice(names, func(i, j int) bool {
		ni, nj := num(names[i]), num(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
}

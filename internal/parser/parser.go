package parser

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"rag-chatbot/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrFileFormat is returned when a document cannot be opened or parsed
	ErrFileFormat = errors.New("invalid document")
	// ErrUnsupportedFormat is returned for file extensions with no loader
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

const defaultPageNumber = 1

type loadFunc func(filePath, source string) ([]models.Chunk, error)

var loaders = map[string]loadFunc{
	".pdf":  LoadPDF,
	".docx": loadDOCX,
	".pptx": loadPPTX,
	".xlsx": loadXLSX,
	".ods":  loadODS,
	".txt":  loadText,
	".md":   loadText,
}

// SupportedExtensions lists the file extensions Load accepts, pdf first
func SupportedExtensions() []string {
	exts := make([]string, 0, len(loaders))
	for ext := range loaders {
		if ext != ".pdf" {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return append([]string{".pdf"}, exts...)
}

// Load extracts page records from filePath, tagging each with source.
// Records with no text are skipped.
func Load(filePath, source string) ([]models.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	load, ok := loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return load(filePath, source)
}

// LoadPDF returns one record per page with non-empty text, in page order
func LoadPDF(filePath, source string) (pages []models.Chunk, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}

	// the pdf reader panics on some malformed objects
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: %v", ErrFileFormat, filePath, r)
		}
	}()

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileFormat, filePath, err)
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrFileFormat, i, err)
		}
		pages = appendPage(pages, pageText, source, i)
	}
	return pages, nil
}

func appendPage(pages []models.Chunk, text, source string, pageNumber int) []models.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return pages
	}
	return append(pages, models.Chunk{
		Content:    text,
		Source:     source,
		PageNumber: pageNumber,
	})
}

var (
	docxParagraph = regexp.MustCompile(`</w:p>`)
	docxText      = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	slideNumber   = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// DOCX has no page numbers, the whole body is one record
func loadDOCX(filePath, source string) ([]models.Chunk, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	defer r.Close()

	content := docxParagraph.ReplaceAllString(r.Editable().GetContent(), "\n")
	var text strings.Builder
	for _, line := range strings.Split(content, "\n") {
		for _, m := range docxText.FindAllStringSubmatch(line, -1) {
			text.WriteString(m[1])
		}
		text.WriteString("\n")
	}
	return appendPage(nil, unescapeXML(text.String()), source, defaultPageNumber), nil
}

func loadPPTX(filePath, source string) ([]models.Chunk, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	defer f.Close()

	slides := map[int]string{}
	for _, file := range f.File {
		m := slideNumber.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFileFormat, file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFileFormat, file.Name, err)
		}
		slides[n] = extractTextFromXML(string(data))
	}

	numbers := make([]int, 0, len(slides))
	for n := range slides {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var pages []models.Chunk
	for _, n := range numbers {
		pages = appendPage(pages, slides[n], source, n)
	}
	return pages, nil
}

// one record per sheet
func loadXLSX(filePath, source string) ([]models.Chunk, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}

	var pages []models.Chunk
	for sheetNum, sheet := range f.Sheets {
		rows := make([][]string, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		pages = appendPage(pages, sheetText(sheet.Name, rows), source, sheetNum+1)
	}
	return pages, nil
}

func loadODS(filePath, source string) ([]models.Chunk, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	defer f.Close()

	var pages []models.Chunk
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %s: %v", ErrFileFormat, sheetName, err)
		}
		pages = appendPage(pages, sheetText(sheetName, rows), source, sheetNum+1)
	}
	return pages, nil
}

// sheetText returns "" for a sheet without any cell values
func sheetText(name string, rows [][]string) string {
	var body strings.Builder
	for _, row := range rows {
		line := strings.TrimSpace(strings.Join(row, "\t"))
		if line == "" {
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	if body.Len() == 0 {
		return ""
	}
	return fmt.Sprintf("## Sheet: %s\n%s", name, body.String())
}

func loadText(filePath, source string) ([]models.Chunk, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	return appendPage(nil, string(data), source, defaultPageNumber), nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return unescapeXML(text.String())
}

var xmlEntities = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")

func unescapeXML(s string) string {
	return xmlEntities.Replace(s)
}

package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/observability"
)

// largeFileSize is the size above which a warning is logged.
const largeFileSize = 100 * 1024 * 1024

// MaxScale caps the rasterization scale.
const MaxScale = 8.0

// SupportedExtensions lists the input file types, lower case.
var SupportedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".webp"}

// Supported reports whether name has a supported input extension.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Validator provides input validation for batch documents
type Validator struct {
	logger *observability.Logger
}

// NewValidator creates a new validator instance
func NewValidator(logger *observability.Logger) *Validator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Validator{logger: logger}
}

// ValidateDocumentPath checks that path is a readable file of a supported type
func (v *Validator) ValidateDocumentPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	if !Supported(path) {
		return domain.ValidationError(fmt.Sprintf("unsupported file type %q", filepath.Ext(path)), nil)
	}

	if info.Size() > largeFileSize {
		v.logger.Warn().
			Str("path", path).
			Int("size_mb", int(info.Size()/(1024*1024))).
			Msg("input file is very large, processing may take a while")
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}

// ValidateScale checks the rasterization scale
func (v *Validator) ValidateScale(scale float64) error {
	if scale <= 0 || scale > MaxScale {
		return domain.ValidationError(fmt.Sprintf("scale must be in (0, %g], got %g", MaxScale, scale), nil)
	}
	return nil
}

// ListDocuments returns the supported files directly inside dir in lexical
// order. Hidden entries and sub-directories are skipped.
func ListDocuments(dir string) ([]domain.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, domain.ValidationError(fmt.Sprintf("cannot access input directory: %s", dir), err)
	}
	if !info.IsDir() {
		return nil, domain.ValidationError(fmt.Sprintf("input is not a directory: %s", dir), nil)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("cannot read input directory: %s", dir), err)
	}

	docs := make([]domain.Document, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || e.IsDir() || !Supported(name) {
			continue
		}
		docs = append(docs, domain.Document{Name: name, Path: filepath.Join(dir, name)})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	disambiguate(docs)
	return docs, nil
}

// disambiguate keeps the extension in the artifact stem of documents whose
// base names collide, so scan.pdf and scan.png do not overwrite each
// other's results. Stems compare case-insensitively.
func disambiguate(docs []domain.Document) {
	seen := make(map[string]int, len(docs))
	for _, d := range docs {
		seen[strings.ToLower(d.BaseName())]++
	}
	for i := range docs {
		if seen[strings.ToLower(docs[i].BaseName())] > 1 {
			docs[i].Stem = docs[i].Name
		}
	}
}

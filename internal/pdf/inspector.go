package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Report is the result of inspecting a PDF before submission.
type Report struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Valid     bool   `json:"valid"`
	Encrypted bool   `json:"encrypted"`
	PageCount int    `json:"page_count,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Inspector checks whether a PDF can be parsed and whether it is encrypted.
type Inspector struct {
	maxFileSize int64
}

// NewInspector creates an inspector for files up to maxFileSize bytes.
func NewInspector(maxFileSize int64) *Inspector {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Inspector{maxFileSize: maxFileSize}
}

// Inspect reads path with relaxed validation. A file that fails the checks
// yields a report with Valid false and a Message; only I/O failures on an
// accessible file are returned as errors.
func (i *Inspector) Inspect(path string) (*Report, error) {
	report := &Report{Path: path}

	if err := checkFile(path, i.maxFileSize); err != nil {
		report.Message = err.Error()
		return report, nil //nolint:nilerr // report the failed check, not a processing error
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		report.Size = info.Size()
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		if isPasswordError(err) {
			report.Encrypted = true
			report.Message = "document is encrypted and needs a password"
			return report, nil
		}
		report.Message = fmt.Sprintf("invalid PDF file: %v", err)
		return report, nil
	}

	report.Encrypted = ctx.Encrypt != nil

	if err := ctx.EnsurePageCount(); err != nil {
		report.Message = fmt.Sprintf("failed to determine page count: %v", err)
		return report, nil
	}
	report.PageCount = ctx.PageCount

	if err := api.ValidateContext(ctx); err != nil {
		report.Message = fmt.Sprintf("validation failed: %v", err)
		return report, nil
	}

	report.Valid = true
	if report.Encrypted {
		report.Message = "document is encrypted; it opens without a user password"
	}
	return report, nil
}

func isPasswordError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

package pdf

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Sanitizer writes a decrypted, optimized copy of a PDF so that the analysis
// service accepts it.
type Sanitizer struct {
	inspector *Inspector
}

// NewSanitizer creates a sanitizer for files up to maxFileSize bytes.
func NewSanitizer(maxFileSize int64) *Sanitizer {
	return &Sanitizer{inspector: NewInspector(maxFileSize)}
}

// Sanitize decrypts in with password when it is encrypted, optimizes it and
// writes the result to out. out is only created when every step succeeds.
func (s *Sanitizer) Sanitize(in, out, password string) (*Report, error) {
	if err := checkFile(in, s.inspector.maxFileSize); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}

	before, err := s.inspector.Inspect(in)
	if err != nil {
		return nil, err
	}
	if !before.Valid && !before.Encrypted {
		return nil, fmt.Errorf("cannot sanitize %s: %s", in, before.Message)
	}
	if before.Encrypted {
		var decrypted bytes.Buffer
		if err := api.Decrypt(bytes.NewReader(data), &decrypted, conf); err != nil {
			return nil, fmt.Errorf("failed to decrypt PDF: %w", err)
		}
		data = decrypted.Bytes()
	}

	var optimized bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &optimized, conf); err != nil {
		return nil, fmt.Errorf("failed to optimize PDF: %w", err)
	}

	if err := os.WriteFile(out, optimized.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write sanitized PDF: %w", err)
	}

	return s.inspector.Inspect(out)
}

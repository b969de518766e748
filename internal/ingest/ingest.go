// Copyright 2025 AI Chatbot Widget Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ingest extracts plain text from uploaded knowledge-base files.
// The contract with the prompt assembler is "text in, text usable": once a
// file passes type and size validation, extraction always yields some
// usable string, degrading to a diagnostic placeholder rather than failing.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const (
	// DefaultMaxFileSize caps uploads at 5 MB
	DefaultMaxFileSize = 5 * 1024 * 1024
	// CSVPreviewLines bounds how much of a CSV is carried into prompts
	CSVPreviewLines = 10
)

var (
	// ErrUnsupportedType is returned for file extensions outside the allow list
	ErrUnsupportedType = errors.New("invalid file type. Supported: TXT, PDF, CSV, MD, JSON")
	// ErrTooLarge is returned when a file exceeds the size cap
	ErrTooLarge = errors.New("file too large. Maximum size: 5MB")
)

// allowedExtensions maps permitted file extensions
var allowedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".json": true,
	".csv":  true,
	".pdf":  true,
}

// Extraction is the result of extracting text from an uploaded file
type Extraction struct {
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	Content     string    `json:"content"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// Extractor validates uploads and extracts their text
type Extractor struct {
	maxFileSize int64
	logger      *zap.Logger
}

// New creates an extractor with the given size cap
func New(maxFileSize int64, logger *zap.Logger) *Extractor {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Extractor{maxFileSize: maxFileSize, logger: logger}
}

// Validate checks the file name and size without reading content
func (e *Extractor) Validate(fileName string, size int64) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return ErrUnsupportedType
	}
	if size > e.maxFileSize {
		return ErrTooLarge
	}
	return nil
}

// Extract validates and extracts text from an uploaded file. All extraction
// failure modes after validation degrade to an informative placeholder
// string; extraction is attempted exactly once, never retried.
func (e *Extractor) Extract(data []byte, fileName string) (*Extraction, error) {
	if err := e.Validate(fileName, int64(len(data))); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(fileName))

	var content string
	switch ext {
	case ".txt", ".md", ".json":
		content = string(data)
	case ".csv":
		content = csvPreview(string(data))
	case ".pdf":
		content = e.extractPDF(data, fileName)
	}

	e.logger.Info("Extracted document text",
		zap.String("file_name", fileName),
		zap.Int("file_size", len(data)),
		zap.Int("content_length", len(content)))

	return &Extraction{
		FileName:    fileName,
		FileSize:    int64(len(data)),
		Content:     content,
		ExtractedAt: time.Now().UTC(),
	}, nil
}

// csvPreview presents only the leading rows of a CSV. Full tabular content
// would dominate the prompt budget for no grounding benefit.
func csvPreview(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) > CSVPreviewLines {
		lines = lines[:CSVPreviewLines]
	}
	return fmt.Sprintf("CSV Preview (first %d rows):\n%s", CSVPreviewLines, strings.Join(lines, "\n"))
}

// extractPDF attempts structured text extraction and degrades to a
// placeholder on any failure or near-empty result.
func (e *Extractor) extractPDF(data []byte, fileName string) string {
	text, err := readPDFText(data)
	if err != nil || len(strings.TrimSpace(text)) < 10 {
		if err != nil {
			e.logger.Warn("PDF extraction failed, using placeholder",
				zap.String("file_name", fileName),
				zap.Error(err))
		}
		return pdfPlaceholder(fileName, int64(len(data)))
	}

	header := fmt.Sprintf("Document: %s (%s)\n\n", fileName, formatSize(int64(len(data))))
	return header + normalizeWhitespace(text)
}

// readPDFText pulls plain text out of a PDF byte slice
func readPDFText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	return buf.String(), nil
}

// pdfPlaceholder is the diagnostic stand-in for unextractable PDFs
func pdfPlaceholder(fileName string, size int64) string {
	return fmt.Sprintf(
		"PDF document %q (%s) was uploaded, but its text could not be extracted. "+
			"The file may be scanned (image-only), encrypted, or corrupt. "+
			"Please upload a text-based PDF or a TXT/MD version of the document.",
		fileName, formatSize(size))
}

// normalizeWhitespace strips excess blank lines and trailing spaces
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// formatSize renders a byte count for people
func formatSize(size int64) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

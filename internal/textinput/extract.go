// Package textinput acquires source text from files and readers for summarization.
package textinput

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrNoText is returned when an input holds nothing but whitespace
var ErrNoText = errors.New("No text could be extracted")

// MaxInputBytes caps how much of a single input is read
const MaxInputBytes = 10 << 20

// UnsupportedFormatError reports a file extension that cannot be read as text
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("File format %s not supported", strings.ToUpper(e.Extension))
}

var plainTextExtensions = map[string]bool{
	"":     true,
	"txt":  true,
	"md":   true,
	"text": true,
}

// Extension returns the lower-cased extension of name without the dot
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// IsJSON reports whether name looks like a record file
func IsJSON(name string) bool {
	return Extension(name) == "json"
}

// ExtractFile reads the text content of the file at path
func ExtractFile(path string) (string, error) {
	if err := checkFormat(path); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	return ExtractReader(filepath.Base(path), f)
}

// ExtractReader reads text from r and trims surrounding whitespace.
// name is used only for format detection and errors.
func ExtractReader(name string, r io.Reader) (string, error) {
	if err := checkFormat(name); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return "", fmt.Errorf("Error extracting text from %s: %w", name, err)
	}
	if len(data) > MaxInputBytes {
		return "", fmt.Errorf("Error extracting text from %s: input exceeds %d bytes", name, MaxInputBytes)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("Error extracting text from %s: content is not valid UTF-8", name)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func checkFormat(name string) error {
	ext := Extension(name)
	if !plainTextExtensions[ext] {
		return &UnsupportedFormatError{Extension: ext}
	}
	return nil
}

package parser

import "errors"

// Language represents a supported source language.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
)

var (
	// ErrUnsupportedLanguage is returned for files whose extension maps to
	// no grammar.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrSyntax is returned when the source does not parse cleanly.
	ErrSyntax = errors.New("syntax error")
)

package parser

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// DetectLanguage detects the language based on the file extension.
func DetectLanguage(filePath string) Language {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	case ".ts", ".mts", ".cts":
		return LanguageTypeScript
	case ".tsx":
		return LanguageTSX
	default:
		return ""
	}
}

// SupportedExtensions returns all supported file extensions
func SupportedExtensions() []string {
	return []string{
		".js", ".jsx", ".mjs", ".cjs",
		".ts", ".mts", ".cts",
		".tsx",
	}
}

// IsSupportedFile checks if a file is supported based on its extension
func IsSupportedFile(filePath string) bool {
	return DetectLanguage(filePath) != ""
}

func grammar(lang Language) *sitter.Language {
	switch lang {
	case LanguageJavaScript:
		return javascript.GetLanguage()
	case LanguageTypeScript:
		return typescript.GetLanguage()
	case LanguageTSX:
		return tsx.GetLanguage()
	default:
		return nil
	}
}

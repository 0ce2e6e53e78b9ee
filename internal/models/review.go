package models

import (
	"fmt"
	"strings"
)

// Language identifies the source language of submitted code.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageJava       Language = "java"
	LanguageCPP        Language = "cpp"
	LanguageC          Language = "c"
	LanguageGo         Language = "go"
	LanguageRust       Language = "rust"
	LanguageHTML       Language = "html"
	LanguageCSS        Language = "css"
)

// DefaultLanguage is used when no language is given.
const DefaultLanguage = LanguagePython

// Languages lists every supported language in display order.
var Languages = []Language{
	LanguagePython, LanguageJavaScript, LanguageTypeScript, LanguageJava,
	LanguageCPP, LanguageC, LanguageGo, LanguageRust, LanguageHTML, LanguageCSS,
}

// ParseLanguage normalizes s and checks it against the supported set.
// An empty string yields DefaultLanguage.
func ParseLanguage(s string) (Language, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultLanguage, nil
	}
	for _, l := range Languages {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported language: %s", s)
}

// CodeRequest is the body of a review or rewrite call.
type CodeRequest struct {
	Code     string   `json:"code"`
	Language Language `json:"language"`
}

// ReviewResult is the AI review of a piece of code.
type ReviewResult struct {
	Review      string   `json:"review"`
	Suggestions []string `json:"suggestions"`
}

// RewriteResult is the AI-corrected version of a piece of code.
type RewriteResult struct {
	RewrittenCode string   `json:"rewritten_code"`
	Improvements  []string `json:"improvements"`
}

package entity

import (
	"regexp"
	"slices"
)

// LanguageProfile controls how much of a document is sent as context for a given language.
type LanguageProfile struct {
	// ContextLines is the number of lines preceding the cursor that are always included.
	ContextLines int `json:"contextLines" yaml:"contextLines"`
	// FileImportance scales how far down the file important lines are collected.
	FileImportance float64 `json:"fileImportance" yaml:"fileImportance"`
	// ImportantPatterns match declaration lines (imports, types, signatures) worth including from anywhere above the cursor.
	ImportantPatterns []string `json:"importantPatterns" yaml:"importantPatterns"`
}

// CompiledPatterns compiles the important patterns. Invalid expressions are skipped.
func (p LanguageProfile) CompiledPatterns() []*regexp.Regexp {
	result := make([]*regexp.Regexp, 0, len(p.ImportantPatterns))
	for _, pattern := range p.ImportantPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		result = append(result, re)
	}
	return result
}

// merge overlays the non-zero fields of override onto p.
func (p LanguageProfile) merge(override LanguageProfile) LanguageProfile {
	if override.ContextLines > 0 {
		p.ContextLines = override.ContextLines
	}
	if override.FileImportance > 0 {
		p.FileImportance = override.FileImportance
	}
	if override.ImportantPatterns != nil {
		p.ImportantPatterns = override.ImportantPatterns
	}
	return p
}

var _fallbackProfile = LanguageProfile{
	ContextLines:   30,
	FileImportance: 1.0,
	ImportantPatterns: []string{
		`^\s*(import|from|include|using|require)\b`,
		`^\s*(class|struct|interface|type|enum)\b`,
		`^\s*(func|function|def|fn)\b`,
	},
}

var _defaultLanguageProfiles = map[string]LanguageProfile{
	"go": {
		ContextLines:   40,
		FileImportance: 1.0,
		ImportantPatterns: []string{
			`^package\s+\w+`,
			`^import\b`,
			`^\s*"[\w./-]+"$`,
			`^type\s+\w+`,
			`^func\s+`,
		},
	},
	"python": {
		ContextLines:   40,
		FileImportance: 1.0,
		ImportantPatterns: []string{
			`^\s*(import|from)\s+`,
			`^\s*class\s+\w+`,
			`^\s*(async\s+)?def\s+\w+`,
		},
	},
	"typescript": {
		ContextLines:   50,
		FileImportance: 1.2,
		ImportantPatterns: []string{
			`^\s*import\s+`,
			`^\s*(export\s+)?(default\s+)?(abstract\s+)?(class|interface|type|enum)\s+\w+`,
			`^\s*(export\s+)?(async\s+)?function\s+\w+`,
			`^\s*(export\s+)?const\s+\w+\s*=\s*(async\s*)?\(`,
		},
	},
	"javascript": {
		ContextLines:   50,
		FileImportance: 1.0,
		ImportantPatterns: []string{
			`^\s*(import\s+|const\s+\w+\s*=\s*require\()`,
			`^\s*(export\s+)?(default\s+)?class\s+\w+`,
			`^\s*(export\s+)?(async\s+)?function\s+\w+`,
		},
	},
	"java": {
		ContextLines:   40,
		FileImportance: 1.5,
		ImportantPatterns: []string{
			`^\s*(package|import)\s+`,
			`^\s*(public|protected|private)?\s*(abstract\s+|final\s+)?(class|interface|enum|record)\s+\w+`,
			`^\s*(public|protected|private)\s+[\w<>\[\], ]+\s+\w+\s*\(`,
		},
	},
	"rust": {
		ContextLines:   40,
		FileImportance: 1.0,
		ImportantPatterns: []string{
			`^\s*use\s+`,
			`^\s*(pub\s+)?(struct|enum|trait|type)\s+\w+`,
			`^\s*(pub\s+)?(async\s+)?fn\s+\w+`,
			`^\s*impl\b`,
		},
	},
}

// DefaultLanguageProfile returns the built-in profile for a language, falling back to a generic profile.
func DefaultLanguageProfile(languageID string) LanguageProfile {
	if p, ok := _defaultLanguageProfiles[languageID]; ok {
		return p
	}
	return _fallbackProfile
}

// Settings holds the user editable configuration of a session.
type Settings struct {
	DefaultModel            string                     `json:"defaultModel" yaml:"defaultModel"`
	EnableInlineCompletions bool                       `json:"enableInlineCompletions" yaml:"enableInlineCompletions"`
	CompletionDelayMs       int                        `json:"completionDelay" yaml:"completionDelay"`
	TypingDebounceMs        int                        `json:"typingDebounce" yaml:"typingDebounce"`
	ExcludedLanguages       []string                   `json:"excludedLanguages" yaml:"excludedLanguages"`
	LanguageSettings        map[string]LanguageProfile `json:"languageSettings" yaml:"languageSettings"`
	CustomEndpoint          string                     `json:"customEndpoint" yaml:"customEndpoint"`
	// RedactPatterns are accepted and stored, but prompts are sent unmodified.
	RedactPatterns []string `json:"redactPatterns" yaml:"redactPatterns"`
	ShowStatusBar  bool     `json:"showStatusBar" yaml:"showStatusBar"`
	AgentMode      bool     `json:"agentMode" yaml:"agentMode"`
}

// LanguageProfile returns the built-in profile for the language merged with the user's override.
func (s Settings) LanguageProfile(languageID string) LanguageProfile {
	profile := DefaultLanguageProfile(languageID)
	if override, ok := s.LanguageSettings[languageID]; ok {
		profile = profile.merge(override)
	}
	return profile
}

// IsLanguageExcluded reports whether inline completions are disabled for the language.
func (s Settings) IsLanguageExcluded(languageID string) bool {
	return slices.Contains(s.ExcludedLanguages, languageID)
}

// ModelID returns the configured default model, or DefaultModelID when unset.
func (s Settings) ModelID() string {
	if s.DefaultModel == "" {
		return DefaultModelID
	}
	return s.DefaultModel
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	s.ExcludedLanguages = slices.Clone(s.ExcludedLanguages)
	s.RedactPatterns = slices.Clone(s.RedactPatterns)
	if s.LanguageSettings != nil {
		profiles := make(map[string]LanguageProfile, len(s.LanguageSettings))
		for k, v := range s.LanguageSettings {
			v.ImportantPatterns = slices.Clone(v.ImportantPatterns)
			profiles[k] = v
		}
		s.LanguageSettings = profiles
	}
	return s
}

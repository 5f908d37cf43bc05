package consult

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed script.yaml
var defaultScriptYAML []byte

// Question is one preset intake question with quick-pick options.
type Question struct {
	ID                string   `yaml:"id"`
	Section           string   `yaml:"section"`
	Label             string   `yaml:"label"`
	Title             string   `yaml:"title"`
	Options           []string `yaml:"options"`
	DetailPlaceholder string   `yaml:"detail_placeholder"`
}

// PhasePrompt is the assistant message posted once when a phase is entered.
type PhasePrompt struct {
	ID          string `yaml:"id"`
	Prompt      string `yaml:"prompt"`
	Placeholder string `yaml:"placeholder"`
}

// FAQ is a preset follow-up question offered after the analysis.
type FAQ struct {
	Label  string `yaml:"label" json:"label"`
	Prompt string `yaml:"prompt" json:"-"`
}

// Script holds every user- and model-facing text of the consultation.
type Script struct {
	Title               string `yaml:"title"`
	Icon                string `yaml:"icon"`
	Caption             string `yaml:"caption"`
	Welcome             string `yaml:"welcome"`
	Flow                string `yaml:"flow"`
	Disclaimer          string `yaml:"disclaimer"`
	AnalyzeNow          string `yaml:"analyze_now"`
	StartAnalysis       string `yaml:"start_analysis"`
	NotFilled           string `yaml:"not_filled"`
	DefaultPlaceholder  string `yaml:"default_placeholder"`
	QuestionPlaceholder string `yaml:"question_placeholder"`

	Opening      PhasePrompt `yaml:"opening"`
	Supplement   PhasePrompt `yaml:"supplement"`
	PostAnalysis PhasePrompt `yaml:"post_analysis"`

	Questions []Question `yaml:"questions"`
	FAQs      []FAQ      `yaml:"faq"`

	Profile struct {
		Genders       []string `yaml:"genders"`
		Female        string   `yaml:"female"`
		DefaultGender string   `yaml:"default_gender"`
		DefaultAge    int      `yaml:"default_age"`
		MensesOptions []string `yaml:"menses_options"`
	} `yaml:"profile"`

	Summary struct {
		BasicHeading     string `yaml:"basic_heading"`
		ComplaintHeading string `yaml:"complaint_heading"`
		AgeLabel         string `yaml:"age_label"`
		GenderLabel      string `yaml:"gender_label"`
		MensesLabel      string `yaml:"menses_label"`
		ComplaintLabel   string `yaml:"complaint_label"`
		SupplementLabel  string `yaml:"supplement_label"`
	} `yaml:"summary"`

	RedFlags struct {
		Words  []string `yaml:"words"`
		Notice string   `yaml:"notice"`
	} `yaml:"red_flags"`

	Notices struct {
		MissingKey   string `yaml:"missing_key"`
		ModelFailure string `yaml:"model_failure"`
		Interrupted  string `yaml:"interrupted"`
	} `yaml:"notices"`

	Prompts struct {
		System          string `yaml:"system"`
		AnalysisRequest string `yaml:"analysis_request"`
		FollowupContext string `yaml:"followup_context"`
	} `yaml:"prompts"`
}

// DefaultScript returns the built-in consultation script.
func DefaultScript() (*Script, error) {
	return ParseScript(defaultScriptYAML)
}

// LoadScript reads a script override from disk.
func LoadScript(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(b)
}

// ParseScript decodes and validates a YAML script.
func ParseScript(b []byte) (*Script, error) {
	var sc Script
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the structural requirements the session logic relies on.
func (sc *Script) Validate() error {
	if strings.TrimSpace(sc.AnalyzeNow) == "" {
		return fmt.Errorf("invalid script: analyze_now is required")
	}
	if strings.TrimSpace(sc.StartAnalysis) == "" {
		return fmt.Errorf("invalid script: start_analysis is required")
	}
	if strings.TrimSpace(sc.Prompts.System) == "" {
		return fmt.Errorf("invalid script: prompts.system is required")
	}
	if len(sc.Questions) == 0 {
		return fmt.Errorf("invalid script: at least one question is required")
	}
	reserved := []string{sc.Opening.ID, sc.Supplement.ID, sc.PostAnalysis.ID}
	for _, id := range reserved {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("invalid script: opening, supplement and post_analysis need an id")
		}
	}
	seen := make(map[string]bool, len(sc.Questions)+len(reserved))
	for _, id := range reserved {
		if seen[id] {
			return fmt.Errorf("invalid script: duplicate prompt id %q", id)
		}
		seen[id] = true
	}
	for i, q := range sc.Questions {
		if strings.TrimSpace(q.ID) == "" {
			return fmt.Errorf("invalid script: question %d has no id", i+1)
		}
		if seen[q.ID] {
			return fmt.Errorf("invalid script: duplicate question id %q", q.ID)
		}
		seen[q.ID] = true
		if len(q.Options) == 0 {
			return fmt.Errorf("invalid script: question %q has no options", q.ID)
		}
	}
	if !contains(sc.Profile.Genders, sc.Profile.Female) {
		return fmt.Errorf("invalid script: profile.genders must include %q", sc.Profile.Female)
	}
	if !contains(sc.Profile.Genders, sc.Profile.DefaultGender) {
		return fmt.Errorf("invalid script: profile.default_gender %q is not a listed gender", sc.Profile.DefaultGender)
	}
	if sc.Profile.DefaultAge < MinAge || sc.Profile.DefaultAge > MaxAge {
		return fmt.Errorf("invalid script: profile.default_age must be between %d and %d", MinAge, MaxAge)
	}
	return nil
}

// QuickOptions returns the question's options followed by the analyze-now shortcut.
func (sc *Script) QuickOptions(q Question) []string {
	out := make([]string, 0, len(q.Options)+1)
	out = append(out, q.Options...)
	return append(out, sc.AnalyzeNow)
}

// IsFemale reports whether gender selects the menses field.
func (sc *Script) IsFemale(gender string) bool {
	return gender == sc.Profile.Female
}

func (sc *Script) questionPlaceholder(q Question) string {
	return strings.ReplaceAll(sc.QuestionPlaceholder, "{example}", q.DetailPlaceholder)
}

func (sc *Script) redFlagNotice(hits []string) string {
	return strings.ReplaceAll(sc.RedFlags.Notice, "{words}", strings.Join(hits, ", "))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

package consult

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyOutput is returned when the model produced no text.
var ErrEmptyOutput = errors.New("model returned an empty reply")

// AnalysisRequest carries everything needed to generate the first report.
type AnalysisRequest struct {
	Summary  string
	RedFlags []string
	Messages []Message
}

// BuildSummary renders the structured intake summary sent to the model.
func BuildSummary(sc *Script, s *Session) string {
	orNotFilled := func(v string) string {
		if v = strings.TrimSpace(v); v == "" {
			return sc.NotFilled
		}
		return v
	}
	line := func(b *strings.Builder, label, value string) {
		b.WriteString("- ")
		b.WriteString(label)
		b.WriteString("：")
		b.WriteString(value)
		b.WriteString("\n")
	}

	var b strings.Builder
	b.WriteString(sc.Summary.BasicHeading)
	b.WriteString("\n")
	age := sc.NotFilled
	if s.Profile.Age > 0 {
		age = strconv.Itoa(s.Profile.Age)
	}
	line(&b, sc.Summary.AgeLabel, age)
	line(&b, sc.Summary.GenderLabel, s.Profile.Gender)
	if sc.IsFemale(s.Profile.Gender) {
		line(&b, sc.Summary.MensesLabel, orNotFilled(s.Profile.Menses))
	}

	b.WriteString("\n")
	b.WriteString(sc.Summary.ComplaintHeading)
	b.WriteString("\n")
	line(&b, sc.Summary.ComplaintLabel, orNotFilled(s.Complaint))
	line(&b, sc.Summary.SupplementLabel, orNotFilled(s.Supplement))

	section := ""
	for i, q := range sc.Questions {
		if i == 0 || q.Section != section {
			section = q.Section
			b.WriteString("\n")
			if section != "" {
				b.WriteString(section)
				b.WriteString("\n")
			}
		}
		line(&b, q.Label, s.answer(sc, q.ID))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Session) answer(sc *Script, qid string) string {
	if v := strings.TrimSpace(s.Answers[qid]); v != "" {
		return v
	}
	return sc.NotFilled
}

// DetectRedFlags returns the words found in text, in list order.
func DetectRedFlags(words []string, text string) []string {
	var hits []string
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			hits = append(hits, w)
		}
	}
	return hits
}

// RedFlags scans everything the user entered for danger-sign keywords.
func RedFlags(sc *Script, s *Session) []string {
	parts := []string{s.Complaint, s.Supplement}
	for _, q := range sc.Questions {
		parts = append(parts, s.answer(sc, q.ID))
	}
	parts = append(parts, s.Profile.Menses)
	return DetectRedFlags(sc.RedFlags.Words, strings.Join(parts, "\n"))
}

// BeginAnalysis prepares the first report. A red-flag notice is posted to the
// transcript before the report, once per attempt.
func (s *Session) BeginAnalysis(sc *Script, now time.Time) (AnalysisRequest, error) {
	if s.Phase != PhaseSupplement {
		return AnalysisRequest{}, ErrWrongPhase
	}
	req := AnalysisRequest{
		Summary:  BuildSummary(sc, s),
		RedFlags: RedFlags(sc, s),
	}
	if len(req.RedFlags) > 0 {
		notice := sc.redFlagNotice(req.RedFlags)
		if !s.lastMessageIs(RoleAssistant, notice) {
			s.Notify(notice, now)
		}
	}
	req.Messages = []Message{
		{Role: RoleSystem, Content: sc.Prompts.System},
		{Role: RoleUser, Content: sc.Prompts.AnalysisRequest + req.Summary},
	}
	return req, nil
}

// CompleteAnalysis stores the report and opens the follow-up chat.
func (s *Session) CompleteAnalysis(sc *Script, output string, now time.Time) error {
	if s.Phase != PhaseSupplement {
		return ErrWrongPhase
	}
	if strings.TrimSpace(output) == "" {
		return ErrEmptyOutput
	}
	s.append(RoleAssistant, output)
	s.Analysis = output
	s.Followups = nil
	s.Phase = PhaseChat
	s.UpdatedAt = now
	s.Prompt(sc)
	return nil
}

// BeginFollowup posts the user's question and returns the model context:
// the intake summary with the earlier analysis, prior follow-ups and the
// new question.
func (s *Session) BeginFollowup(sc *Script, text string, now time.Time) ([]Message, error) {
	if s.Phase != PhaseChat {
		return nil, ErrWrongPhase
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	s.append(RoleUser, text)
	s.UpdatedAt = now

	intro := strings.NewReplacer(
		"{summary}", BuildSummary(sc, s),
		"{analysis}", s.Analysis,
	).Replace(sc.Prompts.FollowupContext)

	msgs := make([]Message, 0, len(s.Followups)+3)
	msgs = append(msgs,
		Message{Role: RoleSystem, Content: sc.Prompts.System},
		Message{Role: RoleUser, Content: intro},
	)
	msgs = append(msgs, s.Followups...)
	msgs = append(msgs, Message{Role: RoleUser, Content: text})
	return msgs, nil
}

// CompleteFollowup records a finished follow-up turn.
func (s *Session) CompleteFollowup(question, output string, now time.Time) error {
	if s.Phase != PhaseChat {
		return ErrWrongPhase
	}
	if strings.TrimSpace(output) == "" {
		return ErrEmptyOutput
	}
	s.Followups = append(s.Followups,
		Message{Role: RoleUser, Content: strings.TrimSpace(question)},
		Message{Role: RoleAssistant, Content: output},
	)
	s.append(RoleAssistant, output)
	s.UpdatedAt = now
	return nil
}

package consult

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyInput     = errors.New("input is empty")
	ErrWrongPhase     = errors.New("action not available in the current phase")
	ErrInvalidOption  = errors.New("option index out of range")
	ErrInvalidProfile = errors.New("invalid profile")
)

const (
	MinAge = 0
	MaxAge = 120
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Phase is the consultation stage a session is in. Phases only move forward
// until the session is reset.
type Phase string

const (
	PhaseComplaint  Phase = "complaint"
	PhaseQuestions  Phase = "questions"
	PhaseSupplement Phase = "supplement"
	PhaseChat       Phase = "chat"
)

// Profile is the basic information shown in the page sidebar. Age 0 means
// "not given".
type Profile struct {
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Menses string `json:"menses"`
}

// Action tells the caller what a submitted text requires next.
type Action int

const (
	ActionRecorded Action = iota
	ActionFollowup
)

type Session struct {
	ID            string            `json:"id"`
	Phase         Phase             `json:"phase"`
	QuestionIndex int               `json:"questionIndex"`
	Asked         map[string]bool   `json:"asked"`
	Complaint     string            `json:"complaint"`
	Supplement    string            `json:"supplement"`
	Answers       map[string]string `json:"answers"`
	Profile       Profile           `json:"profile"`
	Messages      []Message         `json:"messages"`
	Analysis      string            `json:"analysis"`
	Followups     []Message         `json:"followups"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// NewSession starts a consultation and posts the opening prompt.
func NewSession(id string, sc *Script, now time.Time) *Session {
	s := &Session{
		ID:        id,
		Profile:   Profile{Age: sc.Profile.DefaultAge, Gender: sc.Profile.DefaultGender},
		CreatedAt: now,
	}
	s.clear(sc, now)
	return s
}

// Reset drops the conversation but keeps the profile.
func (s *Session) Reset(sc *Script, now time.Time) {
	s.clear(sc, now)
}

func (s *Session) clear(sc *Script, now time.Time) {
	s.Phase = PhaseComplaint
	s.QuestionIndex = 0
	s.Asked = map[string]bool{}
	s.Complaint = ""
	s.Supplement = ""
	s.Answers = map[string]string{}
	s.Messages = nil
	s.Analysis = ""
	s.Followups = nil
	s.UpdatedAt = now
	s.Prompt(sc)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Asked = make(map[string]bool, len(s.Asked))
	for k, v := range s.Asked {
		c.Asked[k] = v
	}
	c.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	c.Messages = append([]Message(nil), s.Messages...)
	c.Followups = append([]Message(nil), s.Followups...)
	return &c
}

// Prompt posts the assistant prompt of the current phase unless it was
// already posted. It reports whether a message was added.
func (s *Session) Prompt(sc *Script) bool {
	var id, text string
	switch s.Phase {
	case PhaseComplaint:
		id, text = sc.Opening.ID, sc.Opening.Prompt
	case PhaseQuestions:
		q, ok := s.CurrentQuestion(sc)
		if !ok {
			return false
		}
		id, text = q.ID, q.Title
	case PhaseSupplement:
		id, text = sc.Supplement.ID, sc.Supplement.Prompt
	case PhaseChat:
		id, text = sc.PostAnalysis.ID, sc.PostAnalysis.Prompt
	default:
		return false
	}
	if s.Asked[id] {
		return false
	}
	s.append(RoleAssistant, text)
	s.Asked[id] = true
	return true
}

// Fit brings a session saved under another script in line with sc. An
// unknown phase restarts the consultation; a question position past the end
// of sc moves on to the supplement. It reports whether anything changed.
func (s *Session) Fit(sc *Script, now time.Time) bool {
	if s.Asked == nil {
		s.Asked = map[string]bool{}
	}
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	switch s.Phase {
	case PhaseComplaint, PhaseSupplement, PhaseChat:
		return false
	case PhaseQuestions:
		if _, ok := s.CurrentQuestion(sc); ok {
			return false
		}
		s.QuestionIndex = len(sc.Questions) - 1
		s.Phase = PhaseSupplement
		s.UpdatedAt = now
		s.Prompt(sc)
		return true
	default:
		s.Reset(sc, now)
		return true
	}
}

// CurrentQuestion returns the question being asked, if any.
func (s *Session) CurrentQuestion(sc *Script) (Question, bool) {
	if s.Phase != PhaseQuestions || s.QuestionIndex < 0 || s.QuestionIndex >= len(sc.Questions) {
		return Question{}, false
	}
	return sc.Questions[s.QuestionIndex], true
}

// SetProfile validates and stores the basic information.
func (s *Session) SetProfile(sc *Script, p Profile) error {
	if p.Age < MinAge || p.Age > MaxAge {
		return fmt.Errorf("%w: age must be between %d and %d", ErrInvalidProfile, MinAge, MaxAge)
	}
	if !contains(sc.Profile.Genders, p.Gender) {
		return fmt.Errorf("%w: unknown gender %q", ErrInvalidProfile, p.Gender)
	}
	if sc.IsFemale(p.Gender) {
		if !contains(sc.Profile.MensesOptions, p.Menses) {
			return fmt.Errorf("%w: unknown menses option %q", ErrInvalidProfile, p.Menses)
		}
	} else {
		p.Menses = ""
	}
	s.Profile = p
	return nil
}

// SubmitText records free text for the current phase. In the chat phase
// nothing is recorded and ActionFollowup is returned.
func (s *Session) SubmitText(sc *Script, text string, now time.Time) (Action, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ActionRecorded, ErrEmptyInput
	}
	switch s.Phase {
	case PhaseComplaint:
		s.Complaint = text
		s.append(RoleUser, text)
		s.Phase = PhaseQuestions
		s.QuestionIndex = 0
	case PhaseQuestions:
		q, ok := s.CurrentQuestion(sc)
		if !ok {
			return ActionRecorded, ErrWrongPhase
		}
		s.Answers[q.ID] = text
		s.append(RoleUser, text)
		s.advance(sc)
	case PhaseSupplement:
		s.Supplement = text
		s.append(RoleUser, text)
	case PhaseChat:
		return ActionFollowup, nil
	default:
		return ActionRecorded, ErrWrongPhase
	}
	s.UpdatedAt = now
	s.Prompt(sc)
	return ActionRecorded, nil
}

// ChooseOption records a quick option of the current question.
func (s *Session) ChooseOption(sc *Script, index int, now time.Time) error {
	q, ok := s.CurrentQuestion(sc)
	if !ok {
		return ErrWrongPhase
	}
	opts := sc.QuickOptions(q)
	if index < 0 || index >= len(opts) {
		return ErrInvalidOption
	}
	opt := opts[index]
	s.Answers[q.ID] = opt
	s.append(RoleUser, opt)
	if opt == sc.AnalyzeNow {
		s.Phase = PhaseSupplement
	} else {
		s.advance(sc)
	}
	s.UpdatedAt = now
	s.Prompt(sc)
	return nil
}

func (s *Session) advance(sc *Script) {
	s.QuestionIndex++
	if s.QuestionIndex >= len(sc.Questions) {
		s.QuestionIndex = len(sc.Questions) - 1
		s.Phase = PhaseSupplement
	}
}

// Placeholder is the hint shown in the chat input.
func (s *Session) Placeholder(sc *Script) string {
	switch s.Phase {
	case PhaseComplaint:
		return sc.Opening.Placeholder
	case PhaseQuestions:
		if q, ok := s.CurrentQuestion(sc); ok {
			return sc.questionPlaceholder(q)
		}
	case PhaseSupplement:
		return sc.Supplement.Placeholder
	case PhaseChat:
		return sc.PostAnalysis.Placeholder
	}
	return sc.DefaultPlaceholder
}

// QuickOptions lists the buttons for the current question.
func (s *Session) QuickOptions(sc *Script) []string {
	q, ok := s.CurrentQuestion(sc)
	if !ok {
		return nil
	}
	return sc.QuickOptions(q)
}

// FAQ lists the preset follow-ups, available once the analysis exists.
func (s *Session) FAQ(sc *Script) []FAQ {
	if s.Phase != PhaseChat {
		return nil
	}
	return sc.FAQs
}

// FAQPrompt expands the i-th preset into the question sent to the model.
func (s *Session) FAQPrompt(sc *Script, i int) (string, error) {
	if s.Phase != PhaseChat {
		return "", ErrWrongPhase
	}
	if i < 0 || i >= len(sc.FAQs) {
		return "", ErrInvalidOption
	}
	return sc.FAQs[i].Prompt, nil
}

// CanAnalyze reports whether the analysis may be started.
func (s *Session) CanAnalyze() bool {
	return s.Phase == PhaseSupplement
}

// Notify appends an assistant notice without changing the phase.
func (s *Session) Notify(notice string, now time.Time) {
	s.append(RoleAssistant, notice)
	s.UpdatedAt = now
}

func (s *Session) append(role Role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

func (s *Session) lastMessageIs(role Role, content string) bool {
	if len(s.Messages) == 0 {
		return false
	}
	m := s.Messages[len(s.Messages)-1]
	return m.Role == role && m.Content == content
}

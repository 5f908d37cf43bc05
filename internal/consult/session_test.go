package consult

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func defaultScript(t *testing.T) *Script {
	t.Helper()
	sc, err := DefaultScript()
	require.NoError(t, err)
	return sc
}

func lastMessage(s *Session) Message {
	return s.Messages[len(s.Messages)-1]
}

func TestNewSession_PostsOpeningPrompt(t *testing.T) {
	sc := defaultScript(t)
	s := NewSession("s1", sc, t0)

	assert.Equal(t, PhaseComplaint, s.Phase)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, RoleAssistant, s.Messages[0].Role)
	assert.Equal(t, sc.Opening.Prompt, s.Messages[0].Content)
	assert.True(t, s.Asked[sc.Opening.ID])
	assert.Equal(t, Profile{Age: 20, Gender: "男"}, s.Profile)
	assert.Equal(t, sc.Opening.Placeholder, s.Placeholder(sc))
	assert.Nil(t, s.QuickOptions(sc))
	assert.False(t, s.CanAnalyze())

	assert.False(t, s.Prompt(sc), "prompt must not be posted twice")
	assert.Len(t, s.Messages, 1)
}

func TestSubmitText_WalksThroughQuestions(t *testing.T) {
	sc := defaultScript(t)
	s := NewSession("s1", sc, t0)

	act, err := s.SubmitText(sc, "  最近总是疲劳，胃口差  ", t0)
	require.NoError(t, err)
	assert.Equal(t, ActionRecorded, act)
	assert.Equal(t, "最近总是疲劳，胃口差", s.Complaint)
	assert.Equal(t, PhaseQuestions, s.Phase)
	assert.Equal(t, 0, s.QuestionIndex)
	assert.Equal(t, sc.Questions[0].Title, lastMessage(s).Content)
	assert.Equal(t, "若无合适选项，您也可以直接输入（如：冬天怕冷夏天怕热）", s.Placeholder(sc))

	for i, q := range sc.Questions {
		require.Equal(t, PhaseQuestions, s.Phase)
		require.Equal(t, i, s.QuestionIndex)
		_, err := s.SubmitText(sc, "回答"+q.ID, t0)
		require.NoError(t, err)
		assert.Equal(t, "回答"+q.ID, s.Answers[q.ID])
	}

	assert.Equal(t, PhaseSupplement, s.Phase)
	assert.True(t, s.CanAnalyze())
	assert.Equal(t, sc.Supplement.Prompt, lastMessage(s).Content)
	assert.Equal(t, sc.Supplement.Placeholder, s.Placeholder(sc))

	// supplement is overwritten and the phase stays
	_, err = s.SubmitText(sc, "饮食不规律", t0)
	require.NoError(t, err)
	_, err = s.SubmitText(sc, "经常熬夜", t0)
	require.NoError(t, err)
	assert.Equal(t, "经常熬夜", s.Supplement)
	assert.Equal(t, PhaseSupplement, s.Phase)
	assert.Equal(t, RoleUser, lastMessage(s).Role)
}

func TestSubmitText_EmptyInput(t *testing.T) {
	sc := defaultScript(t)
	s := NewSession("s1", sc, t0)

	_, err := s.SubmitText(sc, "   \n", t0)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, PhaseComplaint, s.Phase)
}

func TestChooseOption(t *testing.T) {
	sc := defaultScript(t)
	s := NewSession("s1", sc, t0)

	assert.ErrorIs(t, s.ChooseOption(sc, 0, t0), ErrWrongPhase)

	_, err := s.SubmitText(sc, "头晕", t0)
	require.NoError(t, err)

	opts := s.QuickOptions(sc)
	require.Len(t, opts, 4)
	assert.Equal(t, sc.AnalyzeNow, opts[3])

	assert.ErrorIs(t, s.ChooseOption(sc, 4, t0), ErrInvalidOption)
	assert.ErrorIs(t, s.ChooseOption(sc, -1, t0), ErrInvalidOption)

	require.NoError(t, s.ChooseOption(sc, 0, t0))
	assert.Equal(t, "明显怕冷（喜热饮、手脚凉）", s.Answers["q2"])
	assert.Equal(t, 1, s.QuestionIndex)
	assert.Equal(t, sc.Questions[1].Title, lastMessage(s).Content)
}

func TestChooseOption_AnalyzeNowSkipsRemainingQuestions(t *testing.T) {
	sc := defaultScript(t)
	s := NewSession("s1", sc, t0)
	_, err := s.SubmitText(sc, "头晕", t0)
	require.NoError(t, err)

	require.NoError(t, s.ChooseOption(sc, 3, t0))

	assert.Equal(t, PhaseSupplement, s.Phase)
	assert.Equal(t, sc.AnalyzeNow, s.Answers["q2"])
	assert.False(t, s.Asked["q3"])
	assert.Equal(t, sc.Supplement.Prompt, lastMessage(s).Content)
}

func TestSubmitText_ChatPhaseRequestsFollowup(t *testing.T) {
	sc := defaultScript(t)
	s := analysedSession(t, sc)
	n := len(s.Messages)

	act, err := s.SubmitText(sc, "我该怎么调理？", t0)
	require.NoError(t, err)
	assert.Equal(t, ActionFollowup, act)
	assert.Len(t, s.Messages, n, "follow-up text is posted by BeginFollowup")
}

func TestSetProfile(t *testing.T) {
	sc := defaultScript(t)
	s := NewSession("s1", sc, t0)

	require.NoError(t, s.SetProfile(sc, Profile{Age: 35, Gender: "女", Menses: "不规律"}))
	assert.Equal(t, Profile{Age: 35, Gender: "女", Menses: "不规律"}, s.Profile)

	require.NoError(t, s.SetProfile(sc, Profile{Age: 0, Gender: "男", Menses: "不规律"}))
	assert.Equal(t, "", s.Profile.Menses, "menses is dropped for non-female profiles")

	assert.ErrorIs(t, s.SetProfile(sc, Profile{Age: 121, Gender: "男"}), ErrInvalidProfile)
	assert.ErrorIs(t, s.SetProfile(sc, Profile{Age: -1, Gender: "男"}), ErrInvalidProfile)
	assert.ErrorIs(t, s.SetProfile(sc, Profile{Age: 30, Gender: "other"}), ErrInvalidProfile)
	assert.ErrorIs(t, s.SetProfile(sc, Profile{Age: 30, Gender: "女", Menses: "随便"}), ErrInvalidProfile)
}

func TestReset_KeepsProfile(t *testing.T) {
	sc := defaultScript(t)
	s := analysedSession(t, sc)
	require.NoError(t, s.SetProfile(sc, Profile{Age: 42, Gender: "女", Menses: "规律"}))

	s.Reset(sc, t0.Add(time.Minute))

	assert.Equal(t, PhaseComplaint, s.Phase)
	assert.Equal(t, "", s.Complaint)
	assert.Empty(t, s.Answers)
	assert.Empty(t, s.Analysis)
	assert.Empty(t, s.Followups)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, sc.Opening.Prompt, s.Messages[0].Content)
	assert.Equal(t, Profile{Age: 42, Gender: "女", Menses: "规律"}, s.Profile)
	assert.Equal(t, "s1", s.ID)
}

func TestClone_IsDeep(t *testing.T) {
	sc := defaultScript(t)
	s := NewSession("s1", sc, t0)
	_, err := s.SubmitText(sc, "头晕", t0)
	require.NoError(t, err)

	c := s.Clone()
	c.Answers["q2"] = "changed"
	c.Asked["x"] = true
	c.Messages[0].Content = "changed"

	assert.NotContains(t, s.Answers, "q2")
	assert.False(t, s.Asked["x"])
	assert.NotEqual(t, "changed", s.Messages[0].Content)
}

func TestFAQ(t *testing.T) {
	sc := defaultScript(t)
	s := NewSession("s1", sc, t0)
	assert.Nil(t, s.FAQ(sc))
	_, err := s.FAQPrompt(sc, 0)
	assert.ErrorIs(t, err, ErrWrongPhase)

	s = analysedSession(t, sc)
	require.Len(t, s.FAQ(sc), 3)
	p, err := s.FAQPrompt(sc, 2)
	require.NoError(t, err)
	assert.Equal(t, "结合我前面提供的信息，如果只做一两件事，最重要建议是什么？", p)
	_, err = s.FAQPrompt(sc, 3)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

// analysedSession drives a session through the intake and a successful report.
func analysedSession(t *testing.T, sc *Script) *Session {
	t.Helper()
	s := NewSession("s1", sc, t0)
	_, err := s.SubmitText(sc, "最近总是疲劳", t0)
	require.NoError(t, err)
	require.NoError(t, s.ChooseOption(sc, 3, t0))
	_, err = s.BeginAnalysis(sc, t0)
	require.NoError(t, err)
	require.NoError(t, s.CompleteAnalysis(sc, "## 状态分析\n- 倾向于气虚", t0))
	return s
}

func shortScript(t *testing.T, n int) *Script {
	t.Helper()
	sc := defaultScript(t)
	sc.Questions = sc.Questions[:n]
	require.NoError(t, sc.Validate())
	return sc
}

func TestQuestionIndexPastScript_DoesNotPanic(t *testing.T) {
	long := defaultScript(t)
	s := NewSession("s1", long, t0)
	_, err := s.SubmitText(long, "头痛", t0)
	require.NoError(t, err)
	s.QuestionIndex = 4

	short := shortScript(t, 2)
	_, ok := s.CurrentQuestion(short)
	assert.False(t, ok)
	assert.False(t, s.Prompt(short))
	assert.Nil(t, s.QuickOptions(short))

	_, err = s.SubmitText(short, "怕冷", t0)
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.ErrorIs(t, s.ChooseOption(short, 0, t0), ErrWrongPhase)
}

func TestFit(t *testing.T) {
	long := defaultScript(t)
	short := shortScript(t, 2)
	later := t0.Add(time.Minute)

	t.Run("question past the end moves to supplement", func(t *testing.T) {
		s := NewSession("s1", long, t0)
		_, err := s.SubmitText(long, "头痛", t0)
		require.NoError(t, err)
		s.QuestionIndex = 4

		assert.True(t, s.Fit(short, later))
		assert.Equal(t, PhaseSupplement, s.Phase)
		assert.Equal(t, 1, s.QuestionIndex)
		assert.Equal(t, short.Supplement.Prompt, lastMessage(s).Content)
		assert.Equal(t, later, s.UpdatedAt)
		assert.True(t, s.CanAnalyze())

		_, err = s.SubmitText(short, "最近加班多", later)
		require.NoError(t, err)
		assert.Equal(t, "最近加班多", s.Supplement)
	})

	t.Run("unknown phase restarts", func(t *testing.T) {
		s := NewSession("s1", long, t0)
		s.Phase = Phase("stage9")
		s.Profile.Age = 40

		assert.True(t, s.Fit(short, later))
		assert.Equal(t, PhaseComplaint, s.Phase)
		require.Len(t, s.Messages, 1)
		assert.Equal(t, 40, s.Profile.Age)
	})

	t.Run("valid session is untouched", func(t *testing.T) {
		s := NewSession("s1", long, t0)
		_, err := s.SubmitText(long, "头痛", t0)
		require.NoError(t, err)
		before := s.Clone()

		assert.False(t, s.Fit(short, later))
		assert.Equal(t, before, s)
	})

	t.Run("missing maps are initialised", func(t *testing.T) {
		s := &Session{ID: "s1", Phase: PhaseComplaint}
		assert.False(t, s.Fit(short, later))
		assert.NotNil(t, s.Asked)
		assert.NotNil(t, s.Answers)
	})
}

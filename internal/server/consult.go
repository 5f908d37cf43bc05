package server

import (
	"context"
	"net/http"
	"strings"

	"tcm-wellness-backend/internal/consult"
	"tcm-wellness-backend/internal/llm"
	"tcm-wellness-backend/internal/store"
	"tcm-wellness-backend/internal/types"
)

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sid, err := s.sessionID(w, r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeView(w, sid)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sid, err := s.sessionID(w, r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	var req types.ProfileRequest
	if !s.decode(w, r, &req) {
		return
	}
	p := consult.Profile{Age: req.Age, Gender: req.Gender, Menses: req.Menses}
	if err := s.store.Update(sid, func(sess *consult.Session) error {
		return sess.SetProfile(s.script, p)
	}); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeView(w, sid)
}

func (s *Server) handleOption(w http.ResponseWriter, r *http.Request) {
	sid, err := s.sessionID(w, r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	var req types.OptionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.UpdateIdle(sid, func(sess *consult.Session) error {
		return sess.ChooseOption(s.script, *req.Index, s.now())
	}); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeView(w, sid)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sid, err := s.sessionID(w, r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.store.UpdateIdle(sid, func(sess *consult.Session) error {
		sess.Reset(s.script, s.now())
		return nil
	}); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeView(w, sid)
}

// handleMessage records intake answers and, once the analysis exists,
// streams a follow-up reply.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sid, err := s.sessionID(w, r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	var req types.MessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	var action consult.Action
	if err := s.store.UpdateIdle(sid, func(sess *consult.Session) error {
		var err error
		action, err = sess.SubmitText(s.script, req.Message, s.now())
		return err
	}); err != nil {
		s.writeErr(w, err)
		return
	}
	if action == consult.ActionFollowup {
		s.followup(w, r, sid, req.Message)
		return
	}
	s.writeView(w, sid)
}

func (s *Server) handleFAQ(w http.ResponseWriter, r *http.Request) {
	sid, err := s.sessionID(w, r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	var req types.OptionRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, err := s.store.Get(sid)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	question, err := sess.FAQPrompt(s.script, *req.Index)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.followup(w, r, sid, question)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sid, err := s.sessionID(w, r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.store.Acquire(sid); err != nil {
		s.writeErr(w, err)
		return
	}
	defer s.store.Release(sid)

	sess, err := s.store.Get(sid)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if !sess.CanAnalyze() {
		s.writeErr(w, consult.ErrWrongPhase)
		return
	}
	apiKey := s.apiKey(r)
	if strings.TrimSpace(apiKey) == "" {
		s.writeError(w, http.StatusBadRequest, s.script.Notices.MissingKey)
		return
	}

	var req consult.AnalysisRequest
	if err := s.store.Update(sid, func(sess *consult.Session) error {
		var err error
		req, err = sess.BeginAnalysis(s.script, s.now())
		return err
	}); err != nil {
		s.writeErr(w, err)
		return
	}
	if len(req.RedFlags) > 0 {
		s.log.Warn("[analyze] red flags in session", sid, req.RedFlags)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	sw := newStreamWriter(w)
	output, err := s.chat.StreamChat(ctx, apiKey, req.Messages, sw.write)
	if err == nil {
		err = s.store.Update(sid, func(sess *consult.Session) error {
			return sess.CompleteAnalysis(s.script, output, s.now())
		})
	}
	if err != nil {
		s.log.Error("[analyze] generation failed for session", sid, err)
		s.streamFailed(w, sw, err)
		return
	}
	s.archive(sid, req, output)
}

// followup streams an answer to a question asked after the analysis. The
// question is posted to the transcript first; failures are posted as notices.
func (s *Server) followup(w http.ResponseWriter, r *http.Request, sid, question string) {
	if err := s.store.Acquire(sid); err != nil {
		s.writeErr(w, err)
		return
	}
	defer s.store.Release(sid)

	var msgs []consult.Message
	if err := s.store.Update(sid, func(sess *consult.Session) error {
		var err error
		msgs, err = sess.BeginFollowup(s.script, question, s.now())
		return err
	}); err != nil {
		s.writeErr(w, err)
		return
	}

	apiKey := s.apiKey(r)
	if strings.TrimSpace(apiKey) == "" {
		s.notify(sid, s.script.Notices.MissingKey)
		sw := newStreamWriter(w)
		_ = sw.write(s.script.Notices.MissingKey)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	sw := newStreamWriter(w)
	output, err := s.chat.StreamChat(ctx, apiKey, msgs, sw.write)
	if err == nil {
		err = s.store.Update(sid, func(sess *consult.Session) error {
			return sess.CompleteFollowup(question, output, s.now())
		})
	}
	if err != nil {
		s.log.Error("[followup] generation failed for session", sid, err)
		s.notify(sid, s.script.Notices.ModelFailure)
		s.streamFailed(w, sw, err)
	}
}

func (s *Server) notify(sid, notice string) {
	if err := s.store.Update(sid, func(sess *consult.Session) error {
		sess.Notify(notice, s.now())
		return nil
	}); err != nil {
		s.log.Warn("failed to post notice to session", sid, err)
	}
}

// streamFailed reports a generation failure: as a JSON error when nothing was
// streamed yet, otherwise as a trailing notice in the stream.
func (s *Server) streamFailed(w http.ResponseWriter, sw *streamWriter, err error) {
	if sw.started {
		_ = sw.write("\n\n" + s.script.Notices.Interrupted)
		return
	}
	if llm.IsAuthError(err) {
		s.writeError(w, http.StatusUnauthorized, "deepseek api key was rejected")
		return
	}
	s.writeError(w, http.StatusBadGateway, s.script.Notices.ModelFailure)
}

// archive stores a finished analysis. Failures only get logged.
func (s *Server) archive(sid string, req consult.AnalysisRequest, output string) {
	if s.reports == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	report := &store.Report{
		SessionID: sid,
		Summary:   req.Summary,
		Analysis:  output,
		RedFlags:  req.RedFlags,
		Model:     s.cfg.Model,
	}
	if err := s.reports.SaveReport(ctx, report); err != nil {
		s.log.Error("[analyze] failed to archive report for session", sid, err)
		return
	}
	s.log.Info("[analyze] archived report", report.ID)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.writeError(w, http.StatusNotFound, "report archive is not configured")
		return
	}
	sid, err := s.sessionID(w, r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	reports, err := s.reports.ListReports(r.Context(), sid)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

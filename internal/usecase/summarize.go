package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chatsum/internal/domain"
	"chatsum/internal/extract"
	"chatsum/internal/session"
)

const defaultMaxTokens = 500

type TextExtractor interface {
	Extract(ctx context.Context, up extract.Upload) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, prompt string, cfg domain.GenerationConfig) (string, error)
}

// State is a step of one submission cycle.
type State string

const (
	StateIdle           State = "idle"
	StateInputCollected State = "input_collected"
	StateExtracting     State = "extracting"
	StateTruncating     State = "truncating"
	StateSummarizing    State = "summarizing"
	StateDisplayed      State = "displayed"
)

type SubmitInput struct {
	Text   string
	Upload *extract.Upload
}

// Result describes how a cycle ended. State is either StateIdle or
// StateDisplayed.
type Result struct {
	State       State
	Notices     []Notice
	Prompt      string
	Summary     string
	InputTokens int
}

type SummarizeService struct {
	extractor  TextExtractor
	summarizer Summarizer
	maxTokens  int
	generation domain.GenerationConfig
}

func NewSummarizeService(ex TextExtractor, s Summarizer, maxTokens int) (*SummarizeService, error) {
	if ex == nil {
		return nil, errors.New("usecase: text extractor must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: summarizer must not be nil")
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &SummarizeService{
		extractor:  ex,
		summarizer: s,
		maxTokens:  maxTokens,
		generation: domain.DefaultGenerationConfig(),
	}, nil
}

// Submit runs one form submission against the session's history. Every
// failure is recovered into a notice on the result.
func (s *SummarizeService) Submit(ctx context.Context, sess *session.Session, in SubmitInput) Result {
	sess.Lock()
	defer sess.Unlock()

	res := s.submit(ctx, sess, in)
	slog.InfoContext(ctx, "summarize cycle finished",
		"session", sess.ID,
		"state", res.State,
		"input_tokens", res.InputTokens,
		"notices", noticeCodes(res.Notices),
	)
	return res
}

func (s *SummarizeService) submit(ctx context.Context, sess *session.Session, in SubmitInput) Result {
	res := Result{State: StateIdle}

	pasted := strings.TrimSpace(in.Text)
	if pasted == "" && in.Upload == nil {
		res.Notices = append(res.Notices, warning(ErrorEmptyInput, "missing_input", msgProvideInput))
		return res
	}
	res.State = StateInputCollected

	text := pasted
	if in.Upload != nil {
		res.State = StateExtracting
		extracted, err := s.extractor.Extract(ctx, *in.Upload)
		if err != nil {
			res.Notices = append(res.Notices, extractionNotice(err))
			extracted = ""
		}
		text = extracted
	}

	res.State = StateTruncating
	truncated, count := truncateTokens(text, s.maxTokens)
	res.InputTokens = count
	if count == 0 {
		res.Notices = append(res.Notices, warning(ErrorEmptyInput, "no_text_found", msgNoTextFound))
		res.State = StateIdle
		return res
	}

	sess.History.Append(domain.ChatTurn{Role: domain.RoleUser, Message: text})

	res.State = StateSummarizing
	res.Prompt = buildPrompt(truncated)
	summary, err := s.summarizer.Summarize(ctx, res.Prompt, s.generation)
	if err != nil {
		res.Notices = append(res.Notices, failure(ErrorGeneration, "summarizer_error", fmt.Sprintf(msgGenerationError, err), err))
		res.State = StateIdle
		return res
	}

	sess.History.Append(domain.ChatTurn{Role: domain.RoleAssistant, Message: summary})
	res.Summary = summary
	res.State = StateDisplayed
	return res
}

// Clear empties the session's history.
func (s *SummarizeService) Clear(sess *session.Session) {
	sess.Lock()
	defer sess.Unlock()
	sess.History.Clear()
}

// History returns a snapshot of the session's turns.
func (s *SummarizeService) History(sess *session.Session) []domain.ChatTurn {
	sess.Lock()
	defer sess.Unlock()
	return sess.History.Turns()
}

func noticeCodes(notices []Notice) []string {
	codes := make([]string, 0, len(notices))
	for _, n := range notices {
		if n.Err != nil {
			codes = append(codes, string(n.Err.Code))
		}
	}
	return codes
}

// SPDX-License-Identifier: MIT
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/screendiary/screendiary/internal/config"
	xlog "github.com/screendiary/screendiary/internal/log"
	"github.com/screendiary/screendiary/internal/store"
)

const (
	chatTemperature = 0.3
	chatTimeout     = 120 * time.Second
)

// ErrAIDisabled marks narrative requests while no AI endpoint is configured.
var ErrAIDisabled = errors.New("ai summaries disabled")

// jsonObject salvages the outermost {...} from a chatty model answer.
var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// Summarizer derives the day report and, on request, the AI narrative.
type Summarizer struct {
	cfg    config.Config
	st     *store.Store
	client *openai.Client
	now    func() time.Time
	log    zerolog.Logger
}

// NewSummarizer builds the summarizer against the configured endpoint.
func NewSummarizer(cfg config.Config, st *store.Store) *Summarizer {
	apiKey := cfg.AI.APIKey
	if apiKey == "" {
		apiKey = "unused"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.AI.APIBase != "" {
		clientCfg.BaseURL = cfg.AI.APIBase
	}
	return &Summarizer{
		cfg:    cfg,
		st:     st,
		client: openai.NewClientWithConfig(clientCfg),
		now:    time.Now,
		log:    xlog.WithComponent("activity"),
	}
}

func (s *Summarizer) aiEnabled() bool {
	return s.cfg.AI.Enabled && s.cfg.AI.APIKey != ""
}

// DayReport bundles everything derived for one date.
type DayReport struct {
	Date      string
	Sessions  []*Session
	Breaks    []Break
	Metrics   DayMetrics
	AISummary *SummaryResult
	MOTD      string
}

// DayReport derives sessions, breaks and metrics for a date. The AI
// narrative is served from cache; regenerate forces a fresh model call and
// refreshes the cached narrative and message of the day.
func (s *Summarizer) DayReport(ctx context.Context, date string, regenerate bool) (*DayReport, error) {
	events, err := s.st.WindowEventsForDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("window events for %s: %w", date, err)
	}

	report := &DayReport{Date: date, Metrics: DayMetrics{CategorySeconds: map[string]int{}}}
	if len(events) == 0 {
		return report, nil
	}

	report.Sessions = MergeSessions(events)
	report.Breaks = DetectBreaks(report.Sessions)
	report.Metrics = ComputeMetrics(report.Sessions, report.Breaks)

	if !s.aiEnabled() {
		return report, nil
	}

	if !regenerate {
		if cached, err := s.cachedSummary(ctx, date); err == nil {
			report.AISummary = cached
		}
	}
	if regenerate {
		summary, err := s.generateSummary(ctx, report.Sessions, report.Metrics)
		if err != nil {
			s.log.Error().Err(err).Str("event", "activity.summary_failed").Str("date", date).Msg("ai summary failed")
		} else if summary != nil {
			report.AISummary = summary
			if err := s.saveSummary(ctx, date, summary, len(events)); err != nil {
				return nil, err
			}
			if summary.Summary != "" {
				if motd, err := s.generateMOTD(ctx, summary.Summary, date); err == nil && motd != "" {
					report.MOTD = motd
					if err := s.st.SaveMOTD(ctx, date, motd); err != nil {
						s.log.Warn().Err(err).Str("event", "activity.motd_save_failed").Msg("motd save failed")
					}
				}
			}
		}
	}

	if report.MOTD == "" {
		if motd, err := s.st.MOTD(ctx, date); err == nil {
			report.MOTD = motd
		}
	}
	return report, nil
}

// MOTD returns the cached message of the day for today, generating one from
// the cached day summary when absent.
func (s *Summarizer) MOTD(ctx context.Context) (string, error) {
	today := s.now().Format(store.DateLayout)

	if cached, err := s.st.MOTD(ctx, today); err == nil && cached != "" {
		return cached, nil
	}
	if !s.aiEnabled() {
		return "", ErrAIDisabled
	}

	summaryText := ""
	if cached, err := s.cachedSummary(ctx, today); err == nil && cached != nil {
		summaryText = cached.Summary
	}

	motd, err := s.generateMOTD(ctx, summaryText, today)
	if err != nil {
		return "", err
	}
	if motd != "" {
		if err := s.st.SaveMOTD(ctx, today, motd); err != nil {
			s.log.Warn().Err(err).Str("event", "activity.motd_save_failed").Msg("motd save failed")
		}
	}
	return motd, nil
}

func (s *Summarizer) cachedSummary(ctx context.Context, date string) (*SummaryResult, error) {
	cached, err := s.st.DaySummary(ctx, date)
	if err != nil || cached == nil {
		return nil, err
	}
	var result SummaryResult
	if err := json.Unmarshal([]byte(cached.SummaryText), &result); err != nil {
		return nil, nil
	}
	return &result, nil
}

func (s *Summarizer) saveSummary(ctx context.Context, date string, summary *SummaryResult, eventCount int) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return s.st.SaveDaySummary(ctx, &store.DaySummary{
		Date:        date,
		SummaryText: string(raw),
		Model:       s.cfg.AI.ChatModel,
		EventCount:  eventCount,
	})
}

func (s *Summarizer) generateSummary(ctx context.Context, sessions []*Session, metrics DayMetrics) (*SummaryResult, error) {
	if !s.aiEnabled() {
		return nil, ErrAIDisabled
	}
	prompt := BuildSummaryPrompt(sessions, metrics)

	var result SummaryResult
	if err := s.callJSON(ctx, prompt, &result); err != nil {
		return nil, err
	}
	if len(result.Blocks) == 0 && result.Summary == "" {
		return nil, nil
	}
	return PostprocessBlocks(&result), nil
}

func (s *Summarizer) generateMOTD(ctx context.Context, summaryText, date string) (string, error) {
	prompt := BuildMOTDPrompt(summaryText, date, s.now().Hour())
	var result struct {
		MOTD string `json:"motd"`
	}
	if err := s.callJSON(ctx, prompt, &result); err != nil {
		return "", err
	}
	return result.MOTD, nil
}

// callJSON asks the model for a JSON object. Endpoints without json_object
// support get a plain retry, and a chatty answer is salvaged by extracting
// its outermost object.
func (s *Summarizer) callJSON(ctx context.Context, prompt string, out any) error {
	cctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: s.cfg.AI.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: chatTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	resp, err := s.client.CreateChatCompletion(cctx, req)
	if err != nil {
		req.ResponseFormat = nil
		resp, err = s.client.CreateChatCompletion(cctx, req)
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
	}
	if len(resp.Choices) == 0 {
		return errors.New("chat completion returned no choices")
	}
	content := resp.Choices[0].Message.Content

	if err := json.Unmarshal([]byte(content), out); err == nil {
		return nil
	}
	if m := jsonObject.FindString(content); m != "" {
		if err := json.Unmarshal([]byte(m), out); err == nil {
			return nil
		}
	}
	s.log.Warn().Str("event", "activity.parse_failed").Str("content", truncate(content, 200)).Msg("unparseable model answer")
	return errors.New("model answer is not valid JSON")
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/1001stories/stories-api/internal/generation"
)

// GrammarIssue is one problem found by the grammar check.
type GrammarIssue struct {
	Line       int    `json:"line"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// GrammarResult is the normalized grammar check reply.
type GrammarResult struct {
	GrammarScore int            `json:"grammarScore"`
	Issues       []GrammarIssue `json:"grammarIssues"`
	Suggestions  []string       `json:"suggestions"`
}

// StructureResult is the normalized story structure analysis.
type StructureResult struct {
	Analysis     string   `json:"structureAnalysis"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Score        int      `json:"structureScore"`
}

// WritingHelp is the answer to a writer's question.
type WritingHelp struct {
	Answer string `json:"answer"`
}

// Speech is synthesized audio. AudioData is base64 encoded in JSON.
type Speech struct {
	AudioData []byte `json:"audioData"`
	MIMEType  string `json:"mimeType"`
}

// Adaptation is a story rewritten for a younger age band.
type Adaptation struct {
	AdaptedText   string `json:"adaptedText"`
	AgeBand       string `json:"ageBand"`
	Title         string `json:"title,omitempty"`
	OriginalWords int    `json:"originalWords"`
	AdaptedWords  int    `json:"adaptedWords"`
}

// ReadingReply is the reading assistant's answer.
type ReadingReply struct {
	Response string `json:"response"`
}

// Improvement pairs an exact passage from the story with a suggestion.
type Improvement struct {
	Text       string `json:"text,omitempty"`
	Suggestion string `json:"suggestion"`
}

// UnmarshalJSON accepts either an object or a bare suggestion string.
func (i *Improvement) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = Improvement{Suggestion: s}
		return nil
	}
	type plain Improvement
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*i = Improvement(p)
	return nil
}

// ReviewResult is the normalized reply for a queued submission review.
type ReviewResult struct {
	Summary       string        `json:"summary"`
	Score         *int          `json:"score,omitempty"`
	Strengths     []string      `json:"strengths"`
	Improvements  []Improvement `json:"improvements"`
	Encouragement string        `json:"encouragement,omitempty"`
	Model         string        `json:"-"`
}

// Feedback returns the result as the opaque JSON stored with a review.
func (r ReviewResult) Feedback() json.RawMessage {
	data, err := json.Marshal(r)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

// decodeJSON extracts the first JSON object from a model reply, tolerating
// markdown code fences and leading prose.
func decodeJSON(text string, v any) error {
	body := stripFences(text)
	if start := strings.IndexByte(body, '{'); start > 0 {
		body = body[start:]
	}
	if end := strings.LastIndexByte(body, '}'); end >= 0 && end < len(body)-1 {
		body = body[:end+1]
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
	}
	return nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// Drop the language tag line, e.g. ```json
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// clampScore converts a model score to 0..100.
func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

type rawGrammar struct {
	GrammarScore *float64       `json:"grammarScore"`
	Issues       []GrammarIssue `json:"grammarIssues"`
	Suggestions  []string       `json:"suggestions"`
}

func parseGrammar(text string) (GrammarResult, error) {
	var raw rawGrammar
	if err := decodeJSON(text, &raw); err != nil {
		return GrammarResult{}, err
	}
	if raw.GrammarScore == nil {
		return GrammarResult{}, fmt.Errorf("%w: missing grammarScore", generation.ErrInvalidResponse)
	}
	out := GrammarResult{
		GrammarScore: clampScore(*raw.GrammarScore),
		Issues:       raw.Issues,
		Suggestions:  raw.Suggestions,
	}
	if out.Issues == nil {
		out.Issues = []GrammarIssue{}
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	return out, nil
}

type rawStructure struct {
	Analysis     string        `json:"structureAnalysis"`
	Strengths    []string      `json:"strengths"`
	Improvements []Improvement `json:"improvements"`
	Score        *float64      `json:"structureScore"`
}

func parseStructure(text string) (StructureResult, error) {
	var raw rawStructure
	if err := decodeJSON(text, &raw); err != nil {
		return StructureResult{}, err
	}
	if raw.Analysis == "" && raw.Score == nil {
		return StructureResult{}, fmt.Errorf("%w: missing structure analysis", generation.ErrInvalidResponse)
	}
	out := StructureResult{
		Analysis:     raw.Analysis,
		Strengths:    raw.Strengths,
		Improvements: make([]string, 0, len(raw.Improvements)),
	}
	if out.Strengths == nil {
		out.Strengths = []string{}
	}
	for _, imp := range raw.Improvements {
		out.Improvements = append(out.Improvements, imp.Suggestion)
	}
	if raw.Score != nil {
		out.Score = clampScore(*raw.Score)
	}
	return out, nil
}

type rawReview struct {
	Summary       string        `json:"summary"`
	Feedback      string        `json:"feedback"`
	Score         *float64      `json:"score"`
	Strengths     []string      `json:"strengths"`
	Improvements  []Improvement `json:"improvements"`
	Encouragement string        `json:"encouragement"`
}

func parseReview(text string) (ReviewResult, error) {
	var raw rawReview
	if err := decodeJSON(text, &raw); err != nil {
		return ReviewResult{}, err
	}

	out := ReviewResult{
		Summary:       raw.Summary,
		Strengths:     raw.Strengths,
		Improvements:  raw.Improvements,
		Encouragement: raw.Encouragement,
	}
	if out.Summary == "" {
		out.Summary = raw.Feedback
	}
	if out.Summary == "" && len(out.Improvements) == 0 {
		return ReviewResult{}, fmt.Errorf("%w: empty review", generation.ErrInvalidResponse)
	}
	if raw.Score != nil {
		score := clampScore(*raw.Score)
		out.Score = &score
	}
	if out.Strengths == nil {
		out.Strengths = []string{}
	}
	if out.Improvements == nil {
		out.Improvements = []Improvement{}
	}
	return out, nil
}

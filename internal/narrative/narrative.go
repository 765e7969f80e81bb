// Package narrative turns a finished run into a short plain-language
// summary using OpenAI. The summary is decoration on top of the numeric
// outputs, so callers treat failures here as non-fatal.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"vegtrend/internal/aggregate"
)

// RunFacts is the numeric material the summary is written from.
type RunFacts struct {
	RegionLabel string
	StartYear   int
	EndYear     int
	Mode        string
	SceneCount  int
	MeanSlope   float64
	Series      []aggregate.SeriesPoint
	ClusterSize []int
}

// Summarizer wraps the OpenAI chat API.
type Summarizer struct {
	client openai.Client
	model  string
}

// NewSummarizer reads OPENAI_API_KEY from the environment.
func NewSummarizer() (*Summarizer, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Summarizer{
		client: client,
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Summarize produces a few sentences describing the run's trend.
func (s *Summarizer) Summarize(ctx context.Context, facts RunFacts) (string, error) {
	prompt := BuildPrompt(facts)
	log.Printf("narrative: summarizing %s (%d-%d, %d scenes)", facts.RegionLabel, facts.StartYear, facts.EndYear, facts.SceneCount)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a remote-sensing analyst. Write 3-4 plain sentences for a land manager. No headings, no bullet points, no jargon beyond NDVI."),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion returned")
	}
	return text, nil
}

// BuildPrompt renders the run facts as the user message. Kept separate
// so the rendering is testable without an API key.
func BuildPrompt(facts RunFacts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Vegetation trend analysis for %s, %d to %d.\n", facts.RegionLabel, facts.StartYear, facts.EndYear)
	fmt.Fprintf(&b, "Annual composites use the %s of %d satellite scenes.\n", facts.Mode, facts.SceneCount)
	fmt.Fprintf(&b, "Mean NDVI trend across the region: %+.4f per year.\n", facts.MeanSlope)

	if len(facts.Series) > 0 {
		b.WriteString("Annual mean NDVI:\n")
		for _, p := range facts.Series {
			if p.ImageCount == 0 {
				fmt.Fprintf(&b, "  %d: no usable imagery\n", p.Year)
				continue
			}
			fmt.Fprintf(&b, "  %d: %.3f (%d scenes)\n", p.Year, p.MeanIndex, p.ImageCount)
		}
	}

	if len(facts.ClusterSize) > 0 {
		b.WriteString("Pixel counts per trend cluster:")
		for i, n := range facts.ClusterSize {
			fmt.Fprintf(&b, " c%d=%d", i, n)
		}
		b.WriteString("\n")
	}

	b.WriteString("Summarize what is happening to vegetation in this region and flag any years that look anomalous.")
	return b.String()
}

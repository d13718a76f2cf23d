// Package enrich turns parsed subtitle cues into enriched semantic chunks:
// LLM-driven chunking with summaries and tags ([Chunker]), categorised entity
// extraction with alias merging ([EntityExtractor]), and biographical quote
// extraction ([BioExtractor]).
//
// All model responses pass through a JSON recovery layer, since chunking a
// long transcript routinely truncates mid-object at the token limit.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/katha-archive/katha/internal/transcript"
	"github.com/katha-archive/katha/pkg/provider/llm"
)

// chunkSystemPrompt frames the chunking task for the model.
const chunkSystemPrompt = "You are a helpful assistant for transcript chunking."

// chunkPrompt instructs the model to regroup subtitle cues into semantically
// coherent chunks. The cue timestamps must be reused verbatim so the coverage
// validator can reconcile chunks against the original timeline.
const chunkPrompt = `You will receive a JSON array of subtitle cues, each with "start", "end", and "text".
Regroup the cues into semantically coherent chunks of roughly 300-500 words. Rules:

- Every cue's text must appear in exactly the chunks that cover its time span. Do not drop,
  paraphrase, or reorder any cue text.
- Each chunk's "start" is the start timestamp of its first cue and "end" is the end timestamp
  of its last cue, copied verbatim from the input.
- Give each chunk a one-sentence "summary" and 3-7 topical "tags".
- Also produce "global_tags": 5-10 tags describing the whole transcript.

Respond with a single JSON object:
{"global_tags": ["..."], "chunks": [{"start": "...", "end": "...", "text": "...", "summary": "...", "tags": ["..."]}]}`

// ChunkResult is the outcome of chunking one transcript.
type ChunkResult struct {
	Chunks     []transcript.Chunk
	GlobalTags []string

	// Fallback is true when the window splitter produced the chunks because
	// the model call or its response failed.
	Fallback bool
}

// Chunker turns subtitle cues into enriched semantic chunks via an LLM, with
// the fixed-window splitter as fallback so ingestion never depends on model
// availability.
type Chunker struct {
	llm      llm.Provider
	splitter transcript.SplitterConfig
}

// NewChunker creates a Chunker. provider may be nil, in which case every
// transcript goes through the window splitter.
func NewChunker(provider llm.Provider, splitter transcript.SplitterConfig) *Chunker {
	return &Chunker{llm: provider, splitter: splitter}
}

type cueInput struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
}

type chunkOutput struct {
	GlobalTags []string `json:"global_tags"`
	Chunks     []struct {
		Start   string   `json:"start"`
		End     string   `json:"end"`
		Text    string   `json:"text"`
		Summary string   `json:"summary"`
		Tags    []string `json:"tags"`
	} `json:"chunks"`
}

// Chunk produces semantic chunks for cues. Model failures degrade to the
// window splitter with a warning rather than failing the ingest.
func (c *Chunker) Chunk(ctx context.Context, cues []transcript.Cue) (ChunkResult, error) {
	if len(cues) == 0 {
		return ChunkResult{}, fmt.Errorf("enrich: chunk: no cues")
	}

	if c.llm == nil {
		return c.fallback(cues), nil
	}

	chunks, globalTags, err := c.chunkWithLLM(ctx, cues)
	if err != nil {
		if ctx.Err() != nil {
			return ChunkResult{}, fmt.Errorf("enrich: chunk: %w", ctx.Err())
		}
		slog.Warn("enrich: LLM chunking failed, using window splitter", "error", err)
		return c.fallback(cues), nil
	}

	return ChunkResult{Chunks: chunks, GlobalTags: globalTags}, nil
}

func (c *Chunker) fallback(cues []transcript.Cue) ChunkResult {
	return ChunkResult{
		Chunks:   transcript.SplitCues(cues, c.splitter),
		Fallback: true,
	}
}

func (c *Chunker) chunkWithLLM(ctx context.Context, cues []transcript.Cue) ([]transcript.Chunk, []string, error) {
	inputs := make([]cueInput, len(cues))
	for i, cue := range cues {
		inputs[i] = cueInput{Start: cue.Start, End: cue.End, Text: cue.Text}
	}
	inputJSON, err := json.Marshal(inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal cues: %w", err)
	}

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: chunkSystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: chunkPrompt + "\n\nINPUT:\n" + string(inputJSON) + "\n\nOUTPUT:"},
		},
		Temperature: 0.2,
		MaxTokens:   4096,
		JSONMode:    true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("completion: %w", err)
	}

	var out chunkOutput
	if err := extractJSON(resp.Content, &out); err != nil {
		return nil, nil, err
	}
	if len(out.Chunks) == 0 {
		return nil, nil, fmt.Errorf("model returned no chunks")
	}

	chunks := make([]transcript.Chunk, len(out.Chunks))
	for i, ch := range out.Chunks {
		if ch.Text == "" || ch.Start == "" || ch.End == "" {
			return nil, nil, fmt.Errorf("model chunk %d missing text or timestamps", i)
		}
		chunks[i] = transcript.Chunk{
			Start:   ch.Start,
			End:     ch.End,
			Text:    ch.Text,
			Summary: ch.Summary,
			Tags:    ch.Tags,
		}
	}
	return chunks, out.GlobalTags, nil
}

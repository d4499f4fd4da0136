// ABOUTME: Terminal step that asks the LLM for a short cited answer over the gathered documents.
// ABOUTME: Runs exactly once per pipeline run; with no documents it answers without calling the model.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389-research/scout/llm"
	"github.com/2389-research/scout/pipeline"
)

// NoDocumentsAnswer is returned when retrieval found nothing to cite.
const NoDocumentsAnswer = "No relevant documents found to answer the question."

// Synthesize writes KeyAnswer and KeyCitations.
type Synthesize struct {
	LLM        Completer
	Model      string
	MaxSources int // documents offered to the model, default 5
	MaxWords   int // answer length requested in the prompt, default 80
}

func (s *Synthesize) Reads() []string  { return []string{KeyTopic, KeyDocs} }
func (s *Synthesize) Writes() []string { return []string{KeyAnswer, KeyCitations} }

type synthesis struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Execute implements pipeline.Step.
func (s *Synthesize) Execute(ctx context.Context, state pipeline.State) (pipeline.Update, error) {
	topic := strings.TrimSpace(state.GetString(KeyTopic, ""))
	if topic == "" {
		return nil, pipeline.MissingInput(KeyTopic)
	}
	docs := docsFrom(state)
	if len(docs) == 0 {
		return pipeline.Update{KeyAnswer: NoDocumentsAnswer, KeyCitations: []Citation{}}, nil
	}

	resp, err := s.LLM.Complete(ctx, llm.Request{
		Model: s.Model,
		Messages: []llm.Message{
			llm.SystemMessage("You write concise, well-sourced research summaries in English."),
			llm.UserMessage(s.prompt(topic, docs)),
		},
		Temperature: llm.Float64Ptr(0.2),
		JSONOutput:  true,
	})
	if err != nil {
		return nil, pipeline.Upstream(err)
	}

	var out synthesis
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Text())), &out); err != nil {
		return nil, pipeline.MalformedOutput("synthesis is not a JSON object: %v", err)
	}
	out.Answer = strings.TrimSpace(out.Answer)
	if out.Answer == "" {
		return nil, pipeline.MalformedOutput("synthesis has an empty answer")
	}
	if out.Citations == nil {
		out.Citations = []Citation{}
	}
	return pipeline.Update{KeyAnswer: out.Answer, KeyCitations: out.Citations}, nil
}

func (s *Synthesize) prompt(topic string, docs []Doc) string {
	n := s.MaxSources
	if n <= 0 {
		n = 5
	}
	words := s.MaxWords
	if words <= 0 {
		words = 80
	}
	var sources strings.Builder
	for i, d := range docs[:min(n, len(docs))] {
		fmt.Fprintf(&sources, "[%d] %s %s\n", i+1, d.Title, d.URL)
	}
	return fmt.Sprintf(
		"Answer the question in English in at most %d words (about %d characters).\n"+
			"Cite sources inline with markers like [1][2] that refer to the numbered list below.\n"+
			"Return only a JSON object of the form "+
			`{"answer": "...", "citations": [{"id": 1, "title": "...", "url": "..."}]}`+
			" with no markdown fences.\n\n"+
			"Question: %s\n\nSources:\n%s",
		words, words*5, topic, sources.String())
}

package llm

import (
	"fmt"
	"strings"

	"github.com/getchdocs/getchdocs-api/internal/model"
)

const (
	// DefaultMaxTokens caps answer length.
	DefaultMaxTokens = 1000
	// DefaultTemperature keeps answers close to the document text.
	DefaultTemperature = 0.3
	// AnswerConfidence is reported with every document answer.
	AnswerConfidence = 0.85
)

const systemPreamble = `You are a corporate assistant specialized in document analysis.
Your job is to answer questions based EXCLUSIVELY on the content of the provided documents.

IMPORTANT RULES:
1. Answer ONLY with information present in the documents
2. If the information is not in the documents, say clearly that you did not find it
3. Always cite the name of the document the information came from
4. Be precise, objective and professional
5. Use markdown formatting for readability
6. Format procedures and lists clearly

AVAILABLE DOCUMENTS:`

// DocumentPrompt holds the knobs for a document question.
type DocumentPrompt struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// BuildSystemPrompt lists every document as a numbered block after the
// answering rules.
func BuildSystemPrompt(docs []model.Document) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n\n=== DOCUMENT %d: %s ===\n%s", i+1, doc.Name, doc.Content)
	}
	return b.String()
}

// BuildUserPrompt wraps the question.
func BuildUserPrompt(question string) string {
	return fmt.Sprintf("USER QUESTION: %s\n\nPlease analyze the documents above and answer the question clearly and precisely.", question)
}

// Request builds the completion request for question over docs.
func (p DocumentPrompt) Request(question string, docs []model.Document) *CompletionRequest {
	temperature := p.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	return &CompletionRequest{
		Model:       p.Model,
		System:      BuildSystemPrompt(docs),
		Messages:    []ChatMessage{{Role: RoleUser, Content: BuildUserPrompt(question)}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// ReferencedDocuments returns the ids of the documents whose name appears in
// answer, ignoring case. When none appear every document id is returned.
func ReferencedDocuments(answer string, docs []model.Document) []string {
	lower := strings.ToLower(answer)

	var refs []string
	for _, doc := range docs {
		if doc.Name != "" && strings.Contains(lower, strings.ToLower(doc.Name)) {
			refs = append(refs, doc.ID)
		}
	}
	if len(refs) > 0 {
		return refs
	}

	all := make([]string, len(docs))
	for i, doc := range docs {
		all[i] = doc.ID
	}
	return all
}

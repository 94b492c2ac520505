package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/smixab/ihub-bot/internal/models"
)

// ResponseSource tags how a chat reply was produced.
type ResponseSource string

const (
	SourceGenerated ResponseSource = "generated"
	SourceFallback  ResponseSource = "fallback"
)

// ChatResult is the outcome of one chat turn. When Denied is set the other
// response fields are empty and DenyReason explains why.
type ChatResult struct {
	Response   string
	Source     ResponseSource
	Warning    bool
	Denied     bool
	DenyReason models.DenyReason
	DenyText   string
	RetryAfter int
	Tools      []models.ScoredTool
}

// SchoolInfo is the institution context injected into the system prompt.
type SchoolInfo struct {
	Name  string
	Type  string
	Focus string
}

// Orchestrator runs the moderation gate, finds relevant resources, and
// produces a reply either from the language model or, when the model is
// unavailable or fails, from a deterministic template.
type Orchestrator struct {
	guard     *Guard
	ranker    *Ranker
	generator Generator
	school    SchoolInfo
	timeout   time.Duration
}

// contextTools caps how many matches are fed to the prompt and the fallback.
const contextTools = 3

func NewOrchestrator(guard *Guard, ranker *Ranker, generator Generator, school SchoolInfo, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		guard:     guard,
		ranker:    ranker,
		generator: generator,
		school:    school,
		timeout:   timeout,
	}
}

// Respond handles one user message end to end.
func (o *Orchestrator) Respond(ctx context.Context, ip, userAgent, message string) (ChatResult, error) {
	check, err := o.guard.Check(ip, userAgent, message)
	if err != nil {
		return ChatResult{}, err
	}
	if !check.Allowed {
		return ChatResult{
			Denied:     true,
			DenyReason: check.Reason,
			DenyText:   check.Message,
			RetryAfter: check.RetryAfter,
		}, nil
	}

	tools, err := o.ranker.Search(ctx, message, contextTools)
	if err != nil {
		return ChatResult{}, err
	}

	result := ChatResult{Warning: check.Warn, Tools: tools}

	if o.generator != nil {
		genCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		reply, err := o.generator.Generate(genCtx, o.buildSystemPrompt(tools), message)
		if err == nil && reply != "" {
			result.Response = reply
			result.Source = SourceGenerated
			return result, nil
		}
		if err != nil {
			log.Printf("generation failed, using fallback response: %v", err)
		}
	}

	result.Response = fallbackResponse(tools)
	result.Source = SourceFallback
	return result, nil
}

// buildSystemPrompt assembles the institution context and the matched
// resources into the instruction block sent to the model.
func (o *Orchestrator) buildSystemPrompt(tools []models.ScoredTool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a helpful assistant for %s, a %s", o.school.Name, o.school.Type)
	if o.school.Focus != "" {
		fmt.Fprintf(&b, " focused on %s", o.school.Focus)
	}
	b.WriteString(".\n\n")
	b.WriteString("You help students and staff find information about school resources, tools, and facilities.\n\n")

	if len(tools) > 0 {
		b.WriteString("Relevant resources for this question:\n\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "- %s (%s)\n", t.Name, t.Category)
			fmt.Fprintf(&b, "  Location: %s\n", t.Location)
			fmt.Fprintf(&b, "  Description: %s\n", t.Description)
			fmt.Fprintf(&b, "  Availability: %s\n", t.Availability)
			if t.TrainingRequired {
				fmt.Fprintf(&b, "  Training required - Contact: %s\n", t.Contact)
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("No specific resources matched this question.\n\n")
	}

	b.WriteString("Guidelines:\n")
	b.WriteString("- Answer based on the resources listed above when they are relevant.\n")
	b.WriteString("- Include locations, availability, and contact details when helpful.\n")
	b.WriteString("- Mention training requirements before suggesting equipment.\n")
	b.WriteString("- If nothing matches, suggest contacting the main office at ext. 0000.\n")
	b.WriteString("- Keep answers concise and friendly.")

	return b.String()
}

// fallbackResponse renders the matched resources as a fixed template when no
// generated reply is available.
func fallbackResponse(tools []models.ScoredTool) string {
	if len(tools) == 0 {
		return "I couldn't find any specific tools matching your request. " +
			"You might want to contact the main office at ext. 0000 for more information, " +
			"or try rephrasing your question with different keywords."
	}

	var b strings.Builder
	b.WriteString("Here's what I found:\n\n")
	for i, t := range tools {
		fmt.Fprintf(&b, "%d. **%s** - %s\n", i+1, t.Name, t.Description)
		fmt.Fprintf(&b, "   📍 Location: %s\n", t.Location)
		fmt.Fprintf(&b, "   🕒 %s\n", t.Availability)
		if t.TrainingRequired {
			fmt.Fprintf(&b, "   ⚠️ Training required - Contact: %s\n", t.Contact)
		}
		b.WriteString("\n")
	}
	b.WriteString("Would you like more specific information about any of these resources?")
	return b.String()
}

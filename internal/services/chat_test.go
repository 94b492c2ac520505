package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smixab/ihub-bot/internal/models"
)

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestOrchestrator(t *testing.T, gen Generator) *Orchestrator {
	t.Helper()
	g := newTestGuard(t, defaultTestConfig())
	s, _ := newTestStore(t)
	r := NewRanker(s, nil, nil)
	school := SchoolInfo{Name: "Test Institute", Type: "technical school", Focus: "engineering"}
	return NewOrchestrator(g, r, gen, school, 5*time.Second)
}

func TestRespondUsesGenerator(t *testing.T) {
	gen := &fakeGenerator{reply: "The laser cutter is in Room 102."}
	o := newTestOrchestrator(t, gen)

	res, err := o.Respond(context.Background(), "1.2.3.4", "ua", "where is the laser cutter?")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if res.Denied {
		t.Fatalf("clean message should not be denied: %+v", res)
	}
	if res.Source != SourceGenerated {
		t.Fatalf("source = %q, want %q", res.Source, SourceGenerated)
	}
	if res.Response != gen.reply {
		t.Fatalf("response = %q, want the generated reply", res.Response)
	}
	if len(res.Tools) == 0 {
		t.Fatal("relevant tools should accompany the reply")
	}
}

func TestRespondFallsBackOnGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream timeout")}
	o := newTestOrchestrator(t, gen)

	res, err := o.Respond(context.Background(), "1.2.3.4", "ua", "where is the laser cutter?")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if res.Source != SourceFallback {
		t.Fatalf("source = %q, want %q", res.Source, SourceFallback)
	}
	if !strings.Contains(res.Response, "Laser Cutter") {
		t.Fatalf("fallback should list the matched tools, got %q", res.Response)
	}
	if !strings.Contains(res.Response, "Training required") {
		t.Fatalf("fallback should mention training requirements, got %q", res.Response)
	}
}

func TestRespondWithoutGenerator(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	res, err := o.Respond(context.Background(), "1.2.3.4", "ua", "laser cutter")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if res.Source != SourceFallback {
		t.Fatalf("source = %q, want %q", res.Source, SourceFallback)
	}
}

func TestRespondFallbackWithNoMatches(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	res, err := o.Respond(context.Background(), "1.2.3.4", "ua", "zzqx wwvv")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !strings.Contains(res.Response, "couldn't find any specific tools") {
		t.Fatalf("no-match fallback text missing, got %q", res.Response)
	}
	if !strings.Contains(res.Response, "ext. 0000") {
		t.Fatalf("no-match fallback should point at the main office, got %q", res.Response)
	}
}

func TestRespondDeniedSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{reply: "should never be used"}
	o := newTestOrchestrator(t, gen)

	if err := o.guard.Block("1.2.3.4", "testing", 24, "admin"); err != nil {
		t.Fatalf("block: %v", err)
	}

	res, err := o.Respond(context.Background(), "1.2.3.4", "ua", "hello")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !res.Denied {
		t.Fatal("blocked user should be denied")
	}
	if res.DenyReason != models.DenyBlocked {
		t.Fatalf("deny reason = %q, want %q", res.DenyReason, models.DenyBlocked)
	}
	if res.Response != "" {
		t.Fatal("denied result should carry no response text")
	}
	if gen.calls != 0 {
		t.Fatal("generation must not run for denied messages")
	}
}

func TestRespondCarriesWarning(t *testing.T) {
	o := newTestOrchestrator(t, &fakeGenerator{reply: "noted"})
	ip := "7.7.7.7"

	// With warning_threshold 2 the second flagged message carries a warning.
	if res, err := o.Respond(context.Background(), ip, "ua", "this damn thing"); err != nil || res.Warning {
		t.Fatalf("first flagged message: warning=%v err=%v", res.Warning, err)
	}
	res, err := o.Respond(context.Background(), ip, "ua", "still damn broken")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !res.Warning {
		t.Fatal("second flagged message should carry a warning")
	}
}

func TestSystemPromptIncludesSchoolAndTools(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	tools := []models.ScoredTool{{
		ToolRecord: models.ToolRecord{
			Name:             "Laser Cutter",
			Category:         "Fabrication",
			Location:         "Room 102",
			Description:      "CO2 laser cutter",
			Availability:     "Mon-Fri",
			TrainingRequired: true,
			Contact:          "ext. 5678",
		},
	}}

	prompt := o.buildSystemPrompt(tools)
	for _, want := range []string{"Test Institute", "technical school", "engineering", "Laser Cutter", "Room 102", "Training required"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, prompt)
		}
	}
}

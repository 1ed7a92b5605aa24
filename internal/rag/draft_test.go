package rag

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"mauassist/internal/knowledge"
	"mauassist/internal/llm"
)

type staticEntries []knowledge.Entry

func (s staticEntries) Entries() []knowledge.Entry { return s }

type customEntries []knowledge.Entry

func (c customEntries) Entries(ctx context.Context) []knowledge.Entry { return c }

type mockProvider struct {
	local    bool
	reply    string
	err      error
	messages []llm.Message
}

func (m *mockProvider) Stream(ctx context.Context, messages []llm.Message, w io.Writer) (string, error) {
	m.messages = messages
	if m.err != nil {
		return "", m.err
	}
	io.WriteString(w, m.reply)
	return m.reply, nil
}

func (m *mockProvider) Name() string  { return "mock" }
func (m *mockProvider) IsLocal() bool { return m.local }

var testStatic = staticEntries{
	{Question: "How much is hostel fee and how do I pay?", Answer: "Hostel fees vary.", Keywords: []string{"hostel fees", "payment"}},
	{Question: "What are the library hours?", Answer: "8am to 10pm.", Keywords: []string{"library", "hours"}},
}

var testCustom = customEntries{
	{Question: "Hostel fee deadline?", Answer: "Two weeks after resumption.", Keywords: []string{"hostel fees"}},
}

func TestSearcherRanksAndMerges(t *testing.T) {
	s := NewSearcher(testStatic, testCustom, nil)

	chunks := s.Search(context.Background(), "When is the hostel fees payment deadline?", 5)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	// static entry hits two keywords, custom entry one
	if chunks[0].Source != SourceStatic || chunks[0].Score != 2 {
		t.Errorf("Expected static entry first with score 2, got %+v", chunks[0])
	}
	if chunks[1].Source != SourceCustom {
		t.Errorf("Expected custom entry second, got %+v", chunks[1])
	}
}

func TestSearcherCustomWinsTies(t *testing.T) {
	s := NewSearcher(testStatic, testCustom, nil)

	chunks := s.Search(context.Background(), "hostel fees", 1)
	if len(chunks) != 1 || chunks[0].Source != SourceCustom {
		t.Errorf("Expected custom entry on tie, got %+v", chunks)
	}
}

func TestSearcherNoMatches(t *testing.T) {
	s := NewSearcher(testStatic, nil, nil)

	if chunks := s.Search(context.Background(), "asdkjasdkj", 5); len(chunks) != 0 {
		t.Errorf("Expected no chunks, got %+v", chunks)
	}
}

func TestContextPolicy(t *testing.T) {
	tests := []struct {
		name       string
		allowCloud bool
		local      bool
		want       bool
		status     string
	}{
		{"local always", false, true, true, "Context Enabled (Local)"},
		{"cloud allowed", true, false, true, "Context Enabled"},
		{"cloud withheld", false, false, false, "Context Disabled (Cloud Policy)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewContextPolicy(tt.allowCloud, nil)
			if got := p.Allow(tt.local); got != tt.want {
				t.Errorf("Allow(%v) = %v, want %v", tt.local, got, tt.want)
			}
			if got := p.Status(tt.local); got != tt.status {
				t.Errorf("Status(%v) = %q, want %q", tt.local, got, tt.status)
			}
		})
	}
}

func TestDrafterIncludesContextForLocalProvider(t *testing.T) {
	provider := &mockProvider{local: true, reply: "Pay via Remita before the deadline."}
	d := NewDrafter(provider, NewSearcher(testStatic, testCustom, nil), NewContextPolicy(false, nil), nil)

	var out strings.Builder
	draft, err := d.Draft(context.Background(), "hostel fees deadline", &out)
	if err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	if draft != provider.reply || out.String() != provider.reply {
		t.Errorf("Unexpected draft %q / %q", draft, out.String())
	}
	if len(provider.messages) != 2 || provider.messages[0].Role != "system" {
		t.Fatalf("Unexpected messages: %+v", provider.messages)
	}
	if !strings.Contains(provider.messages[1].Content, "Two weeks after resumption.") {
		t.Error("Expected related custom answer in prompt")
	}
}

func TestDrafterWithholdsContextFromCloud(t *testing.T) {
	provider := &mockProvider{local: false, reply: "draft"}
	d := NewDrafter(provider, NewSearcher(testStatic, testCustom, nil), NewContextPolicy(false, nil), nil)

	if _, err := d.Draft(context.Background(), "hostel fees deadline", io.Discard); err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	if strings.Contains(provider.messages[1].Content, "Two weeks after resumption.") {
		t.Error("Knowledge must not be sent to a cloud provider without allow_context")
	}
}

func TestDrafterProviderError(t *testing.T) {
	provider := &mockProvider{local: true, err: errors.New("connection refused")}
	d := NewDrafter(provider, NewSearcher(testStatic, nil, nil), NewContextPolicy(false, nil), nil)

	if _, err := d.Draft(context.Background(), "q", io.Discard); err == nil {
		t.Error("Expected error")
	}
}

func TestDrafterStatus(t *testing.T) {
	local := NewDrafter(&mockProvider{local: true}, NewSearcher(testStatic, nil, nil), NewContextPolicy(false, nil), nil)
	if got := local.Status(); got != "mock: Context Enabled (Local)" {
		t.Errorf("Unexpected status: %q", got)
	}

	cloud := NewDrafter(&mockProvider{}, NewSearcher(testStatic, nil, nil), NewContextPolicy(false, nil), nil)
	if got := cloud.Status(); got != "mock: Context Disabled (Cloud Policy)" {
		t.Errorf("Unexpected status: %q", got)
	}
}

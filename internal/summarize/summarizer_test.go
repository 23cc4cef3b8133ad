package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"steward/internal/action"
	"steward/internal/history"
)

type mockModel struct {
	reply    string
	err      error
	lastUser string
}

func (m *mockModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	for _, msg := range input {
		if msg.Role == schema.User {
			m.lastUser = msg.Content
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.Assistant, Content: m.reply}, nil
}

func (m *mockModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (m *mockModel) BindTools(tools []*schema.ToolInfo) error { return nil }

func sampleEntries() []history.Entry {
	return []history.Entry{
		{
			Seq:      1,
			Action:   action.Proposed{Kind: action.KindShellExec, Command: "go test ./..."},
			Decision: action.Decision{Approved: true},
			Outcome:  action.Outcome{Seq: 1, Status: action.StatusSuccess},
		},
		{
			Seq:      2,
			Action:   action.Proposed{Kind: action.KindFileWrite, Path: "main.go"},
			Decision: action.Decision{Approved: true},
			Outcome:  action.Outcome{Seq: 2, Status: action.StatusSuccess},
		},
		{
			Seq:      3,
			Action:   action.Proposed{Kind: action.KindShellExec, Command: "rm -rf build"},
			Decision: action.Decision{Approved: false, Reason: "too broad"},
			Outcome:  action.Outcome{Seq: 3, Status: action.StatusDenied},
		},
	}
}

func TestSummarizeUsesModel(t *testing.T) {
	m := &mockModel{reply: "Ran tests and wrote main.go; one delete denied."}
	s := NewModelSummarizer(m)

	got, err := s.Summarize(context.Background(), sampleEntries())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != m.reply {
		t.Fatalf("summary = %q", got)
	}
	if !strings.Contains(m.lastUser, "1. shell: go test ./...") {
		t.Errorf("transcript missing shell line: %q", m.lastUser)
	}
	if !strings.Contains(m.lastUser, "2. write: main.go") {
		t.Errorf("transcript missing write line: %q", m.lastUser)
	}
	if !strings.Contains(m.lastUser, "[denied: too broad]") {
		t.Errorf("transcript missing denial: %q", m.lastUser)
	}
}

func TestSummarizeModelError(t *testing.T) {
	s := NewModelSummarizer(&mockModel{err: errors.New("rate limited")})
	if _, err := s.Summarize(context.Background(), sampleEntries()); err == nil {
		t.Fatal("expected error when model fails")
	}
}

func TestSummarizeEmptyEntries(t *testing.T) {
	s := NewModelSummarizer(nil)
	if _, err := s.Summarize(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestSummarizeWithoutModelFallsBack(t *testing.T) {
	s := NewModelSummarizer(nil)
	got, err := s.Summarize(context.Background(), sampleEntries())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != Digest(sampleEntries()) {
		t.Fatalf("fallback mismatch: %q", got)
	}
}

func TestSummarizeBlankReplyFallsBack(t *testing.T) {
	s := NewModelSummarizer(&mockModel{reply: "  \n"})
	got, err := s.Summarize(context.Background(), sampleEntries())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != Digest(sampleEntries()) {
		t.Fatalf("fallback mismatch: %q", got)
	}
}

func TestDigest(t *testing.T) {
	got := Digest(sampleEntries())
	if !strings.Contains(got, "3 actions") {
		t.Errorf("missing total: %q", got)
	}
	if !strings.Contains(got, "2 succeeded") {
		t.Errorf("missing success count: %q", got)
	}
	if !strings.Contains(got, "1 denied") {
		t.Errorf("missing denied count: %q", got)
	}
	if !strings.Contains(got, "main.go") {
		t.Errorf("missing touched path: %q", got)
	}
}

package toolrpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"steward/internal/action"
)

func TestFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"jsonrpc":"2.0","id":1,"method":"tool/invoke"}`)
	if err := writeFramed(&buf, payload); err != nil {
		t.Fatalf("writeFramed: %v", err)
	}

	got, err := readFramed(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readFramed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestReadFramedMissingHeader(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("\r\n{}"))
	if _, err := readFramed(reader); err == nil {
		t.Fatal("expected error for missing content-length")
	}
}

func TestReadFramedIgnoresExtraHeaders(t *testing.T) {
	raw := "Content-Type: application/json\r\nContent-Length: 2\r\n\r\n{}"
	got, err := readFramed(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("readFramed: %v", err)
	}
	if string(got) != "{}" {
		t.Fatalf("got %q, want {}", got)
	}
}

func TestResultText(t *testing.T) {
	if got := resultText(json.RawMessage(`"hello"`)); got != "hello" {
		t.Fatalf("string result: got %q", got)
	}
	if got := resultText(json.RawMessage(`{"ok":true}`)); got != `{"ok":true}` {
		t.Fatalf("object result: got %q", got)
	}
	if got := resultText(nil); got != "" {
		t.Fatalf("empty result: got %q", got)
	}
}

func TestDeclaredTier(t *testing.T) {
	cases := []struct {
		tier string
		want action.RiskTier
	}{
		{"", action.TierReadOnly},
		{"read-only", action.TierReadOnly},
		{"file-write", action.TierFileWrite},
		{"shell-exec", action.TierShellExec},
	}
	for _, tc := range cases {
		spec := ServerSpec{Name: "srv", Tier: tc.tier}
		if got := spec.DeclaredTier(); got != tc.want {
			t.Errorf("tier %q: got %v, want %v", tc.tier, got, tc.want)
		}
	}
}

type fakeInvoker struct {
	lastTool    string
	lastArgs    string
	result      string
	err         error
	closed      bool
	sawDeadline bool
}

func (f *fakeInvoker) Invoke(ctx context.Context, tool string, args json.RawMessage) (string, error) {
	f.lastTool = tool
	f.lastArgs = string(args)
	_, f.sawDeadline = ctx.Deadline()
	return f.result, f.err
}

func (f *fakeInvoker) Close() error {
	f.closed = true
	return nil
}

func TestManagerTrusted(t *testing.T) {
	m := NewManager([]ServerSpec{
		{Name: "search", Trusted: true},
		{Name: "fmt", Trusted: true, Tier: "file-write"},
		{Name: "deploy"},
	})

	trusted := m.Trusted()
	if len(trusted) != 2 {
		t.Fatalf("trusted count = %d, want 2", len(trusted))
	}
	if trusted["search"] != action.TierReadOnly {
		t.Errorf("search tier = %v", trusted["search"])
	}
	if trusted["fmt"] != action.TierFileWrite {
		t.Errorf("fmt tier = %v", trusted["fmt"])
	}
	if _, ok := trusted["deploy"]; ok {
		t.Error("untrusted server must not appear in trusted map")
	}
}

func TestManagerInvokeLazyConnect(t *testing.T) {
	fake := &fakeInvoker{result: "42"}
	dials := 0
	m := NewManager([]ServerSpec{{Name: "calc", Command: "calc-server", TimeoutSeconds: 5}})
	m.connect = func(ctx context.Context, spec ServerSpec) (invoker, error) {
		dials++
		if spec.Name != "calc" {
			t.Fatalf("dialed %q", spec.Name)
		}
		return fake, nil
	}

	out, err := m.Invoke(context.Background(), "calc.add", `{"a":1,"b":41}`)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "42" {
		t.Fatalf("result = %q", out)
	}
	if fake.lastTool != "add" {
		t.Fatalf("tool = %q, want add", fake.lastTool)
	}
	if !fake.sawDeadline {
		t.Fatal("invoke context should carry a deadline")
	}

	if _, err := m.Invoke(context.Background(), "calc.add", ""); err != nil {
		t.Fatalf("second Invoke: %v", err)
	}
	if dials != 1 {
		t.Fatalf("dials = %d, want 1 (connection reused)", dials)
	}
	if fake.lastArgs != "" {
		t.Fatalf("empty args should stay empty, got %q", fake.lastArgs)
	}
}

func TestManagerInvokeUnknownServer(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Invoke(context.Background(), "nope.run", ""); err == nil {
		t.Fatal("expected error for unknown server")
	}
}

func TestManagerConnectFailureNotCached(t *testing.T) {
	m := NewManager([]ServerSpec{{Name: "flaky", Command: "flaky-server"}})
	attempts := 0
	m.connect = func(ctx context.Context, spec ServerSpec) (invoker, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("spawn failed")
		}
		return &fakeInvoker{result: "ok"}, nil
	}

	if _, err := m.Invoke(context.Background(), "flaky.run", ""); err == nil {
		t.Fatal("expected connect error")
	}
	out, err := m.Invoke(context.Background(), "flaky.run", "")
	if err != nil {
		t.Fatalf("retry Invoke: %v", err)
	}
	if out != "ok" {
		t.Fatalf("result = %q", out)
	}
}

func TestManagerClose(t *testing.T) {
	fake := &fakeInvoker{}
	m := NewManager([]ServerSpec{{Name: "srv", Command: "srv"}})
	m.connect = func(ctx context.Context, spec ServerSpec) (invoker, error) {
		return fake, nil
	}
	if _, err := m.Invoke(context.Background(), "srv.run", ""); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fake.closed {
		t.Fatal("client not closed")
	}
}

func TestSplitTool(t *testing.T) {
	if s, m := splitTool("srv.tool"); s != "srv" || m != "tool" {
		t.Fatalf("got %q %q", s, m)
	}
	if s, m := splitTool("bare"); s != "bare" || m != "bare" {
		t.Fatalf("got %q %q", s, m)
	}
}

func TestInvokeTimeoutDefault(t *testing.T) {
	m := NewManager([]ServerSpec{{Name: "slow", Command: "slow"}})
	m.connect = func(ctx context.Context, spec ServerSpec) (invoker, error) {
		return &fakeInvoker{err: context.DeadlineExceeded}, nil
	}
	start := time.Now()
	_, err := m.Invoke(context.Background(), "slow.run", "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("fake should fail immediately")
	}
}

package ipquery

import (
	"testing"

	"github.com/dresos/duckbot/guard"
)

func TestFilter_RefusesIPQueries(t *testing.T) {
	f := &Filter{}
	if err := f.Init(nil); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	refused := []string{
		"what is my ip",
		"What Is My IP Address",
		"tell me your ip",
		"the ip address of this server",
		"what's the user's ip",
	}
	for _, q := range refused {
		v := f.Check(q)
		if !v.Refuse {
			t.Errorf("Check(%q) proceeded, want refusal", q)
			continue
		}
		if v.Message != RefusalMessage {
			t.Errorf("Check(%q) message = %q, want %q", q, v.Message, RefusalMessage)
		}
	}
}

func TestFilter_AllowsOrdinaryQueries(t *testing.T) {
	f := &Filter{}
	if err := f.Init(nil); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	allowed := []string{
		"capital of france",
		"how does tcp/ip routing work in general",
		"weather in berlin",
		"",
	}
	for _, q := range allowed {
		if v := f.Check(q); v.Refuse {
			t.Errorf("Check(%q) refused: %q", q, v.Message)
		}
	}
}

func TestFilter_UsableWithoutInit(t *testing.T) {
	f := &Filter{}
	if v := f.Check("what is my ip address"); !v.Refuse {
		t.Error("uninitialized filter should still refuse IP queries")
	}
	if v := f.Check("capital of france"); v.Refuse {
		t.Error("uninitialized filter refused an ordinary query")
	}
}

func TestFilter_CustomPatternsAndMessage(t *testing.T) {
	f := &Filter{}
	err := f.Init(map[string]interface{}{
		"patterns": []interface{}{`\bmac\s*address\b`},
		"message":  "not available",
	})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	v := f.Check("what is my MAC address")
	if !v.Refuse {
		t.Fatal("custom pattern should refuse")
	}
	if v.Message != "not available" {
		t.Errorf("message = %q, want custom override", v.Message)
	}

	// The built-in pattern stays active alongside extras.
	if v := f.Check("what is my ip"); !v.Refuse {
		t.Error("built-in pattern should remain active after Init with extras")
	}
}

func TestFilter_InitRejectsBadPattern(t *testing.T) {
	f := &Filter{}
	err := f.Init(map[string]interface{}{
		"patterns": []interface{}{`(`},
	})
	if err == nil {
		t.Fatal("Init() with invalid regex should fail")
	}
}

func TestFilter_Registered(t *testing.T) {
	factory, ok := guard.GetFactory("ip-query")
	if !ok {
		t.Fatal("ip-query factory not registered")
	}
	f := factory()
	if f.Name() != "ip-query" {
		t.Errorf("Name() = %q, want ip-query", f.Name())
	}
}

package tags_test

import (
	"errors"
	"testing"

	"github.com/torosent/loadsink/internal/tags"
)

func testIdentity() tags.Identity {
	return tags.Identity{
		SessionID:        "01J8ZC4D9W0000000000000000",
		CurrentOperation: "run",
		NodeType:         "local",
		TestSuite:        "checkout",
		TestName:         "peak-hour",
		ClusterID:        "cluster-1",
	}
}

func TestBaseLength(t *testing.T) {
	cases := []struct {
		name   string
		custom []tags.Tag
		want   int
	}{
		{"no custom tags", nil, 6},
		{"one custom tag", []tags.Tag{{Key: "env", Value: "staging"}}, 7},
		{"three custom tags", []tags.Tag{
			{Key: "env", Value: "staging"},
			{Key: "region", Value: "eu-west-1"},
			{Key: "team", Value: "platform"},
		}, 9},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tags.NewBuilder(testIdentity(), tc.custom)
			if err != nil {
				t.Fatalf("NewBuilder() error = %v", err)
			}
			if got := len(b.Base()); got != tc.want {
				t.Errorf("len(Base()) = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestScenarioAndStepLengths(t *testing.T) {
	custom := []tags.Tag{{Key: "env", Value: "staging"}, {Key: "region", Value: "eu-west-1"}}
	b, err := tags.NewBuilder(testIdentity(), custom)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}

	sc := b.ForScenario("login")
	if len(sc) != 6+len(custom)+1 {
		t.Errorf("len(ForScenario()) = %d, want %d", len(sc), 6+len(custom)+1)
	}
	if got := string(sc[len(sc)-1].Key); got != tags.KeyScenarioName {
		t.Errorf("last scenario label key = %q, want %q", got, tags.KeyScenarioName)
	}

	st := b.ForStep("login", "submit")
	if len(st) != 6+len(custom)+2 {
		t.Errorf("len(ForStep()) = %d, want %d", len(st), 6+len(custom)+2)
	}
	if got := string(st[len(st)-1].Key); got != tags.KeyStepName {
		t.Errorf("last step label key = %q, want %q", got, tags.KeyStepName)
	}
	if got := st[len(st)-1].Value.AsString(); got != "submit" {
		t.Errorf("step_name = %q, want submit", got)
	}
}

func TestLabelOrder(t *testing.T) {
	custom := []tags.Tag{{Key: "env", Value: "staging"}, {Key: "region", Value: "eu-west-1"}}
	b, err := tags.NewBuilder(testIdentity(), custom)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}

	want := []string{
		tags.KeySessionID,
		tags.KeyCurrentOperation,
		tags.KeyNodeType,
		tags.KeyTestSuite,
		tags.KeyTestName,
		tags.KeyClusterID,
		"env",
		"region",
	}
	base := b.Base()
	for i, key := range want {
		if got := string(base[i].Key); got != key {
			t.Errorf("Base()[%d].Key = %q, want %q", i, got, key)
		}
	}
}

func TestMissingIdentity(t *testing.T) {
	_, err := tags.NewBuilder(tags.Identity{}, nil)
	if !errors.Is(err, tags.ErrMissingIdentity) {
		t.Errorf("NewBuilder() error = %v, want ErrMissingIdentity", err)
	}
}

func TestBuildersReturnFreshSlices(t *testing.T) {
	b, err := tags.NewBuilder(testIdentity(), nil)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}

	sc := b.ForScenario("a")
	st := b.ForStep("a", "b")
	if string(sc[len(sc)-1].Key) != tags.KeyScenarioName {
		t.Errorf("ForScenario() was mutated by a later ForStep() call")
	}
	if len(st) != len(sc)+1 {
		t.Errorf("len(ForStep()) = %d, want %d", len(st), len(sc)+1)
	}
}

func TestNewSessionID(t *testing.T) {
	a := tags.NewSessionID()
	b := tags.NewSessionID()
	if a == "" || b == "" {
		t.Fatal("NewSessionID() returned empty id")
	}
	if a == b {
		t.Errorf("NewSessionID() returned duplicate id %q", a)
	}
	if a >= b {
		t.Errorf("session ids not monotonic: %q generated before %q", a, b)
	}
}

func TestCustomOnly(t *testing.T) {
	b, err := tags.NewBuilder(testIdentity(), []tags.Tag{{Key: "env", Value: "staging"}})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	kvs := b.Custom()
	if len(kvs) != 1 {
		t.Fatalf("len(Custom()) = %d, want 1", len(kvs))
	}
	if string(kvs[0].Key) != "env" || kvs[0].Value.AsString() != "staging" {
		t.Errorf("Custom()[0] = %s=%s, want env=staging", kvs[0].Key, kvs[0].Value.AsString())
	}
}

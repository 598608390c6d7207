package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/packagebuilder-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "demo"}
	cases := []struct {
		in   string
		want string
	}{
		{in: "pb-configuration-events", want: "projects/demo/topics/pb-configuration-events"},
		{in: " spaced ", want: "projects/demo/topics/spaced"},
		{in: "projects/other/topics/already-full", want: "projects/other/topics/already-full"},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		if got := c.topicResourceName(tc.in); got != tc.want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := (&Client{}).topicResourceName("x"); got != "" {
		t.Fatalf("missing project should yield empty name, got %q", got)
	}
}

func TestTopicNamesSkipsBlank(t *testing.T) {
	if got := topicNames(config.PubSubConfig{ConfigurationsTopic: "  "}); len(got) != 0 {
		t.Fatalf("expected no topics, got %v", got)
	}
	got := topicNames(config.PubSubConfig{ConfigurationsTopic: "events"})
	if len(got) != 1 || got[0] != "events" {
		t.Fatalf("unexpected topics %v", got)
	}
}

func TestClientOptionsPreferInlineJSON(t *testing.T) {
	if got := clientOptions(config.GCPConfig{}, config.PubSubConfig{}); len(got) != 0 {
		t.Fatalf("expected no options, got %d", len(got))
	}
	got := clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds"}, config.PubSubConfig{})
	if len(got) != 1 {
		t.Fatalf("expected one option, got %d", len(got))
	}
	got = clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}, config.PubSubConfig{EmulatorHost: "localhost:8085"})
	if len(got) != 3 {
		t.Fatalf("emulator should override credentials with endpoint, no-auth and insecure dial, got %d", len(got))
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("events") != nil {
		t.Fatal("nil client should return nil publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error on nil client")
	}
}

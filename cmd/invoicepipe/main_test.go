package main

import (
	"testing"
	"time"
)

func TestClientsFromEnvParsesEntriesAndCredentials(t *testing.T) {
	t.Setenv("INVOICEPIPE_CLIENTS", "clientA:12659, clientB:12660")
	t.Setenv("SFTP_CLIENTA_USER", "alice")
	t.Setenv("SFTP_CLIENTA_PASS", "secret-a")
	t.Setenv("SFTP_CLIENTB_USER", "bob")
	t.Setenv("SFTP_CLIENTB_PASS", "secret-b")

	clients, err := clientsFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
	if clients[0].Name != "clientA" || clients[0].ID != 12659 {
		t.Fatalf("unexpected first client %q/%d", clients[0].Name, clients[0].ID)
	}
	if clients[0].Credentials.User != "alice" || clients[0].Credentials.Password != "secret-a" {
		t.Fatalf("unexpected first credentials %+v", clients[0].Credentials)
	}
	if clients[1].Name != "clientB" || clients[1].ID != 12660 {
		t.Fatalf("unexpected second client %q/%d", clients[1].Name, clients[1].ID)
	}
	if clients[1].Credentials.User != "bob" {
		t.Fatalf("unexpected second credentials %+v", clients[1].Credentials)
	}
}

func TestClientsFromEnvSkipsEmptyEntries(t *testing.T) {
	t.Setenv("INVOICEPIPE_CLIENTS", "clientA:12659,,")
	t.Setenv("SFTP_CLIENTA_USER", "alice")
	t.Setenv("SFTP_CLIENTA_PASS", "secret-a")

	clients, err := clientsFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(clients))
	}
}

func TestClientsFromEnvRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "unset", raw: ""},
		{name: "missing id", raw: "clientA"},
		{name: "non-numeric id", raw: "clientA:twelve"},
		{name: "only separators", raw: ",,"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("INVOICEPIPE_CLIENTS", tc.raw)
			if _, err := clientsFromEnv(); err == nil {
				t.Fatalf("expected error for %q", tc.raw)
			}
		})
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("INVOICEPIPE_REMOTE_DIR", "")
	if got := envOr("INVOICEPIPE_REMOTE_DIR", "/upload"); got != "/upload" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("INVOICEPIPE_REMOTE_DIR", "  /drop  ")
	if got := envOr("INVOICEPIPE_REMOTE_DIR", "/upload"); got != "/drop" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestIntEnvFallbacks(t *testing.T) {
	t.Setenv("SFTP_PORT", "")
	if got := intEnv("SFTP_PORT", 22); got != 22 {
		t.Fatalf("expected fallback 22, got %d", got)
	}
	t.Setenv("SFTP_PORT", "2222")
	if got := intEnv("SFTP_PORT", 22); got != 2222 {
		t.Fatalf("expected 2222, got %d", got)
	}
	t.Setenv("SFTP_PORT", "not-a-port")
	if got := intEnv("SFTP_PORT", 22); got != 22 {
		t.Fatalf("expected fallback on garbage, got %d", got)
	}
}

func TestDurationEnvFallbacks(t *testing.T) {
	t.Setenv("INVOICEPIPE_WARMUP_DELAY", "")
	if got := durationEnv("INVOICEPIPE_WARMUP_DELAY", 30*time.Second); got != 30*time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
	t.Setenv("INVOICEPIPE_WARMUP_DELAY", "90s")
	if got := durationEnv("INVOICEPIPE_WARMUP_DELAY", 30*time.Second); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	t.Setenv("INVOICEPIPE_WARMUP_DELAY", "soon")
	if got := durationEnv("INVOICEPIPE_WARMUP_DELAY", 30*time.Second); got != 30*time.Second {
		t.Fatalf("expected fallback on garbage, got %s", got)
	}
}

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"NeuralClient/internal/auth"
	"NeuralClient/internal/client"
	"NeuralClient/internal/store/file"
)

// nopAPI satisfies client.API; the commands under test never reach it.
type nopAPI struct{ client.API }

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		line, verb, arg string
	}{
		{"", "", ""},
		{"  Status ", "status", ""},
		{"say  hello there ", "say", "hello there"},
		{"comment p1 nice post", "comment", "p1 nice post"},
	}
	for _, tc := range cases {
		verb, arg := splitCommand(tc.line)
		if verb != tc.verb || arg != tc.arg {
			t.Fatalf("splitCommand(%q) = %q, %q; want %q, %q", tc.line, verb, arg, tc.verb, tc.arg)
		}
	}
}

func TestCommandLoopStopsOnQuit(t *testing.T) {
	app, err := client.New(client.Options{API: nopAPI{}})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	defer app.Close()

	var out bytes.Buffer
	in := strings.NewReader("status\nbogus\nquit\nstatus\n")
	if err := commandLoop(context.Background(), app, in, &out); err != nil {
		t.Fatalf("commandLoop: %v", err)
	}

	got := out.String()
	if strings.Count(got, "signed out") != 1 {
		t.Fatalf("expected one status before quit, got:\n%s", got)
	}
	if !strings.Contains(got, `error: `) {
		t.Fatalf("expected an error line for the unknown command, got:\n%s", got)
	}
}

func TestStatusShowsWhenCredentialWasSaved(t *testing.T) {
	ctx := context.Background()
	creds := file.NewCredentialStore(t.TempDir(), "", auth.NewSealer(""))
	app, err := client.New(client.Options{API: nopAPI{}, Credentials: creds})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	defer app.Close()

	var out bytes.Buffer
	if err := execute(ctx, app, "status", &out); err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.Contains(out.String(), "credential saved:") {
		t.Fatalf("unexpected credential line before save:\n%s", out.String())
	}

	if err := creds.Save(ctx, "SECRET"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out.Reset()
	if err := execute(ctx, app, "status", &out); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "credential saved: ") {
		t.Fatalf("expected credential line, got:\n%s", out.String())
	}
}

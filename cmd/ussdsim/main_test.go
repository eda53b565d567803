package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSimulatorAccumulatesText(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		text := r.PostForm.Get("text")
		seen = append(seen, text)
		if strings.Count(text, "*") >= 1 {
			w.Write([]byte("END Goodbye"))
			return
		}
		w.Write([]byte("CON Menu\n1. Next"))
	}))
	defer srv.Close()

	sim := &simulator{client: srv.Client(), endpoint: srv.URL, form: map[string][]string{"sessionId": {"s1"}}}
	var out bytes.Buffer
	if err := sim.loop(context.Background(), strings.NewReader("1\n2\n"), &out); err != nil {
		t.Fatalf("loop: %v", err)
	}

	want := []string{"", "1", "1*2"}
	if strings.Join(seen, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected texts %q", seen)
	}
	if !strings.Contains(out.String(), "Goodbye") {
		t.Fatalf("final screen not printed: %q", out.String())
	}
}

func TestSimulatorSendsLatestKeystroke(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		seen = append(seen, r.PostForm.Get("text"))
		if len(seen) == 3 {
			w.Write([]byte("END Goodbye"))
			return
		}
		w.Write([]byte("CON Menu"))
	}))
	defer srv.Close()

	sim := &simulator{client: srv.Client(), endpoint: srv.URL, latest: true, form: map[string][]string{"sessionId": {"s1"}}}
	if err := sim.loop(context.Background(), strings.NewReader("3\n3\n"), &bytes.Buffer{}); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if strings.Join(seen, "|") != "|3|3" {
		t.Fatalf("unexpected texts %q", seen)
	}
}

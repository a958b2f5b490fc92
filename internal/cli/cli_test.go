package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// run executes one command line and returns its stdout.
func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := New(&out, &errOut).RootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestGet(t *testing.T) {
	out, err := run(t, context.Background(), "get", "data:text/plain;base64,aGVsbG8=")
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello" {
		t.Fatalf("output is %q", out)
	}

	if _, err := run(t, context.Background(), "get", "gopher://example.com/"); err == nil {
		t.Fatal("invalid scheme succeeded")
	}
	if _, err := run(t, context.Background(), "get"); err == nil {
		t.Fatal("missing argument accepted")
	}
}

func TestConfigAndLogFile(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.toml")
	os.WriteFile(bogus, []byte("[cache]\nprovider = \"bogus\"\n"), 0o644)
	if _, err := run(t, context.Background(), "--config", bogus, "get", "about:blank"); err == nil {
		t.Fatal("invalid config accepted")
	}

	// the flag overrides the configured provider, no redis server is needed
	cfg := filepath.Join(dir, "fetch.toml")
	os.WriteFile(cfg, []byte("[cache]\nprovider = \"redis\"\nredisAddr = \"127.0.0.1:1\"\n"), 0o644)
	logFile := filepath.Join(dir, "fetch.log")
	out, err := run(t, context.Background(),
		"--config", cfg, "--cache", "memory", "--log-file", logFile, "-v",
		"get", "data:,ok")
	if err != nil {
		t.Fatal(err)
	}
	if out != "ok" {
		t.Fatalf("output is %q", out)
	}
	b, _ := os.ReadFile(logFile)
	if !strings.Contains(string(b), `"message":"Retrieved"`) {
		t.Fatalf("log file is %s", b)
	}
}

func TestCacheCommands(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/short":
			w.Header().Set("Cache-Control", "max-age=1")
		default:
			w.Header().Set("Cache-Control", "max-age=3600")
		}
		fmt.Fprint(w, "page "+r.URL.Path)
	}))
	defer origin.Close()

	db := []string{"--cache", "leveldb", "--db", filepath.Join(t.TempDir(), "pages.ldb")}
	ctx := context.Background()
	cmd := func(args ...string) string {
		t.Helper()
		out, err := run(t, ctx, append(db, args...)...)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out
	}

	if out := cmd("get", origin.URL+"/long"); out != "page /long" {
		t.Fatalf("output is %q", out)
	}
	cmd("get", origin.URL+"/short")
	cmd("get", origin.URL+"/other")

	ls := cmd("cache", "ls")
	for _, path := range []string{"/long", "/short", "/other"} {
		if !strings.Contains(ls, path) {
			t.Fatalf("%s missing from:\n%s", path, ls)
		}
	}

	if out := cmd("cache", "purge", origin.URL+"/other"); !strings.HasPrefix(out, "Purged http://127.0.0.1:") {
		t.Fatalf("purge output is %q", out)
	}
	if ls := cmd("cache", "ls"); strings.Contains(ls, "/other") {
		t.Fatalf("purged entry listed:\n%s", ls)
	}

	time.Sleep(1100 * time.Millisecond)
	if out := cmd("cache", "prune"); out != "Pruned 1 expired entries\n" {
		t.Fatalf("prune output is %q", out)
	}
	ls = cmd("cache", "ls")
	if strings.Contains(ls, "/short") || !strings.Contains(ls, "/long") {
		t.Fatalf("entries after prune:\n%s", ls)
	}

	if _, err := run(t, ctx, append(db, "cache", "purge", "about:blank")...); err == nil {
		t.Fatal("purging a non-http URL succeeded")
	}
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := run(t, ctx, "serve", "--addr", addr)
		done <- err
	}()

	var resp *http.Response
	for range 50 {
		resp, err = http.Get("http://" + addr + "/retrieve?url=data:,served")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "served" {
		t.Fatalf("body is %s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

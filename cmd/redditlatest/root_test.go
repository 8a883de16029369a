package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jamesprial/redditlatest/internal/metrics"
	"github.com/jamesprial/redditlatest/internal/testserver"
)

var serverCreds = testserver.Credentials{
	ClientID:     "id",
	ClientSecret: "secret",
	Username:     "gopher",
	Password:     "hunter2",
}

// setEnv points the REDDIT_* environment at srv with serverCreds.
func setEnv(t *testing.T, srv *testserver.Server) {
	t.Helper()
	t.Setenv("REDDIT_CLIENT_ID", serverCreds.ClientID)
	t.Setenv("REDDIT_CLIENT_SECRET", serverCreds.ClientSecret)
	t.Setenv("REDDIT_USERNAME", serverCreds.Username)
	t.Setenv("REDDIT_PASSWORD", serverCreds.Password)
	t.Setenv("REDDIT_USER_AGENT", "script:redditlatest-test:1.0 by /u/gopher")
	t.Setenv("REDDIT_BASE_URL", srv.URL())
	t.Setenv("REDDIT_AUTH_URL", srv.URL())
	t.Setenv("REDDIT_REQUESTS_PER_MINUTE", "60000")
	t.Setenv("REDDIT_BURST", "100")
}

func execute(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err = cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version error = %v", err)
	}
	if want := "redditlatest dev (none)\n"; out.String() != want {
		t.Errorf("version output = %q, want %q", out.String(), want)
	}
}

func TestRun_ListsPosts(t *testing.T) {
	srv := testserver.New(serverCreds)
	defer srv.Close()
	setEnv(t, srv)

	posts := testserver.Posts(4)
	posts[1].Author = ""
	srv.SetPosts("golang", posts...)

	stdout, stderr, err := execute(context.Background(), "-s", "golang", "-n", "3")
	if err != nil {
		t.Fatalf("run error = %v\nlogs:\n%s", err, stderr)
	}

	want := "1. post 0 (by author0) - Upvotes: 0\n" +
		"2. post 1 (by Unknown) - Upvotes: 1\n" +
		"3. post 2 (by author2) - Upvotes: 2\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
	for _, line := range []string{"msg=authenticated", "user=gopher", `msg="latest posts"`} {
		if !strings.Contains(stderr, line) {
			t.Errorf("logs missing %q:\n%s", line, stderr)
		}
	}
	if strings.Contains(stderr, serverCreds.Password) {
		t.Error("logs leaked the password")
	}
}

func TestRun_EmptyFeedWarns(t *testing.T) {
	srv := testserver.New(serverCreds)
	defer srv.Close()
	setEnv(t, srv)
	srv.SetPosts("golang")

	stdout, stderr, err := execute(context.Background(), "-s", "golang")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	if !strings.Contains(stderr, "level=WARN") || !strings.Contains(stderr, `msg="no posts retrieved"`) {
		t.Errorf("expected no posts warning, got:\n%s", stderr)
	}
}

func TestRun_UnknownFeedDegradesToEmpty(t *testing.T) {
	srv := testserver.New(serverCreds)
	defer srv.Close()
	setEnv(t, srv)

	_, stderr, err := execute(context.Background(), "-s", "doesnotexist")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(stderr, `msg="fetch failed"`) || !strings.Contains(stderr, `msg="no posts retrieved"`) {
		t.Errorf("expected fetch failure and empty warning, got:\n%s", stderr)
	}
}

func TestRun_FatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T)
		wantLog string
	}{
		{
			name: "missing credentials",
			mutate: func(t *testing.T) {
				t.Setenv("REDDIT_PASSWORD", "")
				t.Setenv("REDDIT_USER_AGENT", "")
			},
			wantLog: "REDDIT_PASSWORD, REDDIT_USER_AGENT",
		},
		{
			name: "wrong password",
			mutate: func(t *testing.T) {
				t.Setenv("REDDIT_PASSWORD", "wrong")
			},
			wantLog: `msg="authentication failed"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testserver.New(serverCreds)
			defer srv.Close()
			setEnv(t, srv)
			tt.mutate(t)

			stdout, stderr, err := execute(context.Background(), "-s", "golang")
			if !errors.Is(err, errReported) {
				t.Fatalf("err = %v, want errReported", err)
			}
			if stdout != "" {
				t.Errorf("stdout = %q, want empty", stdout)
			}
			if !strings.Contains(stderr, "level=CRITICAL") {
				t.Errorf("expected a CRITICAL line, got:\n%s", stderr)
			}
			if !strings.Contains(stderr, tt.wantLog) {
				t.Errorf("logs missing %q:\n%s", tt.wantLog, stderr)
			}
			if n := srv.Calls("/r/golang/new"); n != 0 {
				t.Errorf("listing called %d times, want 0", n)
			}
		})
	}
}

func TestRun_BadLogFormat(t *testing.T) {
	_, _, err := execute(context.Background(), "--log-format", "xml")
	if err == nil || errors.Is(err, errReported) {
		t.Fatalf("err = %v, want a plain flag error", err)
	}
}

func TestRun_WatchPrintsEachPostOnce(t *testing.T) {
	srv := testserver.New(serverCreds)
	defer srv.Close()
	setEnv(t, srv)
	srv.SetPosts("golang", testserver.Posts(3)...)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	stdout, stderr, err := execute(ctx, "-s", "golang", "-n", "3", "--watch", "20ms")
	if err != nil {
		t.Fatalf("run error = %v\nlogs:\n%s", err, stderr)
	}

	want := "1. post 2 (by author2) - Upvotes: 2\n" +
		"2. post 1 (by author1) - Upvotes: 1\n" +
		"3. post 0 (by author0) - Upvotes: 0\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
	if n := srv.Calls("/r/golang/new"); n < 2 {
		t.Errorf("listing polled %d times, want at least 2", n)
	}
	if !strings.Contains(stderr, `msg="stopped watching"`) {
		t.Errorf("expected stop log line, got:\n%s", stderr)
	}
}

func TestServeMetrics(t *testing.T) {
	reg := metrics.New()
	reg.AddPosts(3)

	addr, shutdown, err := serveMetrics("127.0.0.1:0", reg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("serveMetrics() error = %v", err)
	}
	defer shutdown()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "redditlatest_posts_fetched_total 3") {
		t.Errorf("metrics output missing posts counter:\n%s", body)
	}
}

package politeness

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/log"
)

func robotsServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func parse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

func TestRobots_Allowed(t *testing.T) {
	t.Parallel()

	body := "User-agent: *\nDisallow: /private\nCrawl-delay: 2\n\nUser-agent: sitecrawler\nDisallow: /nobots\n"
	srv := robotsServer(t, http.StatusOK, body, nil)

	tests := []struct {
		name  string
		agent string
		path  string
		want  bool
	}{
		{"wildcard group allows public", "otherbot", "/public", true},
		{"wildcard group blocks private", "otherbot", "/private/x", false},
		{"specific group blocks its path", "sitecrawler/1.0", "/nobots", false},
		{"specific group ignores wildcard rules", "sitecrawler/1.0", "/private/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRobots(srv.Client(), tt.agent, WithRobotsLogger(log.Discard()))
			if got := r.Allowed(context.Background(), parse(t, srv.URL+tt.path)); got != tt.want {
				t.Errorf("Allowed(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestRobots_CrawlDelay(t *testing.T) {
	t.Parallel()

	srv := robotsServer(t, http.StatusOK, "User-agent: *\nCrawl-delay: 2\n", nil)
	r := NewRobots(srv.Client(), "bot", WithRobotsLogger(log.Discard()))

	if got := r.CrawlDelay(context.Background(), parse(t, srv.URL+"/")); got != 2*time.Second {
		t.Errorf("CrawlDelay() = %v, want 2s", got)
	}
}

func TestRobots_FailOpen(t *testing.T) {
	t.Parallel()

	t.Run("missing robots.txt allows all", func(t *testing.T) {
		t.Parallel()

		srv := robotsServer(t, http.StatusNotFound, "", nil)
		r := NewRobots(srv.Client(), "bot", WithRobotsLogger(log.Discard()))
		if !r.Allowed(context.Background(), parse(t, srv.URL+"/anything")) {
			t.Error("404 robots.txt should allow everything")
		}
	})

	t.Run("server error allows all", func(t *testing.T) {
		t.Parallel()

		srv := robotsServer(t, http.StatusInternalServerError, "", nil)
		r := NewRobots(srv.Client(), "bot", WithRobotsLogger(log.Discard()))
		if !r.Allowed(context.Background(), parse(t, srv.URL+"/anything")) {
			t.Error("5xx robots.txt should fail open")
		}
	})

	t.Run("unreachable host allows all", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		r := NewRobots(&http.Client{Timeout: time.Second}, "bot", WithRobotsLogger(log.Discard()))
		if !r.Allowed(context.Background(), parse(t, addr+"/x")) {
			t.Error("unreachable robots.txt should fail open")
		}
	})

	t.Run("relative URL is rejected", func(t *testing.T) {
		t.Parallel()

		r := NewRobots(nil, "bot", WithRobotsLogger(log.Discard()))
		if r.Allowed(context.Background(), parse(t, "/relative")) {
			t.Error("relative URL should not be allowed")
		}
	})
}

func TestRobots_FetchesOncePerHost(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /x\n", &hits)
	r := NewRobots(srv.Client(), "bot", WithRobotsLogger(log.Discard()))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Allowed(context.Background(), parse(t, fmt.Sprintf("%s/page%d", srv.URL, i)))
		}()
	}
	wg.Wait()

	if got := hits.Load(); got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", got)
	}

	r.Purge(srv.URL)
	r.Allowed(context.Background(), parse(t, srv.URL+"/again"))
	if got := hits.Load(); got != 2 {
		t.Errorf("robots.txt fetched %d times after purge, want 2", got)
	}
}

func TestThrottle_Widen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		base   time.Duration
		max    time.Duration
		widens int
		want   time.Duration
	}{
		{"doubles", time.Second, 10 * time.Second, 1, 2 * time.Second},
		{"caps at max", time.Second, 3 * time.Second, 3, 3 * time.Second},
		{"zero base uses minimum step", 0, 10 * time.Second, 1, minWidenStep},
		{"max below base keeps base", 2 * time.Second, time.Second, 2, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			th := NewThrottle(tt.base, tt.max)
			for range tt.widens {
				th.Widen()
			}
			if got := th.Delay(); got != tt.want {
				t.Errorf("Delay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThrottle_Relax(t *testing.T) {
	t.Parallel()

	th := NewThrottle(time.Second, 8*time.Second)
	th.Widen()
	th.Widen()
	if got := th.Delay(); got != 4*time.Second {
		t.Fatalf("Delay() = %v, want 4s", got)
	}
	th.Relax()
	th.Relax()
	th.Relax()
	if got := th.Delay(); got != time.Second {
		t.Errorf("Delay() after relax = %v, want base 1s", got)
	}

	zero := NewThrottle(0, time.Second)
	zero.Widen()
	zero.Relax()
	if got := zero.Delay(); got != 0 {
		t.Errorf("zero throttle Delay() after relax = %v, want 0", got)
	}
}

func TestThrottle_Wait(t *testing.T) {
	t.Parallel()

	t.Run("paces consecutive waits", func(t *testing.T) {
		t.Parallel()

		th := NewThrottle(60*time.Millisecond, time.Second)
		ctx := context.Background()
		start := time.Now()
		for range 3 {
			if err := th.Wait(ctx); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
			t.Errorf("three waits took %v, want at least ~120ms", elapsed)
		}
	})

	t.Run("zero delay never blocks", func(t *testing.T) {
		t.Parallel()

		th := NewThrottle(0, 0)
		start := time.Now()
		for range 100 {
			if err := th.Wait(context.Background()); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("zero-delay waits took %v", elapsed)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		th := NewThrottle(time.Hour, time.Hour)
		_ = th.Wait(context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := th.Wait(ctx); err == nil {
			t.Error("Wait() on cancelled context should fail")
		}
	})
}

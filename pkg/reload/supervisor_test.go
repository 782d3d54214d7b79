package reload_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/virtual-closet/closet/pkg/app"
	"github.com/virtual-closet/closet/pkg/reload"
)

func quietLogger() *log.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	return l
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().String()
}

// builder builds an App answering its generation at /generation .
//
// When the file "state" in dir says "broken", building fails.
func builder(dir string) (reload.Builder, *int) {
	built := 0
	return func(ctx context.Context) (*app.App, error) {
		if b, err := os.ReadFile(filepath.Join(dir, "state")); err == nil && strings.TrimSpace(string(b)) == "broken" {
			return nil, errors.New("state is broken")
		}
		built += 1
		number := built
		return app.New(
			app.WithLogOutput(io.Discard),
			app.WithMount(func(e *echo.Echo) error {
				e.GET("/generation", func(c echo.Context) error {
					return c.String(http.StatusOK, strconv.Itoa(number))
				})
				return nil
			}),
		)
	}, &built
}

func waitGeneration(t *testing.T, ch <-chan int, after int) int {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case g := <-ch:
			if after < g {
				return g
			}
		case <-timeout:
			t.Fatalf("no generation after %d is served", after)
		}
	}
}

func getGeneration(t *testing.T, addr string) int {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/generation")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		t.Fatalf("unexpected body: %s", b)
	}
	return n
}

func write(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSupervisor_Run(t *testing.T) {
	t.Run("when a watched file is modified, it serves a new app on the same address", func(t *testing.T) {
		dir := t.TempDir()
		addr := freeAddr(t)
		build, _ := builder(dir)

		generations := make(chan int, 16)
		testee := reload.New(
			build, addr, []string{dir}, quietLogger(),
			reload.WithSettle(50*time.Millisecond),
			reload.OnServe(func(g int, a *app.App) { generations <- g }),
		)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- testee.Run(ctx) }()

		g1 := waitGeneration(t, generations, 0)
		before := getGeneration(t, addr)

		write(t, filepath.Join(dir, "main.go"), "package main")
		g2 := waitGeneration(t, generations, g1)
		after := getGeneration(t, addr)

		if g2 <= g1 {
			t.Errorf("generation does not advance: %d -> %d", g1, g2)
		}
		if after <= before {
			t.Errorf("app is not rebuilt: %d -> %d", before, after)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("Run does not return")
		}

		if _, err := http.Get("http://" + addr + "/generation"); err == nil {
			t.Error("server is still running after Run returns")
		}
	})

	t.Run("when a build fails, it waits for the next modification", func(t *testing.T) {
		dir := t.TempDir()
		addr := freeAddr(t)
		build, _ := builder(dir)
		state := filepath.Join(dir, "state")
		write(t, state, "ok")

		generations := make(chan int, 16)
		testee := reload.New(
			build, addr, []string{dir}, quietLogger(),
			reload.WithSettle(50*time.Millisecond),
			reload.OnServe(func(g int, a *app.App) { generations <- g }),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- testee.Run(ctx) }()

		g1 := waitGeneration(t, generations, 0)

		write(t, state, "broken")
		deadline := time.Now().Add(10 * time.Second)
		for {
			resp, err := http.Get("http://" + addr + "/generation")
			if err != nil {
				break // old generation is gone, and no new one.
			}
			resp.Body.Close()
			if time.Now().After(deadline) {
				t.Fatal("old generation keeps serving")
			}
			time.Sleep(20 * time.Millisecond)
		}

		write(t, state, "ok")
		g2 := waitGeneration(t, generations, g1)
		if g2 <= g1 {
			t.Errorf("generation does not advance: %d -> %d", g1, g2)
		}
		getGeneration(t, addr)

		cancel()
		if err := <-done; err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("when the address is in use, it returns error", func(t *testing.T) {
		occupied, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer occupied.Close()

		build, _ := builder(t.TempDir())
		testee := reload.New(build, occupied.Addr().String(), []string{t.TempDir()}, quietLogger())

		if err := testee.Run(context.Background()); err == nil {
			t.Error("expected error, but got nil")
		}
	})

	t.Run("when watched path is missing, it returns error", func(t *testing.T) {
		build, built := builder(t.TempDir())
		missing := filepath.Join(t.TempDir(), "missing")
		testee := reload.New(build, freeAddr(t), []string{missing}, quietLogger())

		if err := testee.Run(context.Background()); err == nil {
			t.Error("expected error, but got nil")
		}
		if *built != 0 {
			t.Errorf("app is built without watching: %d", *built)
		}
	})
}

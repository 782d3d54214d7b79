package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	apidolls "github.com/virtual-closet/closet/pkg/api/types/dolls"
	"github.com/virtual-closet/closet/pkg/app"
	kcs "github.com/virtual-closet/closet/pkg/configs/server"
	"github.com/virtual-closet/closet/pkg/utils/try"
)

func serve(a *app.App, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	a.Handler().ServeHTTP(resp, req)
	return resp
}

func quiet() app.Option {
	return app.WithLogOutput(io.Discard)
}

func quietLogger() *log.Logger {
	l := log.New("closetd")
	l.SetOutput(io.Discard)
	return l
}

func TestBuildServer_Default(t *testing.T) {
	t.Run("default server has no routes, and answers 404 of the framework", func(t *testing.T) {
		a := try.To(BuildServer(context.Background(), kcs.Default(), quietLogger(), quiet())).OrFatal(t)
		defer a.Shutdown(context.Background())

		if routes := a.Routes(); len(routes) != 0 {
			t.Errorf("unexpected routes: %+v", routes)
		}

		for _, target := range []string{"/", "/create_doll", "/metrics"} {
			resp := serve(a, httptest.NewRequest(http.MethodGet, target, nil))
			if resp.Code != http.StatusNotFound {
				t.Errorf("%s: unexpected status: %d", target, resp.Code)
			}
			if body := resp.Body.String(); body != "{\"message\":\"Not Found\"}\n" {
				t.Errorf("%s: unexpected body: %q", target, body)
			}
		}
	})
}

func TestBuildServer_Metrics(t *testing.T) {
	t.Run("metrics are exposed at the configured path", func(t *testing.T) {
		conf := kcs.Default()
		conf.Metrics.Enabled = true
		conf.Metrics.Path = "/internal/metrics"

		a := try.To(BuildServer(context.Background(), conf, quietLogger(), quiet())).OrFatal(t)
		defer a.Shutdown(context.Background())

		serve(a, httptest.NewRequest(http.MethodGet, "/", nil))
		resp := serve(a, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("unexpected status: %d", resp.Code)
		}
		if body := resp.Body.String(); !strings.Contains(body, `closet_http_requests_total{code="404",method="GET",route="unmatched"} 1`) {
			t.Errorf("request is not counted:\n%s", body)
		}
	})
}

func TestBuildServer_CORS(t *testing.T) {
	t.Run("configured origins are allowed", func(t *testing.T) {
		conf := kcs.Default()
		conf.CORS.AllowOrigins = []string{"http://closet.invalid"}

		a := try.To(BuildServer(context.Background(), conf, quietLogger(), quiet())).OrFatal(t)
		defer a.Shutdown(context.Background())

		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set(echo.HeaderOrigin, "http://closet.invalid")
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
		resp := serve(a, req)

		if origin := resp.Header().Get(echo.HeaderAccessControlAllowOrigin); origin != "http://closet.invalid" {
			t.Errorf("unexpected allowed origin: %q", origin)
		}
	})
}

// dollsConfig makes generator commands with sh, which concatenate inputs into outputs.
func dollsConfig(t *testing.T) kcs.Config {
	conf := kcs.Default()
	conf.Dolls.Enabled = true
	conf.Dolls.StorageDir = filepath.Join(t.TempDir(), "dolls")
	conf.Dolls.Generator.Create = []string{
		"/bin/sh", "-c", `printf 'doll:%s' "$1" > "$0"`, "{{.Out}}", "{{.Gender}}",
	}
	conf.Dolls.Generator.Apply = []string{
		"/bin/sh", "-c", `{ cat "$0"; printf '+%s' "$2"; } > "$1"`, "{{.Doll}}", "{{.Out}}", "{{.ClothingType}}",
	}
	return conf
}

func TestBuildServer_Dolls(t *testing.T) {
	t.Run("a doll can be created, downloaded and dressed", func(t *testing.T) {
		conf := dollsConfig(t)
		a := try.To(BuildServer(context.Background(), conf, quietLogger(), quiet())).OrFatal(t)
		defer a.Shutdown(context.Background())

		form := url.Values{"name": {"Alice"}, "age": {"29"}, "height": {"170"}, "weight": {"60"}, "gender": {"male"}}
		req := httptest.NewRequest(http.MethodPost, "/create_doll", strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		resp := serve(a, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("unexpected status: %d: %s", resp.Code, resp.Body)
		}
		var created apidolls.Created
		if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
			t.Fatal(err)
		}

		resp = serve(a, httptest.NewRequest(http.MethodGet, created.File, nil))
		if resp.Code != http.StatusOK || resp.Body.String() != "doll:male" {
			t.Fatalf("unexpected response: %d: %s", resp.Code, resp.Body)
		}

		body := new(bytes.Buffer)
		w := multipart.NewWriter(body)
		try.To(0, w.WriteField("clothing_type", "dress")).OrFatal(t)
		part := try.To(w.CreateFormFile("file", "dress.png")).OrFatal(t)
		try.To(part.Write([]byte("png"))).OrFatal(t)
		try.To(0, w.Close()).OrFatal(t)

		req = httptest.NewRequest(http.MethodPost, "/upload_clothing/"+created.DollId, body)
		req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
		resp = serve(a, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("unexpected status: %d: %s", resp.Code, resp.Body)
		}

		resp = serve(a, httptest.NewRequest(http.MethodGet, "/get_doll/"+created.DollId, nil))
		if resp.Code != http.StatusOK || resp.Body.String() != "doll:male+dress" {
			t.Errorf("doll is not dressed: %d: %s", resp.Code, resp.Body)
		}
	})

	t.Run("cross-origin requests are allowed for dolls by default", func(t *testing.T) {
		a := try.To(BuildServer(context.Background(), dollsConfig(t), quietLogger(), quiet())).OrFatal(t)
		defer a.Shutdown(context.Background())

		req := httptest.NewRequest(http.MethodGet, "/get_doll/unknown", nil)
		req.Header.Set(echo.HeaderOrigin, "http://frontend.invalid")
		resp := serve(a, req)
		if resp.Code != http.StatusNotFound {
			t.Errorf("unexpected status: %d", resp.Code)
		}
		if origin := resp.Header().Get(echo.HeaderAccessControlAllowOrigin); origin != "*" {
			t.Errorf("unexpected allowed origin: %q", origin)
		}
	})

	t.Run("without database, it warns through the given logger", func(t *testing.T) {
		buf := new(bytes.Buffer)
		logger := log.New("closetd")
		logger.SetOutput(buf)

		a := try.To(BuildServer(context.Background(), dollsConfig(t), logger, quiet())).OrFatal(t)
		defer a.Shutdown(context.Background())

		if !strings.Contains(buf.String(), "database.uri is not set") {
			t.Errorf("warning is not logged: %q", buf.String())
		}
	})

	t.Run("broken generator command fails building", func(t *testing.T) {
		conf := dollsConfig(t)
		conf.Dolls.Generator.Create = []string{"create", "{{.Out"}

		if _, err := BuildServer(context.Background(), conf, quietLogger(), quiet()); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("unreachable database fails building", func(t *testing.T) {
		conf := dollsConfig(t)
		conf.Database.URI = "postgres://closet@127.0.0.1:1/closet?connect_timeout=1"
		conf.Database.ConnectAttempts = 1

		if _, err := BuildServer(context.Background(), conf, quietLogger(), quiet()); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("flags override the config", func(t *testing.T) {
		conf := try.To(loadConfig(flags{host: "127.0.0.1", port: "9000", loglevel: "debug"})).OrFatal(t)
		if conf.Addr() != "127.0.0.1:9000" || conf.LogLevel != "debug" {
			t.Errorf("unexpected config: %+v", conf)
		}
	})

	t.Run("no flags mean 0.0.0.0:8000", func(t *testing.T) {
		conf := try.To(loadConfig(flags{})).OrFatal(t)
		if conf.Addr() != "0.0.0.0:8000" {
			t.Errorf("unexpected address: %s", conf.Addr())
		}
	})

	for name, f := range map[string]flags{
		"non-numeric port":  {port: "http"},
		"out of range port": {port: "70000"},
		"missing config":    {configPath: filepath.Join("testdata", "no-such-config.yaml")},
	} {
		t.Run(name+" is rejected", func(t *testing.T) {
			if _, err := loadConfig(f); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Run("invalid values are ErrInvalidConfig", func(t *testing.T) {
		if _, err := loadConfig(flags{port: "-1"}); !errors.Is(err, kcs.ErrInvalidConfig) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

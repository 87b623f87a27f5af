package imagestore

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"testing"

	"github.com/h2non/gock"

	"github.com/cordee/cordee-backend/internal/platform/logger"
)

const backendURL = "http://images.test"

func newTestStore(t *testing.T) *HTTPStore {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	client := &http.Client{}
	gock.InterceptClient(client)
	t.Cleanup(func() {
		gock.RestoreClient(client)
		gock.Off()
	})
	return NewHTTPStore(log, backendURL+"/", client)
}

func TestHTTPStoreDeletePostsEveryFilename(t *testing.T) {
	store := newTestStore(t)
	var got url.Values
	gock.New(backendURL).
		Post("/delete").
		MatchHeader("Content-Type", "application/x-www-form-urlencoded").
		AddMatcher(func(req *http.Request, _ *gock.Request) (bool, error) {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return false, err
			}
			got, err = url.ParseQuery(string(body))
			return err == nil, err
		}).
		Reply(200)

	if err := store.Delete(t.Context(), []string{"2.jpg", "1.jpg", "1.jpg", " "}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if want := []string{"1.jpg", "2.jpg"}; !reflect.DeepEqual(got["filenames"], want) {
		t.Fatalf("filenames: want=%v got=%v", want, got["filenames"])
	}
	if !gock.IsDone() {
		t.Fatalf("expected the delete request to be sent")
	}
}

func TestHTTPStoreDeleteSkipsEmptyList(t *testing.T) {
	store := newTestStore(t)
	if err := store.Delete(t.Context(), nil); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gock.HasUnmatchedRequest() {
		t.Fatalf("no request expected")
	}
}

func TestHTTPStoreDeleteReportsBackendFailure(t *testing.T) {
	store := newTestStore(t)
	gock.New(backendURL).Post("/delete").Reply(500)

	if err := store.Delete(t.Context(), []string{"1.jpg"}); err == nil {
		t.Fatalf("expected error on status 500")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		code ConfigErrorCode
	}{
		{"disabled", Config{}, ""},
		{"http", Config{Mode: ModeHTTP, BackendURL: backendURL}, ""},
		{"http without url", Config{Mode: ModeHTTP}, ConfigErrorMissingBackendURL},
		{"http relative url", Config{Mode: ModeHTTP, BackendURL: "images:8080"}, ConfigErrorInvalidURL},
		{"gcs", Config{Mode: ModeGCS, Bucket: "images"}, ""},
		{"gcs without bucket", Config{Mode: ModeGCS}, ConfigErrorMissingBucket},
		{"emulator without host", Config{Mode: ModeGCSEmulator, Bucket: "images"}, ConfigErrorMissingEmulatorHost},
		{"unknown mode", Config{Mode: "s3"}, ConfigErrorInvalidMode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.cfg)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("Validate: unexpected error %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Code != tc.code {
				t.Fatalf("code: want=%s got=%v", tc.code, err)
			}
		})
	}
}

func TestConfigFromEnvInfersMode(t *testing.T) {
	t.Setenv("IMAGE_STORE_MODE", "")
	t.Setenv("IMAGE_BACKEND_URL", backendURL+"/")
	cfg, err := ConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Mode != ModeHTTP || cfg.BackendURL != backendURL {
		t.Fatalf("config: want=http %s got=%s %s", backendURL, cfg.Mode, cfg.BackendURL)
	}

	t.Setenv("IMAGE_BACKEND_URL", "")
	cfg, err = ConfigFromEnv(nil)
	if err != nil || cfg.Mode != ModeDisabled {
		t.Fatalf("config: want=disabled got=%q err=%v", cfg.Mode, err)
	}
}

func TestNewDisabledReturnsNilStore(t *testing.T) {
	log, _ := logger.New("test")
	store, err := New(t.Context(), log, Config{})
	if err != nil || store != nil {
		t.Fatalf("New: want=nil,nil got=%v,%v", store, err)
	}
}

package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New with empty apiKey did not fail")
	}
	if _, err := New("sk-test"); err != nil {
		t.Errorf("New: %v", err)
	}
}

func TestTranscribe(t *testing.T) {
	var gotPath, gotAuth string
	var sawWAV bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		if err := r.ParseMultipartForm(4 << 20); err != nil {
			t.Fatalf("parse multipart form: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		head := make([]byte, 4)
		file.Read(head)
		sawWAV = string(head) == "RIFF"

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": " lock the door "}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", WithBaseURL(srv.URL), WithModel("whisper-1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Transcribe(context.Background(), make([]int16, 1600), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if res.Text != "lock the door" {
		t.Errorf("text = %q, want trimmed %q", res.Text, "lock the door")
	}
	if res.Provider != "openai" {
		t.Errorf("provider = %q, want openai", res.Provider)
	}
	if !strings.HasSuffix(gotPath, "/audio/transcriptions") {
		t.Errorf("path = %q, want .../audio/transcriptions", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("authorization = %q, want bearer key", gotAuth)
	}
	if !sawWAV {
		t.Error("upload does not start with a RIFF header")
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p, err := New("sk-test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), make([]int16, 160), 16000); err == nil {
		t.Error("Transcribe with 502 response did not fail")
	}
}

func TestTranscribeEmptyInput(t *testing.T) {
	p, err := New("sk-test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), nil, 16000); err == nil {
		t.Error("Transcribe with no samples did not fail")
	}
}

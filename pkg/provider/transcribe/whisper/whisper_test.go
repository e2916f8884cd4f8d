package whisper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New with empty serverURL did not fail")
	}
	p, err := New("http://localhost:8080/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.serverURL != "http://localhost:8080" {
		t.Errorf("serverURL = %q, want trailing slash trimmed", p.serverURL)
	}
}

func TestTranscribe(t *testing.T) {
	var gotLanguage, gotModel string
	var gotWAVLen int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart form: %v", err)
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "audio.wav" {
			t.Errorf("filename = %q, want audio.wav", header.Filename)
		}
		buf := make([]byte, 4)
		if _, err := file.Read(buf); err != nil {
			t.Fatalf("read wav: %v", err)
		}
		if string(buf) != "RIFF" {
			t.Errorf("upload does not start with RIFF header: %q", buf)
		}
		gotWAVLen = int(header.Size)

		w.Write([]byte(`{"text": " open the gate \n"}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithLanguage("en"), WithModel("base.en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	samples := make([]int16, 1600)
	res, err := p.Transcribe(context.Background(), samples, 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if res.Text != "open the gate" {
		t.Errorf("text = %q, want trimmed %q", res.Text, "open the gate")
	}
	if res.Provider != "whisper" {
		t.Errorf("provider = %q, want whisper", res.Provider)
	}
	if gotLanguage != "en" || gotModel != "base.en" {
		t.Errorf("form fields language=%q model=%q", gotLanguage, gotModel)
	}
	// 44-byte WAV header plus 1600 16-bit samples.
	if gotWAVLen != 44+3200 {
		t.Errorf("uploaded WAV size = %d, want %d", gotWAVLen, 44+3200)
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), make([]int16, 160), 16000); err == nil {
		t.Error("Transcribe with 500 response did not fail")
	}
}

func TestTranscribeEmptyInput(t *testing.T) {
	p, err := New("http://localhost:8080")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), nil, 16000); err == nil {
		t.Error("Transcribe with no samples did not fail")
	}
}

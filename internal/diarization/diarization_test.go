package diarization

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/config"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/logger"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

type stubEngine struct {
	resp *Response
	err  error
	req  Request
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Diarize(_ context.Context, req Request) (*Response, error) {
	s.req = req
	return s.resp, s.err
}

func TestResolveToken_Order(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	os.WriteFile(dotenv, []byte("HF_TEST_TOKEN=from-dotenv\n"), 0644)
	tokenFile := filepath.Join(dir, "token")
	os.WriteFile(tokenFile, []byte("from-file\n"), 0644)

	providers := []CredentialProvider{
		StaticToken{},
		EnvToken{Vars: []string{"HF_TEST_TOKEN"}},
		DotEnvToken{Path: dotenv, Keys: []string{"HF_TEST_TOKEN"}},
		FileToken{Path: tokenFile},
	}

	token, attempted := ResolveToken(providers)
	if token != "from-dotenv" {
		t.Errorf("expected dotenv token, got %q", token)
	}
	want := []string{"config", "env:HF_TEST_TOKEN", "dotenv:" + dotenv}
	if !reflect.DeepEqual(attempted, want) {
		t.Errorf("expected attempted %v, got %v", want, attempted)
	}

	t.Setenv("HF_TEST_TOKEN", "from-env")
	if token, _ := ResolveToken(providers); token != "from-env" {
		t.Errorf("expected env token to win, got %q", token)
	}

	if token, _ := ResolveToken(providers[3:]); token != "from-file" {
		t.Errorf("expected file token, got %q", token)
	}
}

func TestResolveToken_NoneFound(t *testing.T) {
	dir := t.TempDir()
	providers := []CredentialProvider{
		EnvToken{Vars: []string{"HF_TEST_TOKEN_UNSET"}},
		DotEnvToken{Path: filepath.Join(dir, "missing.env"), Keys: []string{"HF_TEST_TOKEN_UNSET"}},
		FileToken{Path: filepath.Join(dir, "missing")},
	}
	token, attempted := ResolveToken(providers)
	if token != "" || len(attempted) != 3 {
		t.Errorf("expected no token after 3 attempts, got %q after %v", token, attempted)
	}
}

func TestProviders(t *testing.T) {
	cfg := config.Defaults().Diarization
	cfg.Token = "abc"
	var names []string
	for _, p := range Providers(cfg) {
		names = append(names, p.Name())
	}
	want := []string{"config", "env:HF_TOKEN,HUGGINGFACE_HUB_TOKEN", "dotenv:.env", "file:~/.huggingface/token"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}
}

func TestAdapter_Unavailable(t *testing.T) {
	tok := []CredentialProvider{StaticToken{Value: "t"}}
	tests := []struct {
		name      string
		enabled   bool
		providers []CredentialProvider
		err       error
		reason    string
	}{
		{"disabled", false, tok, nil, ReasonDisabled},
		{"no credentials", true, []CredentialProvider{StaticToken{}}, nil, ReasonNoCredentials},
		{"auth", true, tok, fmt.Errorf("wrapped: %w", ErrAuth), "authentication failed"},
		{"gated", true, tok, ErrGated, "gated model access denied"},
		{"engine", true, tok, errors.New("connection refused"), "engine error: connection refused"},
	}
	for _, tt := range tests {
		a := NewAdapter(tt.enabled, &stubEngine{err: tt.err}, tt.providers, Request{}, logger.Nop())
		res := a.Diarize(context.Background(), "x.wav")
		if res.Available || res.Turns != nil {
			t.Errorf("%s: expected unavailable result, got %+v", tt.name, res)
		}
		if res.Reason != tt.reason {
			t.Errorf("%s: expected reason %q, got %q", tt.name, tt.reason, res.Reason)
		}
	}
}

type downEngine struct{ stubEngine }

func (d *downEngine) IsAvailable(context.Context) bool { return false }

func TestAdapter_UnreachableEngine(t *testing.T) {
	engine := &downEngine{}
	a := NewAdapter(true, engine, []CredentialProvider{StaticToken{Value: "t"}}, Request{}, logger.Nop())

	res := a.Diarize(context.Background(), "x.wav")
	if res.Available || res.Reason != ReasonUnreachable {
		t.Errorf("expected unreachable result, got %+v", res)
	}
	if engine.req.AudioPath != "" {
		t.Error("expected no diarization request to an unreachable engine")
	}
}

func TestPyannote_IsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	if !NewPyannote(srv.URL, 0).IsAvailable(context.Background()) {
		t.Error("expected healthy sidecar to be available")
	}
	url := srv.URL
	srv.Close()
	if NewPyannote(url, 0).IsAvailable(context.Background()) {
		t.Error("expected stopped sidecar to be unavailable")
	}
}

func TestAdapter_SortsAndFiltersTurns(t *testing.T) {
	engine := &stubEngine{resp: &Response{Turns: []types.SpeakerTurn{
		{Start: 5, End: 9, Speaker: "SPEAKER_01"},
		{Start: 0, End: 5, Speaker: "SPEAKER_00"},
		{Start: 9, End: 9, Speaker: "SPEAKER_02"},
	}}}
	a := NewAdapter(true, engine, []CredentialProvider{StaticToken{Value: "secret"}}, Request{NumSpeakers: 2}, logger.Nop())

	res := a.Diarize(context.Background(), "chunk.wav")
	if !res.Available {
		t.Fatalf("expected available result, got %+v", res)
	}
	if len(res.Turns) != 2 || res.Turns[0].Speaker != "SPEAKER_00" || res.Turns[1].Speaker != "SPEAKER_01" {
		t.Errorf("unexpected turns %+v", res.Turns)
	}
	if res.NumSpeakers != 2 {
		t.Errorf("expected 2 speakers, got %d", res.NumSpeakers)
	}
	if engine.req.Token != "secret" || engine.req.AudioPath != "chunk.wav" || engine.req.NumSpeakers != 2 {
		t.Errorf("unexpected engine request %+v", engine.req)
	}
}

func TestPyannote_Diarize(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "a.wav")
	os.WriteFile(audio, []byte("RIFF"), 0644)

	var auth, speakers string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		switch auth {
		case "Bearer bad":
			w.WriteHeader(http.StatusUnauthorized)
			return
		case "Bearer gated":
			w.WriteHeader(http.StatusForbidden)
			return
		}
		r.ParseMultipartForm(1 << 20)
		speakers = r.FormValue("num_speakers")
		fmt.Fprint(w, `{"segments":[{"speaker_id":"SPEAKER_00","start_time":0,"end_time":2.5}],"num_speakers":1}`)
	}))
	defer srv.Close()

	p := NewPyannote(srv.URL, 0)
	resp, err := p.Diarize(context.Background(), Request{AudioPath: audio, Token: "good", NumSpeakers: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth != "Bearer good" || speakers != "3" {
		t.Errorf("unexpected request: auth %q, num_speakers %q", auth, speakers)
	}
	want := []types.SpeakerTurn{{Start: 0, End: 2.5, Speaker: "SPEAKER_00"}}
	if !reflect.DeepEqual(resp.Turns, want) || resp.NumSpeakers != 1 {
		t.Errorf("unexpected response %+v", resp)
	}

	if _, err := p.Diarize(context.Background(), Request{AudioPath: audio, Token: "bad"}); !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
	if _, err := p.Diarize(context.Background(), Request{AudioPath: audio, Token: "gated"}); !errors.Is(err, ErrGated) {
		t.Errorf("expected ErrGated, got %v", err)
	}
}

func TestNew_UnknownEngine(t *testing.T) {
	cfg := config.Defaults().Diarization
	cfg.Engine = "nemo"
	if _, err := New(cfg, logger.Nop()); err == nil {
		t.Error("expected error")
	}
}

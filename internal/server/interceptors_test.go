package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/cadence/internal/identity"
	"github.com/alfredjeanlab/cadence/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAuthMiddleware(t *testing.T) {
	for _, tc := range []struct {
		name   string
		token  string
		header string
		code   int
	}{
		{"Disabled", "", "", http.StatusOK},
		{"NoHeader", "secret", "", http.StatusUnauthorized},
		{"WrongToken", "secret", "Bearer wrong", http.StatusUnauthorized},
		{"InvalidScheme", "secret", "Basic secret", http.StatusUnauthorized},
		{"CorrectToken", "secret", "Bearer secret", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthMiddleware(tc.token, http.HandlerFunc(okHandler))
			req := httptest.NewRequest(http.MethodPost, "/events/generate", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d; body: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestWithIdentity(t *testing.T) {
	s := New(Options{Logger: discardLogger()})
	var got identity.Identity
	handler := s.withIdentity(func(w http.ResponseWriter, r *http.Request) {
		got, _ = identity.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/events/x/participants", nil)
	req.Header.Set("user-id", "42")
	req.Header.Set("role", "startup")
	req.Header.Set("allowed-roles", "startup, mentor")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusOK)
	if got.UserID != 42 || got.Role != "startup" || len(got.AllowedRoles) != 2 {
		t.Fatalf("identity = %+v", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/x/participants", nil))
	requireStatus(t, rec, http.StatusUnauthorized)
	requireKind(t, rec, model.KindUnauthenticated)
}

func TestRecovery(t *testing.T) {
	handler := Recovery(discardLogger(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("test panic")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	requireStatus(t, rec, http.StatusInternalServerError)
	requireKind(t, rec, model.KindInternal)
}

func TestRequestLogger_RecordsStatus(t *testing.T) {
	var sw *statusWriter
	handler := RequestLogger(discardLogger(), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		sw = w.(*statusWriter)
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if sw.status != http.StatusTeapot {
		t.Fatalf("recorded status = %d, want first written %d", sw.status, http.StatusTeapot)
	}
	if _, ok := any(sw).(http.Flusher); !ok {
		t.Fatal("statusWriter must implement http.Flusher")
	}
}

func TestLoggingInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}

	resp, err := LoggingInterceptor(context.Background(), nil, info,
		func(ctx context.Context, req any) (any, error) { return "ok", nil })
	if err != nil || resp != "ok" {
		t.Fatalf("expected resp=%q err=nil, got resp=%v err=%v", "ok", resp, err)
	}

	_, err = LoggingInterceptor(context.Background(), nil, info,
		func(ctx context.Context, req any) (any, error) { return nil, fmt.Errorf("boom") })
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}

	resp, err := RecoveryInterceptor(context.Background(), nil, info,
		func(ctx context.Context, req any) (any, error) { return "ok", nil })
	if err != nil || resp != "ok" {
		t.Fatalf("expected resp=%q err=nil, got resp=%v err=%v", "ok", resp, err)
	}

	_, err = RecoveryInterceptor(context.Background(), nil, info,
		func(_ context.Context, _ any) (any, error) { panic("test panic") })
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", status.Code(err))
	}
}

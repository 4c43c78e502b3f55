package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rhuss/schach/pkg/mockvendor"
)

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("New(nil) succeeded")
	}
}

func TestNewRejectsBodyLimit(t *testing.T) {
	f := newFixture(t, mockvendor.Config{})
	if _, err := New(f.server.moves.engine, nil, WithMaxBodySize(0)); err == nil {
		t.Error("zero body limit accepted")
	}
}

func TestServeOnAndShutdown(t *testing.T) {
	f := newFixture(t, mockvendor.Config{}, WithShutdownTimeout(2*time.Second))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.ServeOn(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for range 50 {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeOn returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	f := newFixture(t, mockvendor.Config{}, WithAddr(ln.Addr().String()))
	if err := f.server.Run(context.Background()); err == nil {
		t.Error("Run on a taken port succeeded")
	}
}

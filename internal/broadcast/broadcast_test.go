package broadcast

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestPublisher_DisabledIsNoop(t *testing.T) {
	p := NewPublisher(nil, 0, zaptest.NewLogger(t))
	ctx := context.Background()

	if p.Enabled() {
		t.Fatal("publisher without redis reports enabled")
	}
	if err := p.Publish(ctx, "dashboard", map[string]int{"score": 1}); err != nil {
		t.Errorf("publish: %v", err)
	}
	var out map[string]int
	if _, ok, err := p.Load(ctx, "dashboard", &out); ok || err != nil {
		t.Errorf("load = %v, %v", ok, err)
	}
	if err := p.RequestRefresh(ctx, "dashboard"); err != nil {
		t.Errorf("request refresh: %v", err)
	}

	// без Redis слушать нечего, вызов возвращается сразу
	done := make(chan struct{})
	go func() {
		p.ListenRefresh(ctx, func(string) {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ListenRefresh blocked without redis")
	}
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepCtx(ctx, time.Hour) {
		t.Error("sleep on cancelled context reported success")
	}
	if !sleepCtx(context.Background(), time.Millisecond) {
		t.Error("short sleep interrupted")
	}
}

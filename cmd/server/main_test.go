package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeServer struct {
	rec      *recorder
	startErr error
	started  chan struct{}
	stopped  chan struct{}
}

func (s *fakeServer) Start() error {
	s.rec.add("start")
	close(s.started)
	if s.startErr != nil {
		return s.startErr
	}
	<-s.stopped
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.rec.add("shutdown")
	close(s.stopped)
	return nil
}

type fakeLoads struct {
	rec    *recorder
	active int
	delay  time.Duration
}

func (l *fakeLoads) ActiveLoads() int { return l.active }

func (l *fakeLoads) WaitForLoads(ctx context.Context) error {
	time.Sleep(l.delay)
	l.rec.add("loads drained")
	return nil
}

func TestServe(t *testing.T) {
	bindErr := errors.New("address already in use")

	tests := []struct {
		name     string
		startErr error
		active   int
		wantErr  error
		want     []string
	}{
		{
			name:   "waits for active loads",
			active: 2,
			want:   []string{"start", "shutdown", "loads drained", "returned"},
		},
		{
			name: "no active loads",
			want: []string{"start", "shutdown", "returned"},
		},
		{
			name:     "start failure",
			startErr: bindErr,
			wantErr:  bindErr,
			want:     []string{"start", "returned"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			srv := &fakeServer{rec: rec, startErr: tt.startErr, started: make(chan struct{}), stopped: make(chan struct{})}
			loads := &fakeLoads{rec: rec, active: tt.active, delay: 20 * time.Millisecond}

			ctx, cancel := context.WithCancel(context.Background())
			if tt.startErr == nil {
				go func() {
					<-srv.started
					cancel()
				}()
			} else {
				defer cancel()
			}

			err := serve(ctx, srv, loads, time.Second)
			rec.add("returned")

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("serve() error = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, rec.list()); diff != "" {
				t.Errorf("serve() events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

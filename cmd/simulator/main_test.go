package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/repair-desk/internal/models"
)

func TestRandomCreateRequest(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		req := randomCreateRequest(r)
		wo, err := models.NewWorkOrder(req, time.Now())
		require.NoError(t, err)
		assert.Contains(t, stores, wo.Store)
		assert.True(t, req.AmountPaidBy.Valid())
	}
}

func TestCreateWork(t *testing.T) {
	authToken = "tok"
	t.Cleanup(func() { authToken = "" })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/works", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.CreateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Harbor", req.Store)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.WorkOrder{WorkCode: "WO-1"})
	}))
	defer server.Close()

	code, err := createWork(server.URL, models.CreateRequest{Store: "Harbor"})
	require.NoError(t, err)
	assert.Equal(t, "WO-1", code)
}

func TestCreateWork_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"bad body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("not json"))
		}},
		{"no code", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("{}"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()
			_, err := createWork(server.URL, models.CreateRequest{})
			assert.Error(t, err)
		})
	}

	_, err := createWork("http://127.0.0.1:0", models.CreateRequest{})
	assert.Error(t, err)
}

func TestNextUpdate_ReachesTerminalStatus(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		r := rand.New(rand.NewSource(seed))
		s := &WorkState{WorkCode: "WO-1", Technician: "tech-1", Status: models.StatusSubmitted}

		prev := s.Status
		steps := 0
		for {
			u, ok := nextUpdate(r, s)
			if !ok {
				break
			}
			if u.Status != nil {
				assert.True(t, models.CanTransition(prev, *u.Status), "%s -> %s", prev, *u.Status)
				prev = *u.Status
			}
			steps++
			require.Less(t, steps, 1000)
		}
		assert.True(t, s.Status.Terminal(), "seed %d ended in %s", seed, s.Status)
	}
}

func TestNextUpdate_AssignsTechnicianOnStart(t *testing.T) {
	// find a seed whose first draw starts the work rather than rejecting it
	for seed := int64(0); seed < 50; seed++ {
		r := rand.New(rand.NewSource(seed))
		s := &WorkState{WorkCode: "WO-1", Technician: "tech-2", Status: models.StatusSubmitted}
		u, ok := nextUpdate(r, s)
		require.True(t, ok)
		if s.Status == models.StatusInProgress {
			require.NotNil(t, u.Technician)
			assert.Equal(t, "tech-2", *u.Technician)
			return
		}
	}
	t.Fatal("no seed started work")
}

func TestSendUpdate(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/works/WO-1/update", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "inprogress", body["status"])
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	st := models.StatusInProgress
	u := progressUpdate{WorkOrderPatch: models.WorkOrderPatch{Status: &st}}
	assert.NoError(t, sendUpdate(server.URL, "WO-1", u))

	status.Store(http.StatusConflict)
	assert.Error(t, sendUpdate(server.URL, "WO-1", u))
}

func TestSimulateWork_StopsAtTerminal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := &WorkState{WorkCode: "WO-1", Technician: "tech-1", Status: models.StatusSubmitted}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		simulateWork(ctx, server.URL, s, time.Millisecond, rand.New(rand.NewSource(3)))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("simulation did not stop")
	}
	assert.True(t, s.Status.Terminal())
	assert.Positive(t, calls.Load())
}

func TestSimulateWork_StopsOnCancel(t *testing.T) {
	s := &WorkState{WorkCode: "WO-1", Status: models.StatusSubmitted}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	simulateWork(ctx, "http://127.0.0.1:0", s, time.Hour, rand.New(rand.NewSource(1)))
	assert.Equal(t, models.StatusSubmitted, s.Status)
}

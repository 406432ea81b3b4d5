package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadrouter_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type fakeSnapshotQueue struct {
	err   error
	calls int
}

func (f *fakeSnapshotQueue) EnqueueSnapshotSync(ctx context.Context) error {
	f.calls++
	return f.err
}

func performSnapshotSync(h *Handler) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/ops/sync/snapshot", nil)
	h.HandleSnapshotSync(c)
	return w
}

func TestHandleSnapshotSync_QueuesTask(t *testing.T) {
	queue := &fakeSnapshotQueue{}
	h := New(nil, nil, queue, validator.New())

	w := performSnapshotSync(h)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if queue.calls != 1 {
		t.Fatalf("expected one enqueue, got %d", queue.calls)
	}
	if !strings.Contains(w.Body.String(), `"queued":true`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestHandleSnapshotSync_EnqueueFailure(t *testing.T) {
	queue := &fakeSnapshotQueue{err: errors.New("redis down")}
	h := New(nil, nil, queue, validator.New())

	w := performSnapshotSync(h)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestHandleSnapshotSync_NoQueueConfigured(t *testing.T) {
	h := New(nil, nil, nil, validator.New())

	w := performSnapshotSync(h)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a queue, got %d", w.Code)
	}
}

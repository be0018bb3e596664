package reconcile

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/hitoshi/localbite/internal/metrics"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// Executor インターフェースに対するモック実装
type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	query  string
	args   []interface{}
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recordingCollector struct {
	metrics.NopCollector
	reconciled []int
}

func (c *recordingCollector) RecordLikesReconciled(n int) {
	c.reconciled = append(c.reconciled, n)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestJob_Run_ExecutesReconcileQuery(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 0}}
	job := NewJob(mock, newTestLogger(&buf), nil)

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if mock.callCount() != 1 {
		t.Fatalf("ExecContext calls = %d, want 1", mock.callCount())
	}
	for _, want := range []string{"UPDATE recipes", "LEFT JOIN user_favs", "like_count <> f.cnt"} {
		if !strings.Contains(mock.query, want) {
			t.Errorf("クエリに %q が含まれていない: %s", want, mock.query)
		}
	}
	if len(mock.args) != 0 {
		t.Errorf("args = %v, want none", mock.args)
	}
}

func TestJob_Run_ReturnsAndRecordsRepairedCount(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 3}}
	mc := &recordingCollector{}
	job := NewJob(mock, newTestLogger(&buf), mc)

	repaired, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if repaired != 3 {
		t.Errorf("repaired = %d, want 3", repaired)
	}
	if len(mc.reconciled) != 1 || mc.reconciled[0] != 3 {
		t.Errorf("reconciled = %v, want [3]", mc.reconciled)
	}

	// 修復があった場合はWARNで記録する
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("ログがJSONではない: %v\n%s", err, buf.String())
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["repaired_count"] != float64(3) {
		t.Errorf("repaired_count = %v, want 3", entry["repaired_count"])
	}
}

func TestJob_Run_NothingToRepairLogsInfo(t *testing.T) {
	var buf bytes.Buffer
	job := NewJob(&mockExecutor{result: &fakeResult{}}, newTestLogger(&buf), nil)

	_, _ = job.Run(context.Background())

	if !strings.Contains(buf.String(), `"level":"INFO"`) {
		t.Errorf("ログにINFOが記録されていない: %s", buf.String())
	}
}

func TestJob_Run_ReturnsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{err: sql.ErrConnDone}
	job := NewJob(mock, newTestLogger(&buf), nil)

	_, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時にエラーを返すべき")
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("err = %v, want wrapping sql.ErrConnDone", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラーログが記録されていない: %s", buf.String())
	}
}

func TestJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewJob(mock, slog.New(slog.NewJSONHandler(&lockedWriter{w: &buf}, nil)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mock.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mock.callCount() != 1 {
		t.Errorf("calls = %d, want 1 (起動直後の実行)", mock.callCount())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start がキャンセル後に終了しなかった")
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

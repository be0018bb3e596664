package geocode

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hitoshi/localbite/internal/model"
)

func testBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:             "test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Hour,
		FailureThreshold: 3,
	}
}

func TestBreakerGeocoder_OpensAfterConsecutiveFailures(t *testing.T) {
	mock := &mockGeocoder{geocodeFn: func(ctx context.Context, query string) (model.Point, error) {
		return model.Point{}, &StatusError{StatusCode: 503}
	}}

	var buf bytes.Buffer
	g := NewBreakerGeocoder(mock, testBreakerSettings(), newTestLogger(&buf))

	for i := 0; i < 3; i++ {
		if _, err := g.Geocode(context.Background(), "x"); err == nil {
			t.Fatalf("call %d: エラーを返すべき", i)
		}
	}
	if g.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", g.State())
	}

	// 開状態では下位のGeocoderを呼ばない
	_, err := g.Geocode(context.Background(), "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if mock.calls != 3 {
		t.Errorf("calls = %d, want 3", mock.calls)
	}
}

// 一致なしはプロバイダの障害として数えない
func TestBreakerGeocoder_NoResultDoesNotTrip(t *testing.T) {
	mock := &mockGeocoder{geocodeFn: func(ctx context.Context, query string) (model.Point, error) {
		return model.Point{}, ErrNoResult
	}}

	var buf bytes.Buffer
	g := NewBreakerGeocoder(mock, testBreakerSettings(), newTestLogger(&buf))

	for i := 0; i < 10; i++ {
		_, err := g.Geocode(context.Background(), "x")
		if !errors.Is(err, ErrNoResult) {
			t.Fatalf("err = %v, want ErrNoResult", err)
		}
	}
	if g.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed", g.State())
	}
}

func TestBreakerGeocoder_PassesThroughSuccess(t *testing.T) {
	mock := &mockGeocoder{geocodeFn: func(ctx context.Context, query string) (model.Point, error) {
		return model.Point{Lng: 10, Lat: 20}, nil
	}}

	var buf bytes.Buffer
	g := NewBreakerGeocoder(mock, DefaultBreakerSettings(), newTestLogger(&buf))

	p, err := g.Geocode(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lng != 10 || p.Lat != 20 {
		t.Errorf("point = %+v", p)
	}
}

package tracex

import (
	"context"
	"testing"
)

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "t-1")
	if got, ok := TraceIDFrom(ctx); !ok || got != "t-1" {
		t.Fatalf("期望 TraceIDFrom round-trip 成功，got=%q ok=%v", got, ok)
	}
}

func TestEnsureTraceID_不覆盖已有值(t *testing.T) {
	ctx := EnsureTraceID(WithTraceID(context.Background(), "keep"))
	if got, _ := TraceIDFrom(ctx); got != "keep" {
		t.Fatalf("期望保留已有 trace_id, got=%q", got)
	}
	fresh := EnsureTraceID(context.Background())
	if got, ok := TraceIDFrom(fresh); !ok || len(got) != 32 {
		t.Fatalf("期望生成 32 位 hex trace_id, got=%q", got)
	}
	if len(NewSpanID()) != 16 {
		t.Fatalf("期望 span_id 为 16 位 hex")
	}
}

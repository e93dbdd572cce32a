package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func useTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
	return exp
}

func TestCorrelationID_NoSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestStartSwapSpan_Attributes(t *testing.T) {
	exp := useTracer(t)

	tests := []struct {
		name       string
		kind, skin string
		extra      []attribute.KeyValue
		want       map[attribute.Key]string
	}{
		{
			name:  "kind and skin",
			kind:  "player",
			skin:  "2",
			extra: []attribute.KeyValue{AttrConfig.String("default")},
			want:  map[attribute.Key]string{AttrKind: "player", AttrSkin: "2", AttrConfig: "default"},
		},
		{
			name: "skin only",
			skin: "default",
			want: map[attribute.Key]string{AttrSkin: "default"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp.Reset()
			ctx, span := StartSwapSpan(context.Background(), "bank.build", tt.kind, tt.skin, tt.extra...)
			if CorrelationID(ctx) == "" {
				t.Error("span has no trace ID")
			}
			span.End()

			spans := exp.GetSpans()
			if len(spans) != 1 || spans[0].Name != "bank.build" {
				t.Fatalf("spans = %v", spans)
			}
			got := map[attribute.Key]string{}
			for _, a := range spans[0].Attributes {
				got[a.Key] = a.Value.AsString()
			}
			if len(got) != len(tt.want) {
				t.Errorf("attributes = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestLogger(t *testing.T) {
	useTracer(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	Logger(context.Background()).Info("no span")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log without span has trace_id: %s", buf.String())
	}

	buf.Reset()
	ctx, span := StartSpan(context.Background(), "controller.apply_skin")
	defer span.End()
	Logger(ctx).Info("in span")
	out := buf.String()
	if !strings.Contains(out, "trace_id="+CorrelationID(ctx)) || !strings.Contains(out, "span_id=") {
		t.Errorf("log output missing span IDs: %s", out)
	}
}

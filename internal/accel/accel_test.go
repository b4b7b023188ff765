package accel

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

type countingCounter struct {
	n     int
	err   error
	calls int
}

func (c *countingCounter) Count(context.Context) (int, error) {
	c.calls++
	return c.n, c.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		explicit   bool
		preference bool
		counter    *countingCounter
		want       bool
		wantCalls  int
	}{
		{"explicit true ignores missing devices", true, true, &countingCounter{n: 0}, true, 0},
		{"explicit false ignores devices", true, false, &countingCounter{n: 4}, false, 0},
		{"no devices forces false", false, true, &countingCounter{n: 0}, false, 1},
		{"query failure forces false", false, true, &countingCounter{n: 2, err: errors.New("no driver")}, false, 1},
		{"devices keep the default", false, true, &countingCounter{n: 1}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(context.Background(), tt.explicit, tt.preference, tt.counter, quietLogger())
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, tt.counter.calls)
		})
	}
}

func TestDecide_NilCounter(t *testing.T) {
	assert.False(t, Decide(context.Background(), false, true, nil, quietLogger()))
	assert.True(t, Decide(context.Background(), true, true, nil, nil))
}

func TestDecide_LogsFallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	Decide(context.Background(), false, true, DeviceCounterFunc(func(context.Context) (int, error) {
		return 0, nil
	}), logger)
	assert.Contains(t, buf.String(), "use_gpu=false")
}

func TestDecide_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("explicit preference is returned unchanged", prop.ForAll(
		func(pref bool, n int, fail bool) bool {
			c := &countingCounter{n: n}
			if fail {
				c.err = errors.New("fail")
			}
			return Decide(context.Background(), true, pref, c, quietLogger()) == pref
		},
		gen.Bool(), gen.IntRange(0, 8), gen.Bool(),
	))

	properties.Property("zero devices always yield false when not explicit", prop.ForAll(
		func(pref bool) bool {
			return !Decide(context.Background(), false, pref, &countingCounter{}, quietLogger())
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}

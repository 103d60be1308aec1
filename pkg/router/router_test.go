package router

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferroclaw/ferroclaw/pkg/agent"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

type fakeRunner struct {
	name  string
	reply string
	calls int
}

func (f *fakeRunner) Name() string { return f.name }

func (f *fakeRunner) Run(ctx context.Context, params agent.RunParams) (string, error) {
	f.calls++
	return f.reply, nil
}

func newTestRouter(t *testing.T, routes ...Route) *Router {
	t.Helper()
	r := New(testLogger())
	for _, route := range routes {
		require.NoError(t, r.Register(route))
	}
	return r
}

func TestRegister(t *testing.T) {
	t.Run("should default the route name to the runner name", func(t *testing.T) {
		r := newTestRouter(t, Route{Runner: &fakeRunner{name: "coder"}})
		assert.Equal(t, []string{"coder"}, r.Names())
	})

	t.Run("should reject duplicate names", func(t *testing.T) {
		r := newTestRouter(t, Route{Runner: &fakeRunner{name: "coder"}})
		err := r.Register(Route{Runner: &fakeRunner{name: "coder"}})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("should reject a second default route", func(t *testing.T) {
		r := newTestRouter(t, Route{Runner: &fakeRunner{name: "a"}, Default: true})
		err := r.Register(Route{Runner: &fakeRunner{name: "b"}, Default: true})
		assert.Error(t, err)
	})

	t.Run("should reject a nil runner", func(t *testing.T) {
		r := New(testLogger())
		assert.Error(t, r.Register(Route{Name: "ghost"}))
	})
}

func TestResolve(t *testing.T) {
	coder := Route{Runner: &fakeRunner{name: "coder"}, Keywords: []string{"code", "bug", "compile"}}
	writer := Route{Runner: &fakeRunner{name: "writer"}, Keywords: []string{"essay", "draft"}, Skills: []string{"writing"}}
	general := Route{Runner: &fakeRunner{name: "general"}, Default: true}

	t.Run("should honor an explicit target above all other rules", func(t *testing.T) {
		r := newTestRouter(t, coder, writer, general)
		route, err := r.Resolve("writer", "fix this bug in my code", nil)
		require.NoError(t, err)
		assert.Equal(t, "writer", route.Name)
	})

	t.Run("should fail on an unknown explicit target", func(t *testing.T) {
		r := newTestRouter(t, coder, general)
		_, err := r.Resolve("ghost", "hello", nil)
		assert.ErrorIs(t, err, ErrUnknownTarget)
	})

	t.Run("should prefer an active skill over keyword score", func(t *testing.T) {
		r := newTestRouter(t, coder, writer, general)
		route, err := r.Resolve("", "fix this bug in my code", []string{"writing"})
		require.NoError(t, err)
		assert.Equal(t, "writer", route.Name)
	})

	t.Run("should pick the highest keyword score", func(t *testing.T) {
		r := newTestRouter(t, coder, writer, general)
		route, err := r.Resolve("", "my code has a bug and will not compile", nil)
		require.NoError(t, err)
		assert.Equal(t, "coder", route.Name)
	})

	t.Run("should match keywords case-insensitively", func(t *testing.T) {
		r := newTestRouter(t, coder, general)
		route, err := r.Resolve("", "This BUG is annoying", nil)
		require.NoError(t, err)
		assert.Equal(t, "coder", route.Name)
	})

	t.Run("should break keyword ties by registration order", func(t *testing.T) {
		first := Route{Runner: &fakeRunner{name: "first"}, Keywords: []string{"report"}}
		second := Route{Runner: &fakeRunner{name: "second"}, Keywords: []string{"report"}}
		r := newTestRouter(t, first, second)

		route, err := r.Resolve("", "write a report", nil)
		require.NoError(t, err)
		assert.Equal(t, "first", route.Name)
	})

	t.Run("should fall back to the default route", func(t *testing.T) {
		r := newTestRouter(t, coder, general)
		route, err := r.Resolve("", "tell me a joke", nil)
		require.NoError(t, err)
		assert.Equal(t, "general", route.Name)
	})

	t.Run("should fail without any matching rule or default", func(t *testing.T) {
		r := newTestRouter(t, coder)
		_, err := r.Resolve("", "tell me a joke", nil)
		assert.ErrorIs(t, err, ErrNoRoute)
	})

	t.Run("should fail with no routes registered", func(t *testing.T) {
		r := New(testLogger())
		_, err := r.Resolve("", "anything", nil)
		assert.ErrorIs(t, err, ErrNoRoute)
	})
}

func TestDispatch(t *testing.T) {
	t.Run("should run the resolved sub-agent", func(t *testing.T) {
		runner := &fakeRunner{name: "general", reply: "hello there"}
		r := newTestRouter(t, Route{Runner: runner, Default: true})

		got, err := r.Dispatch(context.Background(), "", nil, agent.RunParams{
			SessionID: "s",
			UserText:  "hi",
		})
		require.NoError(t, err)
		assert.Equal(t, "hello there", got)
		assert.Equal(t, 1, runner.calls)
	})

	t.Run("should propagate resolution failures", func(t *testing.T) {
		r := New(testLogger())
		_, err := r.Dispatch(context.Background(), "", nil, agent.RunParams{SessionID: "s", UserText: "hi"})
		assert.ErrorIs(t, err, ErrNoRoute)
	})
}

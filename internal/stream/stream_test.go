package stream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamrewrite/htmlrewriter/internal/dispatch"
	"github.com/streamrewrite/htmlrewriter/internal/limiter"
	"github.com/streamrewrite/htmlrewriter/internal/rewrite"
	"github.com/streamrewrite/htmlrewriter/internal/selector"
)

// rewriteAt runs doc through a fresh pipeline, writing it in two pieces
// split at byte offset split, and returns the full output.
func rewriteAt(t *testing.T, selectors []string, sets []dispatch.HandlerSet, doc string, split int) string {
	t.Helper()
	prog, err := selector.Compile(selectors)
	require.NoError(t, err)
	disp := dispatch.New()
	for _, s := range sets {
		disp.Register(s)
	}
	lim := limiter.New(1 << 20)
	var out []byte
	ctrl := rewrite.New(prog, disp, lim, false, func(p []byte) error { out = append(out, p...); return nil })
	ts := New(ctrl, lim)

	require.NoError(t, ts.Write([]byte(doc[:split])))
	require.NoError(t, ts.Write([]byte(doc[split:])))
	require.NoError(t, ts.End())
	return string(out)
}

// TestTransformStream_ChunkInvariance checks that splitting the input
// across two Write calls at every possible byte offset produces the same
// output as a single write, for a document that exercises tags, text,
// comments, and a raw-text element.
func TestTransformStream_ChunkInvariance(t *testing.T) {
	const doc = `<!DOCTYPE html><div class="x" id="y">Hello <b>world</b>!</div><!--c--><script>a<b</script>`

	sets := []dispatch.HandlerSet{{Element: func(e dispatch.ElementHandle) error {
		e.SetAttribute("data-seen", "1")
		return nil
	}}}

	want := rewriteAt(t, []string{"div"}, sets, doc, len(doc))

	for split := 1; split < len(doc); split++ {
		got := rewriteAt(t, []string{"div"}, sets, doc, split)
		require.Equalf(t, want, got, "split at byte %d produced different output", split)
	}
}

func TestTransformStream_FlushesIncrementallyWithoutBackwardPseudo(t *testing.T) {
	prog, err := selector.Compile([]string{"p"})
	require.NoError(t, err)
	disp := dispatch.New()
	disp.Register(dispatch.HandlerSet{})
	lim := limiter.New(1 << 20)

	var out []byte
	ctrl := rewrite.New(prog, disp, lim, false, func(p []byte) error { out = append(out, p...); return nil })
	ts := New(ctrl, lim)

	require.NoError(t, ts.Write([]byte("<p>one</p>")))
	// The first paragraph closed and returned the stack to depth 0, so
	// it must already be flushed before End is ever called.
	require.Equal(t, "<p>one</p>", string(out))

	require.NoError(t, ts.End())
	require.Equal(t, "<p>one</p>", string(out))
}

func TestTransformStream_MemoryLimitPropagatesFromBuffer(t *testing.T) {
	prog, err := selector.Compile(nil)
	require.NoError(t, err)
	disp := dispatch.New()
	lim := limiter.New(2)
	ctrl := rewrite.New(prog, disp, lim, false, func(p []byte) error { return nil })
	ts := New(ctrl, lim)

	err = ts.Write([]byte("way too much input"))
	require.Error(t, err)
}

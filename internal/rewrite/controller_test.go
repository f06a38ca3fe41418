package rewrite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamrewrite/htmlrewriter/internal/dispatch"
	"github.com/streamrewrite/htmlrewriter/internal/limiter"
	"github.com/streamrewrite/htmlrewriter/internal/selector"
	"github.com/streamrewrite/htmlrewriter/internal/token"
)

// run drives a Controller over html in a single write plus End, the way
// stream.TransformStream does, and returns the concatenated output.
func run(t *testing.T, selectors []string, sets []dispatch.HandlerSet, html string) string {
	t.Helper()
	prog, err := selector.Compile(selectors)
	require.NoError(t, err)

	disp := dispatch.New()
	for _, s := range sets {
		disp.Register(s)
	}

	lim := limiter.New(1 << 20)
	var out []byte
	ctrl := New(prog, disp, lim, false, func(p []byte) error {
		out = append(out, p...)
		return nil
	})

	data := []byte(html)
	for {
		ev, n, err := ctrl.Tok.Next(data, true)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		if ev.Kind != token.NoEvent {
			require.NoError(t, ctrl.HandleEvent(ev))
		}
		data = data[n:]
		require.NoError(t, ctrl.Flush())
	}
	require.NoError(t, ctrl.End())
	return string(out)
}

func TestController_PassthroughWithNoSelectors(t *testing.T) {
	got := run(t, nil, nil, `<div class="a">hi <b>there</b></div>`)
	require.Equal(t, `<div class="a">hi <b>there</b></div>`, got)
}

func TestController_SetAttributeOnMatchedElement(t *testing.T) {
	sets := []dispatch.HandlerSet{{Element: func(e dispatch.ElementHandle) error {
		e.SetAttribute("data-tagged", "1")
		return nil
	}}}
	got := run(t, []string{"a"}, sets, `<a href="/x">go</a>`)
	require.Equal(t, `<a href="/x" data-tagged="1">go</a>`, got)
}

func TestController_RemoveElementDropsTagAndChildren(t *testing.T) {
	sets := []dispatch.HandlerSet{{Element: func(e dispatch.ElementHandle) error {
		e.Remove()
		return nil
	}}}
	got := run(t, []string{"script"}, sets, `before<script>evil()</script>after`)
	require.Equal(t, `beforeafter`, got)
}

func TestController_RemoveAndKeepContentDropsOnlyTag(t *testing.T) {
	sets := []dispatch.HandlerSet{{Element: func(e dispatch.ElementHandle) error {
		e.RemoveAndKeepContent()
		return nil
	}}}
	got := run(t, []string{"span"}, sets, `<p><span>kept</span></p>`)
	require.Equal(t, `<p>kept</p>`, got)
}

func TestController_ReplaceElementSubstitutesMarkup(t *testing.T) {
	sets := []dispatch.HandlerSet{{Element: func(e dispatch.ElementHandle) error {
		e.Replace("<b>new</b>", dispatch.HTML)
		return nil
	}}}
	got := run(t, []string{"i"}, sets, `<i>old</i>`)
	require.Equal(t, `<b>new</b>`, got)
}

func TestController_SetInnerContentReplacesChildren(t *testing.T) {
	sets := []dispatch.HandlerSet{{Element: func(e dispatch.ElementHandle) error {
		e.SetInnerContent("<em>swap</em>", dispatch.HTML)
		return nil
	}}}
	got := run(t, []string{"div"}, sets, `<div><p>old child</p></div>`)
	require.Equal(t, `<div><em>swap</em></div>`, got)
}

func TestController_BeforeAfterPrependAppend(t *testing.T) {
	sets := []dispatch.HandlerSet{{Element: func(e dispatch.ElementHandle) error {
		e.Before("B", dispatch.Text)
		e.After("A", dispatch.Text)
		e.Prepend("P", dispatch.Text)
		e.Append("G", dispatch.Text)
		return nil
	}}}
	got := run(t, []string{"p"}, sets, `<p>mid</p>`)
	require.Equal(t, `B<p>PmidG</p>A`, got)
}

func TestController_OnEndTagRename(t *testing.T) {
	sets := []dispatch.HandlerSet{{Element: func(e dispatch.ElementHandle) error {
		e.OnEndTag(func(et dispatch.EndTagHandle) error {
			et.SetName("section")
			return nil
		})
		return nil
	}}}
	got := run(t, []string{"div"}, sets, `<div>x</div>`)
	require.Equal(t, `<div>x</section>`, got)
}

func TestController_TextHandlerOnMatchedElement(t *testing.T) {
	var seen []string
	sets := []dispatch.HandlerSet{{Text: func(c dispatch.TextChunk) error {
		seen = append(seen, c.Text())
		return nil
	}}}
	got := run(t, []string{"p"}, sets, `<p>hello</p><span>skip</span>`)
	require.Equal(t, []string{"hello"}, seen)
	require.Equal(t, `<p>hello</p><span>skip</span>`, got)
}

func TestController_CommentHandlerCanRemove(t *testing.T) {
	sets := []dispatch.HandlerSet{{}}
	// Document-scope comment handler instead of a selector match.
	prog, err := selector.Compile([]string{"p"})
	require.NoError(t, err)
	disp := dispatch.New()
	disp.Register(sets[0])
	disp.RegisterDocument(nil, nil, func(c dispatch.CommentHandle) error {
		c.Remove()
		return nil
	})
	lim := limiter.New(1 << 20)
	var out []byte
	ctrl := New(prog, disp, lim, false, func(p []byte) error { out = append(out, p...); return nil })

	data := []byte(`<!--secret--><p>x</p>`)
	for {
		ev, n, err := ctrl.Tok.Next(data, true)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		if ev.Kind != token.NoEvent {
			require.NoError(t, ctrl.HandleEvent(ev))
		}
		data = data[n:]
	}
	require.NoError(t, ctrl.End())
	require.Equal(t, `<p>x</p>`, string(out))
}

func TestController_SelfClosingVoidElementHasNoSyntheticCloseTag(t *testing.T) {
	got := run(t, nil, nil, `before<img src="a.png"/>after`)
	require.Equal(t, `before<img src="a.png"/>after`, got)
}

func TestController_EagerModePreservesOriginalAttributesOnUnmatchedElement(t *testing.T) {
	// "li" tests nothing beyond a tag name, so the controller runs the
	// tokenizer in eager mode; an unrelated <div>'s attributes must still
	// survive to the output untouched.
	got := run(t, []string{"li"}, nil, `<div class="wrap" id="x">hi</div>`)
	require.Equal(t, `<div class="wrap" id="x">hi</div>`, got)
}

func TestController_EagerModeAppendsNewAttributeWithoutLosingOriginalOnes(t *testing.T) {
	sets := []dispatch.HandlerSet{{Element: func(e dispatch.ElementHandle) error {
		e.SetAttribute("data-last", "1")
		return nil
	}}}
	// "li + li" is tag-only (eager mode) and matches just the second <li>.
	got := run(t, []string{"li + li"}, sets, `<ul><li class="a">one</li><li class="b">two</li></ul>`)
	require.Equal(t, `<ul><li class="a">one</li><li class="b" data-last="1">two</li></ul>`, got)
}

func TestController_LastChildDispatchesAtParentClose(t *testing.T) {
	var tagged []string
	sets := []dispatch.HandlerSet{{Element: func(e dispatch.ElementHandle) error {
		tagged = append(tagged, e.TagName())
		e.SetAttribute("data-last", "1")
		return nil
	}}}
	got := run(t, []string{"li:last-child"}, sets, `<ul><li>one</li><li>two</li></ul>`)
	require.Equal(t, []string{"li"}, tagged)
	require.Equal(t, `<ul><li>one</li><li data-last="1">two</li></ul>`, got)
}

func TestController_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	sets := []dispatch.HandlerSet{{Element: func(e dispatch.ElementHandle) error { return boom }}}

	prog, err := selector.Compile([]string{"p"})
	require.NoError(t, err)
	disp := dispatch.New()
	disp.Register(sets[0])
	lim := limiter.New(1 << 20)
	ctrl := New(prog, disp, lim, false, func(p []byte) error { return nil })

	data := []byte(`<p>x</p>`)
	var handleErr error
	for {
		ev, n, err := ctrl.Tok.Next(data, true)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		if ev.Kind != token.NoEvent {
			if handleErr = ctrl.HandleEvent(ev); handleErr != nil {
				break
			}
		}
		data = data[n:]
	}
	require.Error(t, handleErr)
	require.ErrorIs(t, handleErr, boom)
}

func TestController_MemoryLimitExceeded(t *testing.T) {
	prog, err := selector.Compile(nil)
	require.NoError(t, err)
	disp := dispatch.New()
	lim := limiter.New(2) // too small for even one element name ("div" is 3 bytes)
	ctrl := New(prog, disp, lim, false, func(p []byte) error { return nil })

	data := []byte(`<div>x</div>`)
	var handleErr error
	for {
		ev, n, err := ctrl.Tok.Next(data, true)
		if err != nil {
			handleErr = err
			break
		}
		if n == 0 {
			break
		}
		if ev.Kind != token.NoEvent {
			if handleErr = ctrl.HandleEvent(ev); handleErr != nil {
				break
			}
		}
		data = data[n:]
	}
	require.Error(t, handleErr)
	var exceeded *limiter.ExceededError
	require.True(t, errors.As(handleErr, &exceeded))
}

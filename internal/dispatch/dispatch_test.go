package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubElement is a minimal ElementHandle that only needs to satisfy the
// interface for dispatch-ordering tests; its mutation methods are no-ops.
type stubElement struct{ tag string }

func (s *stubElement) TagName() string                       { return s.tag }
func (s *stubElement) SetTagName(string)                     {}
func (s *stubElement) Namespace() string                      { return "" }
func (s *stubElement) GetAttribute(string) (string, bool)     { return "", false }
func (s *stubElement) SetAttribute(string, string)            {}
func (s *stubElement) RemoveAttribute(string)                 {}
func (s *stubElement) Attributes() []AttrPair                 { return nil }
func (s *stubElement) Before(string, ContentType)              {}
func (s *stubElement) After(string, ContentType)               {}
func (s *stubElement) Prepend(string, ContentType)             {}
func (s *stubElement) Append(string, ContentType)              {}
func (s *stubElement) SetInnerContent(string, ContentType)     {}
func (s *stubElement) Replace(string, ContentType)             {}
func (s *stubElement) Remove()                                {}
func (s *stubElement) RemoveAndKeepContent()                   {}
func (s *stubElement) OnEndTag(func(EndTagHandle) error)       {}

type stubText struct{ text string }

func (s *stubText) Text() string                  { return s.text }
func (s *stubText) LastInTextNode() bool           { return true }
func (s *stubText) Before(string, ContentType)     {}
func (s *stubText) After(string, ContentType)      {}
func (s *stubText) Replace(string, ContentType)    {}
func (s *stubText) Remove()                        {}

type stubComment struct{ text string }

func (s *stubComment) Text() string               { return s.text }
func (s *stubComment) SetText(string)             {}
func (s *stubComment) Before(string, ContentType) {}
func (s *stubComment) After(string, ContentType)  {}
func (s *stubComment) Replace(string, ContentType) {}
func (s *stubComment) Remove()                    {}

type stubDoctype struct{ name string }

func (s *stubDoctype) Name() string                  { return s.name }
func (s *stubDoctype) PublicID() (string, bool)      { return "", false }
func (s *stubDoctype) SystemID() (string, bool)      { return "", false }

func TestDispatcher_RegisterReturnsSequentialLocators(t *testing.T) {
	d := New()
	require.Equal(t, 0, d.Register(HandlerSet{}))
	require.Equal(t, 1, d.Register(HandlerSet{}))
	require.Equal(t, 2, d.Register(HandlerSet{}))
}

func TestDispatcher_DispatchElementInvokesInLocatorOrder(t *testing.T) {
	d := New()
	var order []string
	d.Register(HandlerSet{Element: func(ElementHandle) error { order = append(order, "a"); return nil }})
	d.Register(HandlerSet{Element: func(ElementHandle) error { order = append(order, "b"); return nil }})
	d.Register(HandlerSet{Element: func(ElementHandle) error { order = append(order, "c"); return nil }})

	err := d.DispatchElement([]int{2, 0, 1}, &stubElement{tag: "div"})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, order)
}

func TestDispatcher_DispatchElementSkipsNilHandlers(t *testing.T) {
	d := New()
	called := false
	d.Register(HandlerSet{}) // no Element handler
	d.Register(HandlerSet{Element: func(ElementHandle) error { called = true; return nil }})

	err := d.DispatchElement([]int{0, 1}, &stubElement{tag: "div"})
	require.NoError(t, err)
	require.True(t, called)
}

func TestDispatcher_DispatchElementStopsAtFirstError(t *testing.T) {
	d := New()
	boom := errors.New("boom")
	var calledSecond bool
	d.Register(HandlerSet{Element: func(ElementHandle) error { return boom }})
	d.Register(HandlerSet{Element: func(ElementHandle) error { calledSecond = true; return nil }})

	err := d.DispatchElement([]int{0, 1}, &stubElement{tag: "div"})
	require.ErrorIs(t, err, boom)
	require.False(t, calledSecond)
}

func TestDispatcher_DispatchTextAndComment(t *testing.T) {
	d := New()
	var gotText, gotComment string
	d.Register(HandlerSet{
		Text:     func(c TextChunk) error { gotText = c.Text(); return nil },
		Comments: func(c CommentHandle) error { gotComment = c.Text(); return nil },
	})

	require.NoError(t, d.DispatchText([]int{0}, &stubText{text: "hi"}))
	require.Equal(t, "hi", gotText)

	require.NoError(t, d.DispatchComment([]int{0}, &stubComment{text: "note"}))
	require.Equal(t, "note", gotComment)
}

func TestDispatcher_DocumentScopeHandlersIgnoreNilRegistrations(t *testing.T) {
	d := New()
	var doctypeCalls, textCalls, commentCalls int
	d.RegisterDocument(nil, nil, nil)
	d.RegisterDocument(
		func(DoctypeHandle) error { doctypeCalls++; return nil },
		func(TextChunk) error { textCalls++; return nil },
		func(CommentHandle) error { commentCalls++; return nil },
	)

	require.NoError(t, d.DispatchDocumentDoctype(&stubDoctype{name: "html"}))
	require.NoError(t, d.DispatchDocumentText(&stubText{text: "x"}))
	require.NoError(t, d.DispatchDocumentComment(&stubComment{text: "y"}))

	require.Equal(t, 1, doctypeCalls)
	require.Equal(t, 1, textCalls)
	require.Equal(t, 1, commentCalls)
}

func TestDispatcher_DocumentHandlersRunInRegistrationOrder(t *testing.T) {
	d := New()
	var order []string
	d.RegisterDocument(nil, func(TextChunk) error { order = append(order, "first"); return nil }, nil)
	d.RegisterDocument(nil, func(TextChunk) error { order = append(order, "second"); return nil }, nil)

	require.NoError(t, d.DispatchDocumentText(&stubText{text: "x"}))
	require.Equal(t, []string{"first", "second"}, order)
}

package selector

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func elem(tag string, attrs map[string]string) *Element {
	classes := []string{}
	if c, ok := attrs["class"]; ok {
		classes = append(classes, c)
	}
	return &Element{
		Tag:     tag,
		ID:      attrs["id"],
		Classes: classes,
		AttrValue: func(name string) (string, bool) {
			v, ok := attrs[name]
			return v, ok
		},
	}
}

func locators(matches []Match) []int {
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m.Locator
	}
	sort.Ints(out)
	return out
}

func TestVM_DescendantCombinator(t *testing.T) {
	prog, err := Compile([]string{"div span"})
	require.NoError(t, err)
	vm := New(prog)

	// <div><section><span>
	require.Empty(t, vm.Push(elem("div", nil), 1))
	require.Empty(t, vm.Push(elem("section", nil), 2))
	m := vm.Push(elem("span", nil), 3)
	require.Equal(t, []int{0}, locators(m))
}

func TestVM_ChildCombinatorDoesNotSkipGenerations(t *testing.T) {
	prog, err := Compile([]string{"div > span"})
	require.NoError(t, err)
	vm := New(prog)

	require.Empty(t, vm.Push(elem("div", nil), 1))
	require.Empty(t, vm.Push(elem("section", nil), 2))
	m := vm.Push(elem("span", nil), 3) // span is a grandchild of div, not a child
	require.Empty(t, m)
}

func TestVM_ChildCombinatorMatchesDirectChild(t *testing.T) {
	prog, err := Compile([]string{"div > span"})
	require.NoError(t, err)
	vm := New(prog)

	require.Empty(t, vm.Push(elem("div", nil), 1))
	m := vm.Push(elem("span", nil), 2)
	require.Equal(t, []int{0}, locators(m))
}

func TestVM_AdjacentSiblingCombinator(t *testing.T) {
	prog, err := Compile([]string{"h1 + p"})
	require.NoError(t, err)
	vm := New(prog)

	require.Empty(t, vm.Push(elem("div", nil), 0)) // root wrapper
	require.Empty(t, vm.Push(elem("h1", nil), 1))
	require.Empty(t, vm.Pop()) // close h1

	m := vm.Push(elem("p", nil), 2)
	require.Equal(t, []int{0}, locators(m))

	require.Empty(t, vm.Pop()) // close first p

	// A second, non-adjacent p must not match.
	m = vm.Push(elem("p", nil), 3)
	require.Empty(t, m)
}

func TestVM_GeneralSiblingCombinator(t *testing.T) {
	prog, err := Compile([]string{"h1 ~ p"})
	require.NoError(t, err)
	vm := New(prog)

	require.Empty(t, vm.Push(elem("div", nil), 0))
	require.Empty(t, vm.Push(elem("h1", nil), 1))
	require.Empty(t, vm.Pop())

	require.Empty(t, vm.Push(elem("span", nil), 2))
	require.Empty(t, vm.Pop())

	m := vm.Push(elem("p", nil), 3)
	require.Equal(t, []int{0}, locators(m))
}

func TestVM_ClassAndAttributeCompound(t *testing.T) {
	prog, err := Compile([]string{`a.ext[href^="https://"]`})
	require.NoError(t, err)
	vm := New(prog)

	m := vm.Push(elem("a", map[string]string{"class": "ext", "href": "https://example.com"}), 1)
	require.Equal(t, []int{0}, locators(m))

	vm2 := New(prog)
	m2 := vm2.Push(elem("a", map[string]string{"class": "ext", "href": "http://example.com"}), 1)
	require.Empty(t, m2)
}

func TestVM_NthChildForward(t *testing.T) {
	prog, err := Compile([]string{"li:nth-child(2)"})
	require.NoError(t, err)
	vm := New(prog)

	require.Empty(t, vm.Push(elem("ul", nil), 0))
	require.Empty(t, vm.Push(elem("li", nil), 1))
	require.Empty(t, vm.Pop())
	m := vm.Push(elem("li", nil), 2)
	require.Equal(t, []int{0}, locators(m))
	require.Empty(t, vm.Pop())
	m = vm.Push(elem("li", nil), 3)
	require.Empty(t, m)
}

// TestVM_FromEndResolvesAtParentPop exercises :last-child, which can only
// be known once the parent's end tag is reached — the match must surface
// from the parent's Pop, carrying the ref of the matched *child*, not the
// parent.
func TestVM_FromEndResolvesAtParentPop(t *testing.T) {
	prog, err := Compile([]string{"li:last-child"})
	require.NoError(t, err)
	vm := New(prog)

	require.Empty(t, vm.Push(elem("ul", nil), "ul"))
	require.Empty(t, vm.Push(elem("li", nil), "li-1"))
	require.Empty(t, vm.Pop()) // closing li-1 resolves nothing yet

	require.Empty(t, vm.Push(elem("li", nil), "li-2"))
	require.Empty(t, vm.Pop()) // closing li-2 resolves nothing yet either

	matches := vm.Pop() // closing ul: li-2 was the last child
	require.Len(t, matches, 1)
	require.Equal(t, "li-2", matches[0].Ref)
}

func TestVM_OnlyChild(t *testing.T) {
	prog, err := Compile([]string{"li:only-child"})
	require.NoError(t, err)
	vm := New(prog)

	require.Empty(t, vm.Push(elem("ul", nil), "ul"))
	require.Empty(t, vm.Push(elem("li", nil), "solo"))
	require.Empty(t, vm.Pop())
	matches := vm.Pop()
	require.Len(t, matches, 1)
	require.Equal(t, "solo", matches[0].Ref)
}

func TestVM_OnlyChildDoesNotMatchWithSiblings(t *testing.T) {
	prog, err := Compile([]string{"li:only-child"})
	require.NoError(t, err)
	vm := New(prog)

	require.Empty(t, vm.Push(elem("ul", nil), "ul"))
	require.Empty(t, vm.Push(elem("li", nil), "li-1"))
	require.Empty(t, vm.Pop())
	require.Empty(t, vm.Push(elem("li", nil), "li-2"))
	require.Empty(t, vm.Pop())
	matches := vm.Pop()
	require.Empty(t, matches)
}

func TestVM_NotPseudoClass(t *testing.T) {
	prog, err := Compile([]string{"div:not(.hidden)"})
	require.NoError(t, err)

	vm := New(prog)
	m := vm.Push(elem("div", map[string]string{"class": "hidden"}), 1)
	require.Empty(t, m)

	vm2 := New(prog)
	m2 := vm2.Push(elem("div", map[string]string{"class": "visible"}), 1)
	require.Equal(t, []int{0}, locators(m2))
}

func TestVM_MultipleSelectorsGetDistinctLocators(t *testing.T) {
	prog, err := Compile([]string{"div", "span"})
	require.NoError(t, err)
	vm := New(prog)

	m := vm.Push(elem("div", nil), 1)
	require.Equal(t, []int{0}, locators(m))
}

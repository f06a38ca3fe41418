package selector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_Compound(t *testing.T) {
	cs, err := Parse(`div.card#main[data-role~="primary"]`, 0)
	require.NoError(t, err)
	require.Len(t, cs.Compounds, 1)

	c := cs.Compounds[0]
	require.Equal(t, "div", c.Tag)
	require.Equal(t, "main", c.ID)
	require.Equal(t, []string{"card"}, c.Classes)
	require.Len(t, c.Attrs, 1)
	require.Equal(t, AttrPredicate{Name: "data-role", Op: AttrIncludes, Value: "primary"}, c.Attrs[0])
}

func TestParse_Universal(t *testing.T) {
	cs, err := Parse(`*`, 0)
	require.NoError(t, err)
	require.True(t, cs.Compounds[0].Universal)
	require.Empty(t, cs.Compounds[0].Tag)
}

func TestParse_Combinators(t *testing.T) {
	tests := []struct {
		name string
		sel  string
		want []Combinator
	}{
		{"descendant", "div p", []Combinator{Descendant}},
		{"child", "div > p", []Combinator{Child}},
		{"adjacent", "h1 + p", []Combinator{AdjacentSibling}},
		{"general", "h1 ~ p", []Combinator{GeneralSibling}},
		{"mixed", "section > div p", []Combinator{Child, Descendant}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := Parse(tt.sel, 0)
			require.NoError(t, err)
			require.Equal(t, tt.want, cs.Combs)
			require.Len(t, cs.Compounds, len(tt.want)+1)
		})
	}
}

func TestParse_CombinatorInsideBracketsIsNotASplit(t *testing.T) {
	cs, err := Parse(`a[href~="x y"]`, 0)
	require.NoError(t, err)
	require.Len(t, cs.Compounds, 1)
	require.Equal(t, "x y", cs.Compounds[0].Attrs[0].Value)
}

func TestParse_AttrOperators(t *testing.T) {
	tests := []struct {
		sel  string
		op   AttrOp
		name string
		val  string
	}{
		{`[href]`, AttrPresent, "href", ""},
		{`[href="x"]`, AttrEquals, "href", "x"},
		{`[class~="x"]`, AttrIncludes, "class", "x"},
		{`[lang|="en"]`, AttrDashMatch, "lang", "en"},
		{`[href^="https"]`, AttrPrefix, "href", "https"},
		{`[href$=".png"]`, AttrSuffix, "href", ".png"},
		{`[href*="track"]`, AttrSubstring, "href", "track"},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			cs, err := Parse("a"+tt.sel, 0)
			require.NoError(t, err)
			require.Equal(t, tt.op, cs.Compounds[0].Attrs[0].Op)
			require.Equal(t, tt.name, cs.Compounds[0].Attrs[0].Name)
			require.Equal(t, tt.val, cs.Compounds[0].Attrs[0].Value)
		})
	}
}

func TestParse_NthChildFormulas(t *testing.T) {
	tests := []struct {
		arg     string
		wantA   int
		wantB   int
		indices []int // 1-based indices that should match
	}{
		{"odd", 2, 1, []int{1, 3, 5}},
		{"even", 2, 0, []int{2, 4, 6}},
		{"3", 0, 3, []int{3}},
		{"2n+1", 2, 1, []int{1, 3, 5}},
		{"2n", 2, 0, []int{2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			cs, err := Parse("li:nth-child("+tt.arg+")", 0)
			require.NoError(t, err)
			n := cs.Compounds[0].Nth[0]
			require.Equal(t, tt.wantA, n.A)
			require.Equal(t, tt.wantB, n.B)
			for _, idx := range tt.indices {
				require.Truef(t, n.Matches(idx), "expected index %d to match %s", idx, tt.arg)
			}
		})
	}
}

func TestParse_PseudoClasses(t *testing.T) {
	tests := []struct {
		name     string
		sel      string
		wantLast bool
	}{
		{"first-child", "p:first-child", false},
		{"last-child", "p:last-child", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := Parse(tt.sel, 0)
			require.NoError(t, err)
			require.Equal(t, tt.wantLast, cs.Compounds[0].RequiresTotal())
		})
	}
}

func TestParse_Not(t *testing.T) {
	cs, err := Parse(`div:not(.hidden)`, 0)
	require.NoError(t, err)
	require.Len(t, cs.Compounds[0].Not, 1)
	require.Equal(t, []string{"hidden"}, cs.Compounds[0].Not[0].Classes)
}

func TestParse_UnsupportedPseudoErrors(t *testing.T) {
	_, err := Parse(`a:hover`, 0)
	require.Error(t, err)
}

func TestParse_EmptySelectorErrors(t *testing.T) {
	_, err := Parse("   ", 0)
	require.Error(t, err)
}

func TestParse_UnterminatedBracketErrors(t *testing.T) {
	_, err := Parse(`a[href`, 0)
	require.Error(t, err)
}

func TestCompile_AssignsSequentialLocators(t *testing.T) {
	prog, err := Compile([]string{"div", "p.intro", "a[href]"})
	require.NoError(t, err)
	require.Len(t, prog.Selectors, 3)
	for i, cs := range prog.Selectors {
		require.Equal(t, i, cs.Locator)
	}
}

func TestCompile_PropagatesParseError(t *testing.T) {
	_, err := Compile([]string{"div", "[unterminated"})
	require.Error(t, err)
}

func TestProgram_NeedsAttributes(t *testing.T) {
	tests := []struct {
		name string
		sel  string
		want bool
	}{
		{"bare tag", "div", false},
		{"universal", "*", false},
		{"class", "div.card", true},
		{"id", "div#main", true},
		{"attr", "a[href]", true},
		{"nth-child", "li:nth-child(2)", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Compile([]string{tt.sel})
			require.NoError(t, err)
			require.Equal(t, tt.want, prog.NeedsAttributes())
		})
	}
}

func TestProgram_HasBackwardPseudo(t *testing.T) {
	prog, err := Compile([]string{"div", "li:last-child"})
	require.NoError(t, err)
	require.True(t, prog.HasBackwardPseudo())

	prog, err = Compile([]string{"div", "li:first-child"})
	require.NoError(t, err)
	require.False(t, prog.HasBackwardPseudo())
}

package main

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/streamrewrite/htmlrewriter"
)

// ruleEnv is the expr-lang evaluation environment exposed to a rule's
// "if" expression: Attr("name") reads the matched element's attribute,
// HasAttr("name") tests for its presence, Tag() returns its tag name.
// Compiled once per rule against the zero value (for type-checking) and
// evaluated once per matched element against a live value bound to that
// element.
type ruleEnv struct {
	El htmlrewriter.Element
}

func (e ruleEnv) Tag() string { return e.El.TagName() }

func (e ruleEnv) Attr(name string) string {
	v, _ := e.El.GetAttribute(name)
	return v
}

func (e ruleEnv) HasAttr(name string) bool {
	_, ok := e.El.GetAttribute(name)
	return ok
}

// action is one mutation an XML <rule> applies to its matched element.
type action func(el htmlrewriter.Element) error

// rule pairs a compiled selector string with its compiled "if" guard (if
// any) and the ordered actions to run when both the selector matches
// and the guard passes.
type rule struct {
	selector string
	cond     *vm.Program
	actions  []action
}

// loadRules parses an XML rule file at path into a slice of rules. Each
// top-level <rule selector="..."> element may carry an if="..." expr-lang
// boolean guard, and any number of action children in document order.
func loadRules(path string) ([]rule, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	root := doc.SelectElement("rules")
	if root == nil {
		return nil, fmt.Errorf("rules %s: missing <rules> root element", path)
	}

	var rules []rule
	for _, re := range root.SelectElements("rule") {
		sel := re.SelectAttrValue("selector", "")
		if sel == "" {
			return nil, fmt.Errorf("rules %s: <rule> missing selector attribute", path)
		}
		r := rule{selector: sel}

		if src := re.SelectAttrValue("if", ""); src != "" {
			prog, err := expr.Compile(src, expr.Env(ruleEnv{}), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("rules %s: selector %q: compile if expression: %w", path, sel, err)
			}
			r.cond = prog
		}

		for _, child := range re.ChildElements() {
			act, err := parseAction(child)
			if err != nil {
				return nil, fmt.Errorf("rules %s: selector %q: %w", path, sel, err)
			}
			r.actions = append(r.actions, act)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// parseAction converts one action XML element into an action closure.
func parseAction(el *etree.Element) (action, error) {
	markup := func() (string, htmlrewriter.ContentType) {
		if h := el.SelectAttrValue("html", ""); h != "" {
			return h, htmlrewriter.HTML
		}
		return el.SelectAttrValue("text", ""), htmlrewriter.Text
	}

	switch el.Tag {
	case "remove":
		return func(e htmlrewriter.Element) error { e.Remove(); return nil }, nil
	case "remove-keep-content":
		return func(e htmlrewriter.Element) error { e.RemoveAndKeepContent(); return nil }, nil
	case "set-attribute":
		name := el.SelectAttrValue("name", "")
		value := el.SelectAttrValue("value", "")
		if name == "" {
			return nil, fmt.Errorf("set-attribute missing name")
		}
		return func(e htmlrewriter.Element) error { e.SetAttribute(name, value); return nil }, nil
	case "remove-attribute":
		name := el.SelectAttrValue("name", "")
		if name == "" {
			return nil, fmt.Errorf("remove-attribute missing name")
		}
		return func(e htmlrewriter.Element) error { e.RemoveAttribute(name); return nil }, nil
	case "before":
		m, ct := markup()
		return func(e htmlrewriter.Element) error { e.Before(m, ct); return nil }, nil
	case "after":
		m, ct := markup()
		return func(e htmlrewriter.Element) error { e.After(m, ct); return nil }, nil
	case "prepend":
		m, ct := markup()
		return func(e htmlrewriter.Element) error { e.Prepend(m, ct); return nil }, nil
	case "append":
		m, ct := markup()
		return func(e htmlrewriter.Element) error { e.Append(m, ct); return nil }, nil
	case "replace":
		m, ct := markup()
		return func(e htmlrewriter.Element) error { e.Replace(m, ct); return nil }, nil
	case "set-inner":
		m, ct := markup()
		return func(e htmlrewriter.Element) error { e.SetInnerContent(m, ct); return nil }, nil
	default:
		return nil, fmt.Errorf("unknown rule action <%s>", el.Tag)
	}
}

// handlers builds the ElementContentHandlers slice dispatching each
// rule's actions in order, skipping a rule whose "if" guard evaluates
// false for the matched element.
func handlers(rules []rule) []htmlrewriter.ElementContentHandlers {
	out := make([]htmlrewriter.ElementContentHandlers, len(rules))
	for i, r := range rules {
		r := r
		out[i] = htmlrewriter.ElementContentHandlers{
			Selector: r.selector,
			Element: func(el htmlrewriter.Element) error {
				if r.cond != nil {
					ok, err := vm.Run(r.cond, ruleEnv{El: el})
					if err != nil {
						return fmt.Errorf("rule %q: evaluate if expression: %w", r.selector, err)
					}
					if !ok.(bool) {
						return nil
					}
				}
				for _, act := range r.actions {
					if err := act(el); err != nil {
						return err
					}
				}
				return nil
			},
		}
	}
	return out
}

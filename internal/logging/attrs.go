package logging

import (
	"log/slog"
	"slices"
)

// scopedAttr is an attribute together with the groups open when it was added.
type scopedAttr struct {
	groups []string
	attr   slog.Attr
}

// attrScope is the WithAttrs/WithGroup state shared by the buffer and
// journal handlers. Attributes added before a WithGroup keep their outer
// scope, as slog.TextHandler does.
type attrScope struct {
	attrs  []scopedAttr
	groups []string
}

func (s attrScope) with(attrs []slog.Attr) attrScope {
	next := attrScope{attrs: slices.Clip(s.attrs), groups: s.groups}
	for _, a := range attrs {
		next.attrs = append(next.attrs, scopedAttr{groups: s.groups, attr: a})
	}
	return next
}

func (s attrScope) group(name string) attrScope {
	if name == "" {
		return s
	}
	return attrScope{attrs: s.attrs, groups: append(slices.Clip(s.groups), name)}
}

// each calls fn for every leaf attribute of the scope and of r. Group values
// are expanded into their members, empty attributes are skipped.
func (s attrScope) each(r slog.Record, fn func(groups []string, a slog.Attr)) {
	for _, sa := range s.attrs {
		visit(sa.groups, sa.attr, fn)
	}
	r.Attrs(func(a slog.Attr) bool {
		visit(s.groups, a, fn)
		return true
	})
}

func visit(groups []string, a slog.Attr, fn func([]string, slog.Attr)) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() != slog.KindGroup {
		fn(groups, a)
		return
	}
	inner := groups
	if a.Key != "" {
		inner = append(slices.Clip(groups), a.Key)
	}
	for _, member := range a.Value.Group() {
		visit(inner, member, fn)
	}
}

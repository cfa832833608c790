package tasks

import (
	"sort"

	"golang.org/x/net/html"
)

// elem builds an element node with deterministic attribute order, since
// iterating a map directly would make rendered HTML byte-unstable across
// otherwise-identical builds.
func elem(tag string, attrs map[string]string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: attrs[k]})
	}
	return n
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// linkNode builds a <link> element, setting integrity/crossorigin only
// when present, matching the spec's "emitted integrity attribute" wording.
func linkNode(rel, href, integrity string) *html.Node {
	attrs := map[string]string{"rel": rel, "href": href}
	if integrity != "" {
		attrs["integrity"] = integrity
		attrs["crossorigin"] = "anonymous"
	}
	return elem("link", attrs)
}

func styleNode(css string) *html.Node {
	n := elem("style", nil)
	n.AppendChild(textNode(css))
	return n
}

func scriptNodeSrc(src, scriptType, integrity string) *html.Node {
	attrs := map[string]string{"src": src}
	if scriptType != "" {
		attrs["type"] = scriptType
	}
	if integrity != "" {
		attrs["integrity"] = integrity
		attrs["crossorigin"] = "anonymous"
	}
	return elem("script", attrs)
}

func scriptNodeInline(body, scriptType string) *html.Node {
	attrs := map[string]string{}
	if scriptType != "" {
		attrs["type"] = scriptType
	}
	n := elem("script", attrs)
	n.AppendChild(textNode(body))
	return n
}

package pipeline

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
)

// anchorCommentPrefix marks the sentinel comment nodes the rewriter leaves
// in the skeleton in place of each extracted descriptor. Its payload is
// the InsertionAnchor encoded as a decimal integer.
const anchorCommentPrefix = "trunk-anchor:"

// applyPatches walks the skeleton, replaces each anchor comment with its
// task's patch nodes (in document order, which is already guaranteed by
// the DOM walk — the explicit SourceOrder sort in Run exists only to
// order HeadInject/BodyInject nodes that have no anchor of their own),
// and renders the final document to bytes.
func applyPatches(skeleton *html.Node, outcomes []taskOutcome) ([]byte, error) {
	byAnchor := make(map[InsertionAnchor]*HTMLPatch, len(outcomes))
	var headInjects, bodyInjects []*html.Node
	for _, o := range outcomes {
		p := &o.output.Patch
		byAnchor[p.Anchor] = p
		headInjects = append(headInjects, p.HeadInject...)
		bodyInjects = append(bodyInjects, p.BodyInject...)
	}

	var head, body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "head":
				head = n
			case "body":
				body = n
			}
		}
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if c.Type == html.CommentNode {
				if anchor, ok := parseAnchorComment(c.Data); ok {
					if patch, found := byAnchor[anchor]; found {
						for _, node := range patch.Nodes {
							n.InsertBefore(node, c)
						}
						n.RemoveChild(c)
					}
				}
			} else {
				walk(c)
			}
			c = next
		}
	}
	walk(skeleton)

	if head != nil {
		for _, node := range headInjects {
			head.AppendChild(node)
		}
	}
	if body != nil {
		for _, node := range bodyInjects {
			body.AppendChild(node)
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, skeleton); err != nil {
		return nil, fmt.Errorf("rendering final html: %w", err)
	}
	return buf.Bytes(), nil
}

func parseAnchorComment(data string) (InsertionAnchor, bool) {
	if len(data) <= len(anchorCommentPrefix) || data[:len(anchorCommentPrefix)] != anchorCommentPrefix {
		return 0, false
	}
	var anchor uint64
	if _, err := fmt.Sscanf(data[len(anchorCommentPrefix):], "%d", &anchor); err != nil {
		return 0, false
	}
	return InsertionAnchor(anchor), true
}

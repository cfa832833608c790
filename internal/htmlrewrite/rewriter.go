// Package htmlrewrite parses the entry HTML, extracts data-trunk link and
// script descriptors into a stripped skeleton plus a list of
// pipeline.LinkDescriptor values, and later splices each task's HTML patch
// back into the position it was extracted from.
package htmlrewrite

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

// recognizedRel is the set of `rel` values the rewriter treats as
// pipeline-bearing; anything else on a data-trunk link is a
// descriptor-invalid error.
var recognizedRel = map[string]pipeline.DescriptorKind{
	"rust":      pipeline.KindRust,
	"sass":      pipeline.KindSass,
	"scss":      pipeline.KindSass,
	"tailwind":  pipeline.KindTailwind,
	"css":       pipeline.KindCSS,
	"icon":      pipeline.KindIcon,
	"inline":    pipeline.KindInline,
	"copy-file": pipeline.KindCopyFile,
	"copy-dir":  pipeline.KindCopyDir,
}

// ExtractResult is the outcome of parsing the entry HTML.
type ExtractResult struct {
	Skeleton    *html.Node
	Descriptors []*pipeline.LinkDescriptor
	// Warnings holds non-fatal source-missing notices: a referenced
	// href/src that does not exist on disk and is not an absolute URL.
	Warnings []string
}

// Rewriter parses and rewrites an entry HTML document.
type Rewriter struct {
	// SourceDir roots relative hrefs for existence checks.
	SourceDir string
	PublicURL string
}

// New constructs a Rewriter rooted at sourceDir.
func New(sourceDir, publicURL string) *Rewriter {
	return &Rewriter{SourceDir: sourceDir, PublicURL: publicURL}
}

// Parse reads and parses the entry HTML, extracting descriptors and
// leaving anchor comments in their place.
func (rw *Rewriter) Parse(r io.Reader) (*ExtractResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("html-parse: %w", err)
	}

	var descriptors []*pipeline.LinkDescriptor
	var warnings []string
	var nextAnchor pipeline.InsertionAnchor
	var mainCount int
	var firstErr error
	order := 0

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			switch {
			case firstErr != nil:
				// stop transforming once a descriptor-invalid error has
				// been seen; the walk still needs to finish so `next`
				// pointers stay valid, but nothing further is extracted.
			case c.Type == html.ElementNode && hasAttr(c, "data-trunk"):
				d, warn, err := rw.extract(c, order)
				if err != nil {
					firstErr = err
					break
				}
				if d != nil {
					nextAnchor++
					d.Anchor = nextAnchor
					descriptors = append(descriptors, d)
					if d.Kind == pipeline.KindRust && d.BinType == pipeline.RustTypeMain {
						mainCount++
					}
					order++

					anchor := &html.Node{
						Type: html.CommentNode,
						Data: anchorCommentPrefix + anchorID(nextAnchor),
					}
					n.InsertBefore(anchor, c)
					n.RemoveChild(c)
				}
				if warn != "" {
					warnings = append(warnings, warn)
				}
			case c.Type == html.ElementNode && c.DataAtom == atom.Base && hasAttr(c, "data-trunk-public-url"):
				setAttr(c, "href", rw.PublicURL)
			default:
				walk(c)
			}
			c = next
		}
	}
	walk(doc)

	if firstErr != nil {
		return nil, firstErr
	}
	if mainCount > 1 {
		return nil, &pipeline.DescriptorError{Reason: "more than one rust link with data-type=main"}
	}

	return &ExtractResult{Skeleton: doc, Descriptors: descriptors, Warnings: warnings}, nil
}

// anchorCommentPrefix must match pipeline.anchorCommentPrefix; duplicated
// here (rather than exported from pipeline) to keep the wire format
// private to the two packages that need it.
const anchorCommentPrefix = "trunk-anchor:"

// ParseFile is a convenience wrapper around Parse for the common case of
// reading the entry HTML from disk.
func (rw *Rewriter) ParseFile(path string) (*ExtractResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("html-parse: opening %s: %w", path, err)
	}
	defer f.Close()
	return rw.Parse(f)
}

func (rw *Rewriter) extract(n *html.Node, order int) (*pipeline.LinkDescriptor, string, error) {
	switch n.DataAtom {
	case atom.Link:
		return rw.extractLink(n, order)
	case atom.Script:
		return rw.extractScript(n, order)
	default:
		return nil, "", &pipeline.DescriptorError{Reason: fmt.Sprintf("data-trunk on unsupported element <%s>", n.Data)}
	}
}

func (rw *Rewriter) extractLink(n *html.Node, order int) (*pipeline.LinkDescriptor, string, error) {
	rel := attr(n, "rel")
	kind, ok := recognizedRel[rel]
	if !ok {
		return nil, "", &pipeline.DescriptorError{Reason: fmt.Sprintf("unrecognized rel=%q on data-trunk link", rel)}
	}

	href := attr(n, "href")
	d := &pipeline.LinkDescriptor{
		Kind:        kind,
		SourceOrder: order,
		Href:        href,
		TargetPath:  attr(n, "data-target-path"),
		TargetName:  attr(n, "data-target-name"),
		Integrity:   pipeline.IntegrityAlgorithm(attr(n, "data-integrity")),
		NoMinify:    hasAttr(n, "data-no-minify"),
		Inline:      hasAttr(n, "data-inline"),
		ConfigPath:  attr(n, "data-config"),
	}

	if kind == pipeline.KindRust {
		d.BinType = pipeline.RustBinaryType(attrOr(n, "data-type", string(pipeline.RustTypeMain)))
		d.BinName = attr(n, "data-bin")
		d.CargoFeatures = splitCSV(attr(n, "data-cargo-features"))
		d.CargoNoDefaultFeatures = hasAttr(n, "data-cargo-no-default-features")
		d.CargoAllFeatures = hasAttr(n, "data-cargo-all-features")
		d.CargoProfile = attr(n, "data-cargo-profile")
		d.WasmOptLevel = attr(n, "data-wasm-opt")
		d.WasmOptParams = splitCSV(attr(n, "data-wasm-opt-params"))
		d.KeepDebug = hasAttr(n, "data-keep-debug")
		d.NoDemangle = hasAttr(n, "data-no-demangle")
		d.ReferenceTypes = hasAttr(n, "data-reference-types")
		d.WeakRefs = hasAttr(n, "data-weak-refs")
		d.TypeScript = hasAttr(n, "data-typescript")
		d.BindgenTarget = attr(n, "data-bindgen-target")
		d.LoaderShim = hasAttr(n, "data-loader-shim")
		d.CrossOrigin = attr(n, "data-cross-origin")
		d.WasmNoImport = hasAttr(n, "data-wasm-no-import")
		d.WasmImportName = attr(n, "data-wasm-import-name")
		d.Initializer = attr(n, "data-initializer")
	}

	if err := d.Validate(); err != nil {
		return nil, "", err
	}

	warn := rw.checkSourceExists(href)
	return d, warn, nil
}

func (rw *Rewriter) extractScript(n *html.Node, order int) (*pipeline.LinkDescriptor, string, error) {
	src := attr(n, "src")
	d := &pipeline.LinkDescriptor{
		Kind:        pipeline.KindScript,
		SourceOrder: order,
		Href:        src,
		TargetPath:  attr(n, "data-target-path"),
		TargetName:  attr(n, "data-target-name"),
		Integrity:   pipeline.IntegrityAlgorithm(attr(n, "data-integrity")),
		NoMinify:    hasAttr(n, "data-no-minify"),
		InlineType:  attr(n, "type"),
	}
	if err := d.Validate(); err != nil {
		return nil, "", err
	}
	warn := rw.checkSourceExists(src)
	return d, warn, nil
}

// checkSourceExists implements the rewriter's warning (not error) policy
// for a missing href/src that is not an absolute URL.
func (rw *Rewriter) checkSourceExists(ref string) string {
	if ref == "" || isAbsoluteURL(ref) {
		return ""
	}
	p := ref
	if !filepath.IsAbs(p) {
		p = filepath.Join(rw.SourceDir, p)
	}
	if _, err := os.Stat(p); err != nil {
		return fmt.Sprintf("source-missing: %s", ref)
	}
	return ""
}

func isAbsoluteURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "//")
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func attrOr(n *html.Node, key, def string) string {
	if v := attr(n, key); v != "" {
		return v
	}
	return def
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// anchorID renders an InsertionAnchor for embedding in a comment node; kept
// separate from strconv.Itoa call sites so the encoding only lives here
// and in pipeline.parseAnchorComment.
func anchorID(a pipeline.InsertionAnchor) string {
	return strconv.FormatUint(uint64(a), 10)
}

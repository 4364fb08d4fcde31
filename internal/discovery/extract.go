// Package discovery walks platform listings and yields the content identifiers they contain.
package discovery

import (
	"iter"

	"github.com/amaumene/geowatch/internal/models"
	"github.com/tidwall/gjson"
)

// DefaultMaxDepth bounds the nesting the walk descends into
const DefaultMaxDepth = 32

// markerKeys are the fields platforms use to tag the kind of a node, in lookup order
var markerKeys = []string{"type", "media_type", "content_type", "kind"}

// Candidate is one identifier found in a listing
type Candidate struct {
	Slug string
	Kind models.ContentKind
}

type options struct {
	maxDepth int
}

// Option configures Extract
type Option func(*options)

// WithMaxDepth overrides the recursion cap. Values below 1 keep the default.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth > 0 {
			o.maxDepth = depth
		}
	}
}

// Extract returns the candidates of a listing document in depth-first document order.
// A node is a candidate when it is an object with a non-empty string slug and either a
// recognized kind marker or no marker at all, in which case declared is used. Unmarked
// nodes nested in a candidate, such as the series reference of an episode, are not yielded.
// Children are walked whether or not their parent was a candidate. Invalid JSON yields nothing.
// The sequence may be ranged over more than once.
func Extract(doc []byte, declared models.ContentKind, opts ...Option) iter.Seq[Candidate] {
	o := options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(Candidate) bool) {
		if !gjson.ValidBytes(doc) {
			return
		}
		w := walker{declared: declared, maxDepth: o.maxDepth, yield: yield}
		w.walk(gjson.ParseBytes(doc), 0, false)
	}
}

type walker struct {
	declared models.ContentKind
	maxDepth int
	yield    func(Candidate) bool
}

// walk returns false once the consumer stopped the iteration.
// inCandidate is set below a yielded node.
func (w *walker) walk(node gjson.Result, depth int, inCandidate bool) bool {
	if depth > w.maxDepth || !(node.IsObject() || node.IsArray()) {
		return true
	}

	if node.IsObject() {
		if candidate, ok := w.candidate(node, inCandidate); ok {
			if !w.yield(candidate) {
				return false
			}
			inCandidate = true
		}
	}

	keepGoing := true
	node.ForEach(func(_, child gjson.Result) bool {
		keepGoing = w.walk(child, depth+1, inCandidate)
		return keepGoing
	})
	return keepGoing
}

func (w *walker) candidate(node gjson.Result, inCandidate bool) (Candidate, bool) {
	slug := node.Get("slug")
	if slug.Type != gjson.String || slug.Str == "" {
		return Candidate{}, false
	}

	for _, key := range markerKeys {
		marker := node.Get(key)
		if !marker.Exists() {
			continue
		}
		if marker.Type != gjson.String {
			return Candidate{}, false
		}
		kind, ok := models.ParseKind(marker.Str)
		if !ok {
			return Candidate{}, false
		}
		return Candidate{Slug: slug.Str, Kind: kind}, true
	}

	if w.declared == "" || inCandidate {
		return Candidate{}, false
	}
	return Candidate{Slug: slug.Str, Kind: w.declared}, true
}

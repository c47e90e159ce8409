package floorplan

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/teslashibe/go-arnav/pkg/geom"
	"github.com/teslashibe/go-arnav/pkg/graph"
)

// DefaultSnapTolerance is how far, in map units, a path endpoint may sit
// from a node's center and still attach to it.
const DefaultSnapTolerance = 10.0

// SVGOptions controls SVG ingestion.
type SVGOptions struct {
	SnapTolerance float64      // endpoint snapping radius, DefaultSnapTolerance if zero
	FlipY         bool         // make +y point up the page instead of down
	MarkerPresets []string     // DefaultMarkerPresets if nil
	Logger        *slog.Logger // defaults to slog.Default
}

var (
	num = `([-+]?[\d.]+(?:[eE][-+]?\d+)?)`
	sep = `[,\s]+`

	// Only the first segment of a path is read: a move followed by either a
	// line or a single cubic curve.
	pathPattern = regexp.MustCompile(
		`M\s*` + num + sep + num + `\s*(?:L\s*` + num + sep + num +
			`|C\s*` + num + sep + num + sep + num + sep + num + sep + num + sep + num + `)`)

	matrixPattern = regexp.MustCompile(`matrix\(([^)]+)\)`)
)

// ParseSVG reads a floor-plan drawing. Every circle and ellipse becomes a
// node (id from the element, or node<i> by document order) and every path
// whose first segment is "M x,y L x,y" or "M x,y C c1 c2 end" becomes an edge
// between the nodes its endpoints snap to. Paths that do not attach to two
// nodes are skipped.
func ParseSVG(r io.Reader, opts SVGOptions) (*Plan, error) {
	if opts.SnapTolerance <= 0 {
		opts.SnapTolerance = DefaultSnapTolerance
	}
	if opts.MarkerPresets == nil {
		opts.MarkerPresets = DefaultMarkerPresets
	}
	log := opts.Logger
	if log == nil {
		log = defaultLogger()
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return nil, fmt.Errorf("%w: root element is not <svg>", ErrInvalidDocument)
	}

	p := &Plan{Markers: make(map[string]string)}
	p.Width, p.Height = dimensions(root)

	var (
		circles []*etree.Element
		paths   []*etree.Element
		north   *etree.Element
	)
	walk(root, func(el *etree.Element) {
		switch el.Tag {
		case "circle", "ellipse":
			circles = append(circles, el)
		case "path":
			paths = append(paths, el)
		case "tspan":
			if strings.TrimSpace(el.Text()) == "N" {
				north = el
			}
		}
	})

	for i, el := range circles {
		x, okx := firstFloat(el, "cx", "x")
		y, oky := firstFloat(el, "cy", "y")
		if !okx || !oky {
			log.Warn("skipping node without coordinates", "index", i, "id", el.SelectAttrValue("id", ""))
			continue
		}
		id := el.SelectAttrValue("id", "")
		if id == "" {
			id = fmt.Sprintf("node%d", i)
		}
		p.Nodes = append(p.Nodes, graph.Node{
			ID:    id,
			Pos:   geom.Pt(x, y),
			Label: el.SelectAttrValue("inkscape:label", ""),
		})
	}

	for _, el := range paths {
		e, ok := parsePath(el, p.Nodes, opts.SnapTolerance)
		if !ok {
			log.Debug("skipping path", "id", el.SelectAttrValue("id", ""))
			continue
		}
		p.Edges = append(p.Edges, e)
	}

	if north != nil {
		if pt, ok := northPoint(north); ok {
			p.North = &pt
		}
	}

	if opts.FlipY {
		if err := p.flipY(root); err != nil {
			return nil, err
		}
	}
	p.bindPresets(opts.MarkerPresets)

	log.Info("parsed svg floor plan", "nodes", len(p.Nodes), "edges", len(p.Edges), "north", p.North != nil)
	return p, nil
}

// walk visits el and its descendants in document order.
func walk(el *etree.Element, fn func(*etree.Element)) {
	fn(el)
	for _, child := range el.ChildElements() {
		walk(child, fn)
	}
}

func firstFloat(el *etree.Element, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v := el.SelectAttrValue(k, ""); v != "" {
			f, err := parseLength(v)
			if err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// parseLength reads a number with an optional unit suffix ("12.5px").
func parseLength(s string) (float64, error) {
	s = strings.TrimSpace(s)
	end := len(s)
	for end > 0 && (s[end-1] < '0' || s[end-1] > '9') && s[end-1] != '.' {
		end--
	}
	return strconv.ParseFloat(s[:end], 64)
}

func parsePath(el *etree.Element, nodes []graph.Node, tol float64) (graph.Edge, bool) {
	m := pathPattern.FindStringSubmatch(el.SelectAttrValue("d", ""))
	if m == nil {
		return graph.Edge{}, false
	}
	f := func(i int) float64 {
		v, _ := strconv.ParseFloat(m[i], 64)
		return v
	}

	start := geom.Pt(f(1), f(2))
	var end geom.Point
	var control []geom.Point
	if m[3] != "" {
		end = geom.Pt(f(3), f(4))
	} else {
		control = []geom.Point{geom.Pt(f(5), f(6)), geom.Pt(f(7), f(8))}
		end = geom.Pt(f(9), f(10))
	}

	from, ok := snap(nodes, start, tol)
	if !ok {
		return graph.Edge{}, false
	}
	to, ok := snap(nodes, end, tol)
	if !ok {
		return graph.Edge{}, false
	}
	return graph.Edge{
		ID:      el.SelectAttrValue("id", ""),
		From:    from,
		To:      to,
		Control: control,
	}, true
}

// snap returns the node closest to p whose center lies within tol on both
// axes.
func snap(nodes []graph.Node, p geom.Point, tol float64) (string, bool) {
	best, bestD := "", -1.0
	for _, n := range nodes {
		dx, dy := n.Pos[0]-p[0], n.Pos[1]-p[1]
		if dx <= -tol || dx >= tol || dy <= -tol || dy >= tol {
			continue
		}
		if d := dx*dx + dy*dy; bestD < 0 || d < bestD {
			best, bestD = n.ID, d
		}
	}
	return best, bestD >= 0
}

// northPoint applies the enclosing text element's matrix transform to the
// "N" label position.
func northPoint(tspan *etree.Element) (geom.Point, bool) {
	x, okx := firstFloat(tspan, "x")
	y, oky := firstFloat(tspan, "y")
	if !okx || !oky {
		return geom.Point{}, false
	}
	a, b, c, d, e, f := 1.0, 0.0, 0.0, 1.0, 0.0, 0.0
	for el := tspan; el != nil; el = el.Parent() {
		if el.Tag != "text" {
			continue
		}
		if m := matrixPattern.FindStringSubmatch(el.SelectAttrValue("transform", "")); m != nil {
			vals := strings.FieldsFunc(m[1], func(r rune) bool { return r == ',' || r == ' ' })
			if len(vals) == 6 {
				var v [6]float64
				for i, s := range vals {
					v[i], _ = strconv.ParseFloat(s, 64)
				}
				a, b, c, d, e, f = v[0], v[1], v[2], v[3], v[4], v[5]
			}
		}
		break
	}
	return geom.Pt(a*x+c*y+e, b*x+d*y+f), true
}

// dimensions returns the drawing size in user units, preferring the viewBox.
func dimensions(root *etree.Element) (w, h float64) {
	if vb := strings.FieldsFunc(root.SelectAttrValue("viewBox", ""), func(r rune) bool { return r == ',' || r == ' ' }); len(vb) == 4 {
		w, _ = strconv.ParseFloat(vb[2], 64)
		h, _ = strconv.ParseFloat(vb[3], 64)
		return w, h
	}
	w, _ = firstFloat(root, "width")
	h, _ = firstFloat(root, "height")
	return w, h
}

func (p *Plan) flipY(root *etree.Element) error {
	if p.Height <= 0 {
		return fmt.Errorf("%w: cannot flip y without a height or viewBox", ErrInvalidDocument)
	}
	top := 0.0
	if vb := strings.FieldsFunc(root.SelectAttrValue("viewBox", ""), func(r rune) bool { return r == ',' || r == ' ' }); len(vb) == 4 {
		top, _ = strconv.ParseFloat(vb[1], 64)
	}
	flip := func(pt geom.Point) geom.Point {
		return geom.Pt(pt[0], 2*top+p.Height-pt[1])
	}
	for i := range p.Nodes {
		p.Nodes[i].Pos = flip(p.Nodes[i].Pos)
	}
	for i := range p.Edges {
		for j := range p.Edges[i].Control {
			p.Edges[i].Control[j] = flip(p.Edges[i].Control[j])
		}
	}
	if p.North != nil {
		n := flip(*p.North)
		p.North = &n
	}
	return nil
}

package kernel

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/promptcad/backend/internal/models"
)

// The native kernel stores solids as ISO 10303-21 files holding a single
// ISO 10303-42 CSG primitive (BLOCK, RIGHT_CIRCULAR_CYLINDER or SPHERE)
// wrapped in a CSG_SOLID. Boundary-representation entities are not read.

// WriteSTEP writes s as a STEP exchange file.
func WriteSTEP(w io.Writer, s *Solid, name string, stamp time.Time) error {
	var entities []string
	add := func(format string, args ...any) int {
		entities = append(entities, fmt.Sprintf(format, args...))
		return len(entities)
	}

	var primitive int
	switch s.Kind {
	case models.ShapeBox:
		// A block's placement sits on its minimum corner.
		corner := s.Orientation.Apply(models.Vec3{-s.Width / 2, -s.Depth / 2, -s.Height / 2})
		placement := addPlacement(add, corner, s.Orientation)
		primitive = add("BLOCK('',#%d,%s,%s,%s)", placement, stepReal(s.Width), stepReal(s.Depth), stepReal(s.Height))
	case models.ShapeCylinder:
		base := s.Orientation.Apply(models.Vec3{0, 0, -s.Height / 2})
		placement := addPlacement(add, base, s.Orientation)
		primitive = add("RIGHT_CIRCULAR_CYLINDER('',#%d,%s,%s)", placement, stepReal(s.Height), stepReal(s.Radius))
	case models.ShapeSphere:
		centre := add("CARTESIAN_POINT('',%s)", stepVec(models.Vec3{}))
		primitive = add("SPHERE('',%s,#%d)", stepReal(s.Radius), centre)
	default:
		return fmt.Errorf("%w: cannot export %q", ErrUnsupportedSolid, s.Kind)
	}
	add("CSG_SOLID('%s',#%d)", stepString(name), primitive)

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "ISO-10303-21;")
	fmt.Fprintln(bw, "HEADER;")
	fmt.Fprintln(bw, "FILE_DESCRIPTION(('promptcad primitive'),'2;1');")
	fmt.Fprintf(bw, "FILE_NAME('%s','%s',(''),(''),'promptcad','promptcad','');\n",
		stepString(name), stamp.UTC().Format("2006-01-02T15:04:05"))
	fmt.Fprintln(bw, "FILE_SCHEMA(('GEOMETRIC_MODEL_SCHEMA'));")
	fmt.Fprintln(bw, "ENDSEC;")
	fmt.Fprintln(bw, "DATA;")
	for i, e := range entities {
		fmt.Fprintf(bw, "#%d=%s;\n", i+1, e)
	}
	fmt.Fprintln(bw, "ENDSEC;")
	fmt.Fprintln(bw, "END-ISO-10303-21;")
	return bw.Flush()
}

func addPlacement(add func(string, ...any) int, location models.Vec3, orientation Mat3) int {
	point := add("CARTESIAN_POINT('',%s)", stepVec(location))
	axis := add("DIRECTION('',%s)", stepVec(orientation.Column(2)))
	ref := add("DIRECTION('',%s)", stepVec(orientation.Column(0)))
	return add("AXIS2_PLACEMENT_3D('',#%d,#%d,#%d)", point, axis, ref)
}

// ReadSTEP reads a solid written by WriteSTEP. Solids are re-centred on the
// origin; only the primitive dimensions and orientation are recovered.
func ReadSTEP(r io.Reader) (*Solid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	entities, err := parseStepData(string(data))
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(entities))
	for id := range entities {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		e := entities[id]
		switch e.name {
		case "BLOCK":
			orientation, err := entities.placement(e.ref(1))
			if err != nil {
				return nil, err
			}
			w, d, h := e.real(2), e.real(3), e.real(4)
			return &Solid{Kind: models.ShapeBox, Width: w, Depth: d, Height: h, Orientation: orientation}, nil
		case "RIGHT_CIRCULAR_CYLINDER":
			orientation, err := entities.placement(e.ref(1))
			if err != nil {
				return nil, err
			}
			return &Solid{Kind: models.ShapeCylinder, Height: e.real(2), Radius: e.real(3), Orientation: orientation}, nil
		case "SPHERE":
			return &Solid{Kind: models.ShapeSphere, Radius: e.real(1), Orientation: Identity()}, nil
		}
	}
	return nil, fmt.Errorf("%w: no CSG primitive found", ErrUnsupportedSolid)
}

type stepRef int

type stepEntity struct {
	name string
	args []any
}

func (e stepEntity) real(i int) float64 {
	if i < len(e.args) {
		if v, ok := e.args[i].(float64); ok {
			return v
		}
	}
	return 0
}

func (e stepEntity) ref(i int) stepRef {
	if i < len(e.args) {
		if v, ok := e.args[i].(stepRef); ok {
			return v
		}
	}
	return 0
}

type stepEntities map[int]stepEntity

func (es stepEntities) placement(id stepRef) (Mat3, error) {
	p, ok := es[int(id)]
	if !ok || p.name != "AXIS2_PLACEMENT_3D" {
		return Mat3{}, fmt.Errorf("%w: missing placement #%d", ErrUnsupportedSolid, id)
	}

	axis, err := es.direction(p.ref(2), models.Vec3{0, 0, 1})
	if err != nil {
		return Mat3{}, err
	}
	ref, err := es.direction(p.ref(3), models.Vec3{1, 0, 0})
	if err != nil {
		return Mat3{}, err
	}

	x, z := normalize(ref), normalize(axis)
	y := cross(z, x)
	return Mat3{
		{x[0], y[0], z[0]},
		{x[1], y[1], z[1]},
		{x[2], y[2], z[2]},
	}, nil
}

// direction resolves a DIRECTION reference; a null reference yields def.
func (es stepEntities) direction(id stepRef, def models.Vec3) (models.Vec3, error) {
	if id == 0 {
		return def, nil
	}
	d, ok := es[int(id)]
	if !ok || d.name != "DIRECTION" || len(d.args) < 2 {
		return models.Vec3{}, fmt.Errorf("%w: bad direction #%d", ErrUnsupportedSolid, id)
	}
	ratios, ok := d.args[1].([]any)
	if !ok || len(ratios) != 3 {
		return models.Vec3{}, fmt.Errorf("%w: bad direction #%d", ErrUnsupportedSolid, id)
	}
	var v models.Vec3
	for i, c := range ratios {
		f, ok := c.(float64)
		if !ok {
			return models.Vec3{}, fmt.Errorf("%w: bad direction #%d", ErrUnsupportedSolid, id)
		}
		v[i] = f
	}
	return v, nil
}

// parseStepData parses the simple instances of the DATA section. Complex
// instances are skipped.
func parseStepData(text string) (stepEntities, error) {
	start := strings.Index(text, "DATA;")
	if start < 0 {
		return nil, fmt.Errorf("%w: no DATA section", ErrUnsupportedSolid)
	}
	body := text[start+len("DATA;"):]
	if end := strings.Index(body, "ENDSEC;"); end >= 0 {
		body = body[:end]
	}

	entities := make(stepEntities)
	for _, stmt := range splitStatements(body) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		eq := strings.IndexByte(stmt, '=')
		if !strings.HasPrefix(stmt, "#") || eq < 0 {
			return nil, fmt.Errorf("%w: malformed instance %q", ErrUnsupportedSolid, stmt)
		}
		id, err := strconv.Atoi(strings.TrimSpace(stmt[1:eq]))
		if err != nil {
			return nil, fmt.Errorf("%w: bad instance id in %q", ErrUnsupportedSolid, stmt)
		}

		rhs := strings.TrimSpace(stmt[eq+1:])
		open := strings.IndexByte(rhs, '(')
		if open <= 0 {
			continue
		}
		p := &stepParser{s: rhs, pos: open}
		args, err := p.list()
		if err != nil {
			return nil, fmt.Errorf("%w: instance #%d: %v", ErrUnsupportedSolid, id, err)
		}
		entities[id] = stepEntity{name: strings.ToUpper(strings.TrimSpace(rhs[:open])), args: args}
	}
	return entities, nil
}

// splitStatements splits on semicolons outside string literals.
func splitStatements(body string) []string {
	var out []string
	var b strings.Builder
	inString := false
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch == '\'' {
			inString = !inString
		}
		if ch == ';' && !inString {
			out = append(out, b.String())
			b.Reset()
			continue
		}
		b.WriteByte(ch)
	}
	if strings.TrimSpace(b.String()) != "" {
		out = append(out, b.String())
	}
	return out
}

type stepParser struct {
	s   string
	pos int
}

func (p *stepParser) skipSpace() {
	for p.pos < len(p.s) && strings.ContainsRune(" \t\r\n", rune(p.s[p.pos])) {
		p.pos++
	}
}

func (p *stepParser) list() ([]any, error) {
	p.skipSpace()
	if p.pos >= len(p.s) || p.s[p.pos] != '(' {
		return nil, fmt.Errorf("expected '(' at %d", p.pos)
	}
	p.pos++

	var items []any
	for {
		p.skipSpace()
		if p.pos >= len(p.s) {
			return nil, fmt.Errorf("unterminated list")
		}
		if p.s[p.pos] == ')' {
			p.pos++
			return items, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)

		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] == ',' {
			p.pos++
		}
	}
}

func (p *stepParser) value() (any, error) {
	p.skipSpace()
	ch := p.s[p.pos]
	switch {
	case ch == '(':
		return p.list()
	case ch == '\'':
		return p.str()
	case ch == '#':
		p.pos++
		start := p.pos
		for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
			p.pos++
		}
		id, err := strconv.Atoi(p.s[start:p.pos])
		if err != nil {
			return nil, fmt.Errorf("bad reference at %d", start)
		}
		return stepRef(id), nil
	case ch == '$' || ch == '*':
		p.pos++
		return nil, nil
	case ch == '.':
		end := strings.IndexByte(p.s[p.pos+1:], '.')
		if end < 0 {
			return nil, fmt.Errorf("unterminated enumeration at %d", p.pos)
		}
		v := p.s[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return v, nil
	case ch >= 'A' && ch <= 'Z':
		// Typed parameter such as LENGTH_MEASURE(1.): keep the inner value.
		for p.pos < len(p.s) && p.s[p.pos] != '(' {
			p.pos++
		}
		inner, err := p.list()
		if err != nil {
			return nil, err
		}
		if len(inner) == 1 {
			return inner[0], nil
		}
		return inner, nil
	default:
		start := p.pos
		for p.pos < len(p.s) && strings.IndexByte("+-0123456789.Ee", p.s[p.pos]) >= 0 {
			p.pos++
		}
		f, err := strconv.ParseFloat(p.s[start:p.pos], 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", p.s[start:p.pos])
		}
		return f, nil
	}
}

func (p *stepParser) str() (string, error) {
	p.pos++
	var b strings.Builder
	for p.pos < len(p.s) {
		ch := p.s[p.pos]
		p.pos++
		if ch == '\'' {
			if p.pos < len(p.s) && p.s[p.pos] == '\'' {
				b.WriteByte('\'')
				p.pos++
				continue
			}
			return b.String(), nil
		}
		b.WriteByte(ch)
	}
	return "", fmt.Errorf("unterminated string")
}

func stepReal(v float64) string {
	s := strconv.FormatFloat(v, 'G', -1, 64)
	if !strings.ContainsAny(s, ".E") {
		s += "."
	}
	return s
}

func stepVec(v models.Vec3) string {
	return fmt.Sprintf("(%s,%s,%s)", stepReal(v[0]), stepReal(v[1]), stepReal(v[2]))
}

func stepString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

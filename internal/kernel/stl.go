package kernel

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/promptcad/backend/internal/models"
)

const (
	stlHeaderSize = 80
	stlFacetSize  = 50
)

// WriteSTL writes m as binary STL.
func WriteSTL(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)

	header := make([]byte, stlHeaderSize)
	copy(header, "promptcad binary STL")
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Triangles))); err != nil {
		return err
	}

	buf := make([]byte, stlFacetSize)
	for _, t := range m.Triangles {
		off := 0
		for _, v := range []models.Vec3{t.Normal, t.A, t.B, t.C} {
			for _, c := range v {
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(c)))
				off += 4
			}
		}
		binary.LittleEndian.PutUint16(buf[off:], 0)
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadSTL reads a binary STL stream.
func ReadSTL(r io.Reader) (*Mesh, error) {
	header := make([]byte, stlHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading STL header: %w", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("reading STL facet count: %w", err)
	}

	mesh := &Mesh{Triangles: make([]Triangle, 0, count)}
	buf := make([]byte, stlFacetSize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading STL facet %d: %w", i, err)
		}
		var vs [4]models.Vec3
		for k := 0; k < 12; k++ {
			vs[k/3][k%3] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[k*4:])))
		}
		mesh.Triangles = append(mesh.Triangles, Triangle{Normal: vs[0], A: vs[1], B: vs[2], C: vs[3]})
	}
	return mesh, nil
}

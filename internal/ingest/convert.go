package ingest

import (
	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	gogeom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// PolygonalFromGeom converts a decoded go-geom polygon or multipolygon into
// the engine's planar geometry representation. Rings are closed if the
// source left them open.
func PolygonalFromGeom(t gogeom.T) (geom.Polygonal, error) {
	switch g := t.(type) {
	case *gogeom.Polygon:
		return polygonFrom(g), nil
	case *gogeom.MultiPolygon:
		mp := geom.MultiPolygon{}
		for i := 0; i < g.NumPolygons(); i++ {
			mp = append(mp, polygonFrom(g.Polygon(i)))
		}
		return mp, nil
	default:
		return nil, eris.Errorf("ingest: unsupported geometry type %T, want polygon or multipolygon", t)
	}
}

func polygonFrom(p *gogeom.Polygon) geom.Polygon {
	var poly geom.Polygon
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		ring := make([]geom.Point, 0, len(coords)+1)
		for _, c := range coords {
			ring = append(ring, geom.Point{X: c[0], Y: c[1]})
		}
		if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		poly = append(poly, ring)
	}
	return poly
}

// GeomFromPolygonal converts engine geometry back to a go-geom
// multipolygon, the form the EWKB codec works with.
func GeomFromPolygonal(p geom.Polygonal) (gogeom.T, error) {
	mp := gogeom.NewMultiPolygon(gogeom.XY)
	for _, poly := range p.Polygons() {
		gp := gogeom.NewPolygon(gogeom.XY)
		for _, ring := range poly {
			if len(ring) == 0 {
				continue
			}
			flat := make([]float64, 0, (len(ring)+1)*2)
			for _, pt := range ring {
				flat = append(flat, pt.X, pt.Y)
			}
			if ring[0] != ring[len(ring)-1] {
				flat = append(flat, ring[0].X, ring[0].Y)
			}
			if err := gp.Push(gogeom.NewLinearRingFlat(gogeom.XY, flat)); err != nil {
				return nil, eris.Wrap(err, "ingest: push ring")
			}
		}
		if err := mp.Push(gp); err != nil {
			return nil, eris.Wrap(err, "ingest: push polygon")
		}
	}
	return mp, nil
}

// EncodeEWKB serializes engine geometry as EWKB bytes, the interchange
// form shared with PostGIS-backed tooling.
func EncodeEWKB(p geom.Polygonal) ([]byte, error) {
	t, err := GeomFromPolygonal(p)
	if err != nil {
		return nil, err
	}
	data, err := ewkb.Marshal(t, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: encode EWKB")
	}
	return data, nil
}

// DecodeEWKB parses EWKB bytes into engine geometry.
func DecodeEWKB(data []byte) (geom.Polygonal, error) {
	t, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: decode EWKB")
	}
	return PolygonalFromGeom(t)
}

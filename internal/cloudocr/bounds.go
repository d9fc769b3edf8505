package cloudocr

import (
	"math"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

// bounds accumulates the axis-aligned envelope of several polygons.
type bounds struct {
	minX, minY, maxX, maxY float64
	set                    bool
}

func (b *bounds) add(x, y float64) {
	if !b.set {
		b.minX, b.maxX, b.minY, b.maxY, b.set = x, x, y, y, true
		return
	}
	b.minX, b.maxX = math.Min(b.minX, x), math.Max(b.maxX, x)
	b.minY, b.maxY = math.Min(b.minY, y), math.Max(b.maxY, y)
}

func (b *bounds) addVision(poly *visionpb.BoundingPoly, w, h float64) {
	if vs := poly.GetVertices(); len(vs) > 0 {
		for _, v := range vs {
			b.add(float64(v.GetX()), float64(v.GetY()))
		}
		return
	}
	for _, v := range poly.GetNormalizedVertices() {
		b.add(float64(v.GetX())*w, float64(v.GetY())*h)
	}
}

func (b *bounds) addDocumentAI(poly *documentaipb.BoundingPoly, w, h float64) {
	if vs := poly.GetVertices(); len(vs) > 0 {
		for _, v := range vs {
			b.add(float64(v.GetX()), float64(v.GetY()))
		}
		return
	}
	for _, v := range poly.GetNormalizedVertices() {
		b.add(float64(v.GetX())*w, float64(v.GetY())*h)
	}
}

// quad returns the envelope as [x1,y1,..,x4,y4] clockwise from top-left.
func (b bounds) quad() []float64 {
	return []float64{b.minX, b.minY, b.maxX, b.minY, b.maxX, b.maxY, b.minX, b.maxY}
}

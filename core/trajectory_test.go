package core

import (
	"math"
	"testing"

	"github.com/desruisseaux/Seagis-sub004/model"
)

func haversineM(a, b model.GeoPoint) float64 {
	lat1, lat2 := a.Lat*degToRad, b.Lat*degToRad
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * degToRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(h))
}

func TestGeodeticTrajectory_EmptyIsNoOp(t *testing.T) {
	g := NewGeodeticTrajectory()
	if _, ok := g.Location(); ok {
		t.Fatalf("empty trajectory should have no location")
	}
	g.Move(1000)
	if g.Len() != 0 {
		t.Fatalf("Move without location appended %d points", g.Len())
	}
	if g.MoveToward(1000, model.GeoPoint{Lon: 1, Lat: 1}) {
		t.Fatalf("MoveToward without location should not report reached")
	}
	if _, ok := g.RelativeToGeographic(Rect{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1}); ok {
		t.Fatalf("RelativeToGeographic without location should report false")
	}
	if !g.Bounds().Empty() {
		t.Fatalf("empty trajectory should have empty bounds, got %+v", g.Bounds())
	}
}

func TestGeodeticTrajectory_MoveAndReturn(t *testing.T) {
	for _, bearing := range []float64{0, 30, 90, 135, 200, 315} {
		g := NewGeodeticTrajectory()
		g.SetLocation(model.GeoPoint{Lon: 40, Lat: 10})
		start, _ := g.Location()

		g.Rotate(bearing)
		g.Move(1000)
		g.Rotate(180)
		g.Move(1000)

		end, _ := g.Location()
		if d := haversineM(start, end); d > 1 {
			t.Fatalf("bearing %v: returned %.3f m away from start", bearing, d)
		}
		if g.Len() != 3 {
			t.Fatalf("expected 3 points, got %d", g.Len())
		}
	}
}

func TestGeodeticTrajectory_MoveEastAlongParallel(t *testing.T) {
	g := NewGeodeticTrajectory()
	g.SetLocation(model.GeoPoint{Lon: 0, Lat: 0})
	g.Move(EarthRadiusM * degToRad) // one degree at the equator

	p, _ := g.Location()
	if math.Abs(p.Lon-1) > 1e-5 || math.Abs(p.Lat) > 1e-6 {
		t.Fatalf("expected (1, 0), got %v", p)
	}
}

func TestGeodeticTrajectory_RotateIsClockwise(t *testing.T) {
	g := NewGeodeticTrajectory()
	g.SetLocation(model.GeoPoint{Lon: 0, Lat: 0})
	g.Rotate(90) // east to south
	g.Move(10000)

	p, _ := g.Location()
	if p.Lat >= 0 || math.Abs(p.Lon) > 1e-6 {
		t.Fatalf("expected a point due south, got %v", p)
	}
	if math.Abs(g.Bearing()+90) > 1e-9 {
		t.Fatalf("expected bearing -90, got %v", g.Bearing())
	}
}

func TestGeodeticTrajectory_MoveTowardReachesTargetExactly(t *testing.T) {
	target := model.GeoPoint{Lon: -12.345678, Lat: 33.3}

	ref := NewGeodeticTrajectory()
	ref.SetLocation(target)
	want, _ := ref.Location()

	g := NewGeodeticTrajectory()
	g.SetLocation(model.GeoPoint{Lon: -12.3, Lat: 33.25})
	if !g.MoveToward(1e6, target) {
		t.Fatalf("expected target to be reached")
	}
	got, _ := g.Location()
	if got != want {
		t.Fatalf("expected exact target %v, got %v", want, got)
	}

	// Already there: zero distance still counts as reached.
	if !g.MoveToward(0, target) {
		t.Fatalf("expected zero-distance move to reach target")
	}
}

func TestGeodeticTrajectory_MoveTowardUndershoot(t *testing.T) {
	g := NewGeodeticTrajectory()
	g.SetLocation(model.GeoPoint{Lon: 10, Lat: -20})
	start, _ := g.Location()
	target := model.GeoPoint{Lon: 10.3, Lat: -19.8}

	if g.MoveToward(1000, target) {
		t.Fatalf("expected target not reached")
	}
	p, _ := g.Location()

	total := haversineM(start, target)
	a := haversineM(start, p)
	b := haversineM(p, target)
	if a <= 0 || b <= 0 {
		t.Fatalf("new point should lie strictly between start and target: a=%v b=%v", a, b)
	}
	if math.Abs(a-1000) > 5 {
		t.Fatalf("expected about 1000 m travelled, got %v", a)
	}
	if math.Abs(a+b-total) > 1 {
		t.Fatalf("new point is off the path: %v + %v != %v", a, b, total)
	}

	// Bearing now points north-east.
	if br := g.Bearing(); br <= 0 || br >= 90 {
		t.Fatalf("expected bearing between 0 and 90 degrees, got %v", br)
	}
}

func TestGeodeticTrajectory_RelativeToGeographic(t *testing.T) {
	g := NewGeodeticTrajectory()
	g.SetLocation(model.GeoPoint{Lon: 55, Lat: -21})
	here, _ := g.Location()

	r, ok := g.RelativeToGeographic(Rect{MinX: -5000, MinY: -5000, MaxX: 5000, MaxY: 5000})
	if !ok {
		t.Fatalf("expected a rectangle")
	}
	if !(r.MinX < here.Lon && here.Lon < r.MaxX && r.MinY < here.Lat && here.Lat < r.MaxY) {
		t.Fatalf("current location %v not inside %+v", here, r)
	}
	east := haversineM(model.GeoPoint{Lon: r.MinX, Lat: here.Lat}, model.GeoPoint{Lon: r.MaxX, Lat: here.Lat})
	if math.Abs(east-10000) > 10 {
		t.Fatalf("expected a 10 km wide rectangle, got %v m", east)
	}
}

func TestGeodeticTrajectory_PathAndBounds(t *testing.T) {
	g := NewGeodeticTrajectory()
	g.SetLocation(model.GeoPoint{Lon: 1.5, Lat: 2.5})
	g.SetLocation(model.GeoPoint{Lon: -3.2, Lat: 4.1})
	g.SetLocation(model.GeoPoint{Lon: 0.5, Lat: -1.7})

	pts := g.Points()
	if len(pts) != 3 {
		t.Fatalf("expected 3 points, got %d", len(pts))
	}
	if math.Abs(pts[1].Lon+3.2) > 1e-5 {
		t.Fatalf("unexpected second point %v", pts[1])
	}

	b := g.Bounds()
	if math.Abs(b.MinX+3.2) > 1e-5 || math.Abs(b.MaxX-1.5) > 1e-5 ||
		math.Abs(b.MinY+1.7) > 1e-5 || math.Abs(b.MaxY-4.1) > 1e-5 {
		t.Fatalf("unexpected bounds %+v", b)
	}
	ib := b.Bounds()
	if ib.Min.X != -4 || ib.Min.Y != -2 || ib.Max.X != 2 || ib.Max.Y != 5 {
		t.Fatalf("unexpected integer bounds %v", ib)
	}
}

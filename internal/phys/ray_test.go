package phys

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func approx(t *testing.T, got, want, eps float32, what string) {
	t.Helper()
	if math32.Abs(got-want) > eps {
		t.Fatalf("%s = %v, want %v (±%v)", what, got, want, eps)
	}
}

func flatFloor(half float32) *Collider {
	return NewMesh("floor", [][3]mgl32.Vec3{
		{{-half, 0, -half}, {-half, 0, half}, {half, 0, half}},
		{{-half, 0, -half}, {half, 0, half}, {half, 0, -half}},
	})
}

func TestRaycastBox(t *testing.T) {
	world := []*Collider{NewBox("wall", mgl32.Vec3{2, 0, -1}, mgl32.Vec3{3, 3, 1})}

	hit, ok := Raycast(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, world, 10)
	if !ok {
		t.Fatal("expected hit on box face")
	}
	approx(t, hit.Distance, 2, 1e-4, "hit distance")
	approx(t, hit.Normal.X(), -1, 1e-4, "hit normal x")
	if hit.Collider.Name != "wall" {
		t.Fatalf("hit wrong collider %q", hit.Collider.Name)
	}

	if _, ok := Raycast(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, world, 1.5); ok {
		t.Fatal("hit reported beyond max distance")
	}
	if _, ok := Raycast(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{-1, 0, 0}, world, 10); ok {
		t.Fatal("hit reported behind the ray")
	}
}

func TestRaycastInsideBox(t *testing.T) {
	world := []*Collider{NewBox("crate", mgl32.Vec3{-1, 0, -1}, mgl32.Vec3{1, 2, 1})}

	hit, ok := Raycast(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, world, 5)
	if !ok {
		t.Fatal("expected hit when origin is inside the box")
	}
	if hit.Distance != 0 {
		t.Fatalf("inside-origin hit distance = %v, want 0", hit.Distance)
	}
	if hit.Normal.Dot(mgl32.Vec3{1, 0, 0}) >= 0 {
		t.Fatalf("inside-origin normal %v should face back along the ray", hit.Normal)
	}
}

func TestRaycastTriangleMesh(t *testing.T) {
	world := []*Collider{flatFloor(10)}

	hit, ok := Raycast(mgl32.Vec3{1, 5, 1}, mgl32.Vec3{0, -1, 0}, world, 10)
	if !ok {
		t.Fatal("expected hit on floor mesh")
	}
	approx(t, hit.Distance, 5, 1e-4, "hit distance")
	approx(t, hit.Point.Y(), 0, 1e-4, "hit point y")
	approx(t, hit.Normal.Y(), 1, 1e-4, "hit normal y")
}

func TestRaycastNearestWins(t *testing.T) {
	world := []*Collider{
		NewBox("far", mgl32.Vec3{5, 0, -1}, mgl32.Vec3{6, 2, 1}),
		NewBox("near", mgl32.Vec3{2, 0, -1}, mgl32.Vec3{3, 2, 1}),
	}
	hit, ok := Raycast(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, world, 10)
	if !ok || hit.Collider.Name != "near" {
		t.Fatalf("expected nearest collider, got %+v ok=%v", hit, ok)
	}
}

func TestRaycastSkipsNonCollidable(t *testing.T) {
	marker := NewBox("marker", mgl32.Vec3{1, 0, -1}, mgl32.Vec3{2, 2, 1})
	marker.Kind = KindNonCollidable
	world := []*Collider{marker}

	if _, ok := Raycast(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, world, 10); ok {
		t.Fatal("non-collidable marker should be invisible to rays")
	}
}

func TestRaycastDegenerateDirection(t *testing.T) {
	world := []*Collider{flatFloor(10)}
	if _, ok := Raycast(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{}, world, 10); ok {
		t.Fatal("zero direction must report no contact, not a hit")
	}
}

func TestNewMeshDropsDegenerateTriangles(t *testing.T) {
	c := NewMesh("bad", [][3]mgl32.Vec3{
		{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}, // collinear
		{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}, // zero area
		{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}}, // fine
	})
	if len(c.Mesh) != 1 {
		t.Fatalf("kept %d triangles, want 1", len(c.Mesh))
	}
}

func TestRayCapsule(t *testing.T) {
	capsule := Capsule{Height: 1.8, Radius: 0.4}
	base := mgl32.Vec3{5, 0, 0}

	// Straight shot at chest height.
	d, ok := RayCapsule(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, base, capsule)
	if !ok {
		t.Fatal("expected chest-height hit")
	}
	approx(t, d, 5-capsule.Radius, 1e-3, "cylinder hit distance")

	// Over the head.
	if _, ok := RayCapsule(mgl32.Vec3{0, 3, 0}, mgl32.Vec3{1, 0, 0}, base, capsule); ok {
		t.Fatal("ray above the capsule should miss")
	}

	// Wide to the side.
	if _, ok := RayCapsule(mgl32.Vec3{0, 1, 1}, mgl32.Vec3{1, 0, 0}, base, capsule); ok {
		t.Fatal("ray past the radius should miss")
	}

	// Down onto the top cap.
	d, ok = RayCapsule(mgl32.Vec3{5, 4, 0}, mgl32.Vec3{0, -1, 0}, base, capsule)
	if !ok {
		t.Fatal("expected top-cap hit")
	}
	approx(t, d, 4-capsule.Height, 1e-3, "top cap hit distance")

	// Degenerate direction.
	if _, ok := RayCapsule(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{}, base, capsule); ok {
		t.Fatal("zero direction must miss")
	}
}

package server

import (
	"github.com/go-gl/mathgl/mgl32"

	"freerun/server/internal/phys"
)

// DefaultArena builds the static collider set the server simulates against
// and the spawn points handed out round-robin on connect. Level geometry
// normally arrives from the world pipeline; this arena is the built-in
// playable default and the fixture the integration tests run on.
func DefaultArena() ([]*phys.Collider, []mgl32.Vec3) {
	world := []*phys.Collider{
		// Main floor as a triangle mesh so the mesh path is exercised in
		// normal play, not only under tests.
		phys.NewMesh("floor", [][3]mgl32.Vec3{
			{{-60, 0, -60}, {60, 0, -60}, {60, 0, 60}},
			{{-60, 0, -60}, {60, 0, 60}, {-60, 0, 60}},
		}),

		// Perimeter walls.
		phys.NewBox("wall-north", mgl32.Vec3{-60, 0, -61}, mgl32.Vec3{60, 12, -60}),
		phys.NewBox("wall-south", mgl32.Vec3{-60, 0, 60}, mgl32.Vec3{60, 12, 61}),
		phys.NewBox("wall-west", mgl32.Vec3{-61, 0, -60}, mgl32.Vec3{-60, 12, 60}),
		phys.NewBox("wall-east", mgl32.Vec3{60, 0, -60}, mgl32.Vec3{61, 12, 60}),

		// Parkour course: stairs, a wall-run corridor, ledges to grab.
		phys.NewBox("stair-1", mgl32.Vec3{4, 0, 4}, mgl32.Vec3{8, 0.4, 8}),
		phys.NewBox("stair-2", mgl32.Vec3{4, 0, 8}, mgl32.Vec3{8, 0.8, 12}),
		phys.NewBox("stair-3", mgl32.Vec3{4, 0, 12}, mgl32.Vec3{8, 1.2, 16}),
		phys.NewBox("run-wall", mgl32.Vec3{-20, 0, -10}, mgl32.Vec3{-19, 6, 20}),
		phys.NewBox("ledge-block", mgl32.Vec3{12, 0, -18}, mgl32.Vec3{20, 2.2, -10}),
		phys.NewBox("tower", mgl32.Vec3{-8, 0, -30}, mgl32.Vec3{0, 4.5, -22}),

		// Ramp up the tower, steep enough to matter but walkable.
		phys.NewMesh("tower-ramp", [][3]mgl32.Vec3{
			{{-8, 0, -22}, {0, 0, -22}, {0, 4.5, -26}},
			{{-8, 0, -22}, {0, 4.5, -26}, {-8, 4.5, -26}},
		}),

		// A crate players can shove around.
		{
			Name: "crate",
			Kind: phys.KindMovable,
			Mass: 40,
			Box:  &phys.Box{Min: mgl32.Vec3{24, 0, 24}, Max: mgl32.Vec3{25.2, 1.2, 25.2}},
		},

		// Out-of-bounds marker the renderer draws but nothing collides with.
		{
			Name: "boundary-glow",
			Kind: phys.KindNonCollidable,
			Box:  &phys.Box{Min: mgl32.Vec3{-59, 0, -59}, Max: mgl32.Vec3{59, 0.01, 59}},
		},
	}

	spawns := []mgl32.Vec3{
		{0, 1, 0},
		{30, 1, 30},
		{-30, 1, 30},
		{30, 1, -30},
		{-30, 1, -30},
	}
	return world, spawns
}

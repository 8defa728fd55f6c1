// Package terrain is a small frame workload used by the framedemo command:
// a heightfield that animates every frame, its normals, a moving sun, an
// orbiting camera and a shading pass.
package terrain

import (
	"context"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oriumgames/pipeline"
)

// Scene is the state shared by the terrain systems. Each field is written by
// exactly one system, so systems in the same stage never touch the same data.
type Scene struct {
	Size      int
	Amplitude float64

	// Clock
	Frame uint64

	// Terrain
	Heights []float64
	Normals []mgl64.Vec3
	Shade   []float64

	// Sun
	Sun mgl64.Vec3

	// Camera
	Eye  mgl64.Vec3
	View mgl64.Mat4

	// Stats
	Brightness float64
}

// NewScene allocates a size x size heightfield.
func NewScene(size int, amplitude float64) *Scene {
	n := size * size
	return &Scene{
		Size:      size,
		Amplitude: amplitude,
		Heights:   make([]float64, n),
		Normals:   make([]mgl64.Vec3, n),
		Shade:     make([]float64, n),
		Sun:       mgl64.Vec3{0, 1, 0},
		View:      mgl64.Ident4(),
	}
}

func (s *Scene) at(x, z int) float64 {
	x = min(max(x, 0), s.Size-1)
	z = min(max(z, 0), s.Size-1)
	return s.Heights[z*s.Size+x]
}

// Clock advances the frame counter.
type Clock struct{ Scene *Scene }

func (c *Clock) Run(context.Context) error {
	c.Scene.Frame++
	return nil
}

// Height animates the heightfield.
type Height struct{ Scene *Scene }

func (h *Height) Run(context.Context) error {
	s := h.Scene
	t := float64(s.Frame) * 0.05
	for z := 0; z < s.Size; z++ {
		for x := 0; x < s.Size; x++ {
			s.Heights[z*s.Size+x] = s.Amplitude * math.Sin(float64(x)*0.3+t) * math.Cos(float64(z)*0.3)
		}
	}
	return nil
}

// Normals derives per-cell normals from the heightfield by central differences.
type Normals struct{ Scene *Scene }

func (n *Normals) Run(context.Context) error {
	s := n.Scene
	for z := 0; z < s.Size; z++ {
		for x := 0; x < s.Size; x++ {
			dx := mgl64.Vec3{2, s.at(x+1, z) - s.at(x-1, z), 0}
			dz := mgl64.Vec3{0, s.at(x, z+1) - s.at(x, z-1), 2}
			s.Normals[z*s.Size+x] = dz.Cross(dx).Normalize()
		}
	}
	return nil
}

// Sun moves the light direction along a half circle.
type Sun struct{ Scene *Scene }

func (l *Sun) Run(context.Context) error {
	s := l.Scene
	angle := float64(s.Frame%360) * math.Pi / 360
	s.Sun = mgl64.Vec3{math.Cos(angle), math.Sin(angle), 0.25}.Normalize()
	return nil
}

// Camera orbits the eye around the middle of the heightfield.
type Camera struct{ Scene *Scene }

func (c *Camera) Run(context.Context) error {
	s := c.Scene
	half := float64(s.Size) / 2
	center := mgl64.Vec3{half, 0, half}
	angle := float64(s.Frame) * 0.02
	s.Eye = center.Add(mgl64.Vec3{math.Cos(angle) * half * 2, half, math.Sin(angle) * half * 2})
	s.View = mgl64.LookAtV(s.Eye, center, mgl64.Vec3{0, 1, 0})
	return nil
}

// Shading computes Lambert shading from the normals and the sun.
type Shading struct{ Scene *Scene }

func (sh *Shading) Run(context.Context) error {
	s := sh.Scene
	for i, n := range s.Normals {
		s.Shade[i] = math.Max(0, n.Dot(s.Sun))
	}
	return nil
}

// Stats reduces the frame to its mean brightness and logs it.
type Stats struct {
	Scene  *Scene
	Logger *slog.Logger
}

func (st *Stats) Run(ctx context.Context) error {
	s := st.Scene
	var sum float64
	for _, v := range s.Shade {
		sum += v
	}
	if len(s.Shade) > 0 {
		s.Brightness = sum / float64(len(s.Shade))
	}
	if st.Logger != nil {
		st.Logger.DebugContext(ctx, "terrain: frame stats",
			"frame", s.Frame,
			"brightness", s.Brightness,
			"eye", s.Eye)
	}
	return nil
}

// Bundle declares the terrain systems.
//
//	Clock:    -> Clock.Tick
//	Height:   Clock.Tick -> Terrain.Height
//	Normals:  Terrain.Height -> Terrain.Normals
//	Shading:  Terrain.Normals, Sun.Moved -> Terrain.Shaded
//	Camera:   Clock.Tick -> Camera.Updated
//	Sun:      Clock.Tick -> Sun.Moved
//	Stats:    Terrain.*, Camera.Updated (exclusive)
func Bundle() *pipeline.Bundle {
	b := pipeline.NewBundle("terrain")
	pipeline.System[Clock](b).Produces("Clock", "Tick").InSequence()
	pipeline.System[Height](b).Requires("Clock", "Tick").Produces("Terrain", "Height")
	pipeline.System[Normals](b).Requires("Terrain", "Height").Produces("Terrain", "Normals")
	pipeline.System[Shading](b).Requires("Terrain", "Normals").Requires("Sun", "Moved").Produces("Terrain", "Shaded")
	pipeline.System[Camera](b).Requires("Clock", "Tick").Produces("Camera", "Updated")
	pipeline.System[Sun](b).Requires("Clock", "Tick").Produces("Sun", "Moved")
	pipeline.System[Stats](b).RequiresAll("Terrain").Requires("Camera", "Updated").InSequence()
	return b
}

// Registry binds every terrain system to scene.
func Registry(scene *Scene, logger *slog.Logger) *pipeline.Registry[pipeline.Runnable] {
	reg := pipeline.NewRegistry[pipeline.Runnable]()
	pipeline.Provide(reg, func() *Clock { return &Clock{Scene: scene} })
	pipeline.Provide(reg, func() *Height { return &Height{Scene: scene} })
	pipeline.Provide(reg, func() *Normals { return &Normals{Scene: scene} })
	pipeline.Provide(reg, func() *Shading { return &Shading{Scene: scene} })
	pipeline.Provide(reg, func() *Camera { return &Camera{Scene: scene} })
	pipeline.Provide(reg, func() *Sun { return &Sun{Scene: scene} })
	pipeline.Provide(reg, func() *Stats { return &Stats{Scene: scene, Logger: logger} })
	return reg
}

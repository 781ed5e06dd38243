package pipeline

import (
	"crypto/sha256"
	"fmt"

	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
	"github.com/taigrr/diorama/pkg/render"
)

// derived is geometry built from an object, valid while the object's
// generation is unchanged.
type derived struct {
	gen  uint64
	mesh *models.Mesh
}

type textureEntry struct {
	id  render.TextureID
	err error
}

// caches holds everything the renderer derives from scene objects.
// Textures are keyed by content so objects sharing an image share the
// upload.
type caches struct {
	wireframes map[models.ID]derived
	normals    map[models.ID]derived
	boxes      map[models.ID]derived
	bones      map[models.ID]derived
	textures   map[[sha256.Size]byte]textureEntry
}

func newCaches() *caches {
	return &caches{
		wireframes: make(map[models.ID]derived),
		normals:    make(map[models.ID]derived),
		boxes:      make(map[models.ID]derived),
		bones:      make(map[models.ID]derived),
		textures:   make(map[[sha256.Size]byte]textureEntry),
	}
}

func cached(m map[models.ID]derived, obj *models.Object, build func() *models.Mesh) *models.Mesh {
	gen := obj.Generation()
	if d, ok := m[obj.ID()]; ok && d.gen == gen {
		return d.mesh
	}
	mesh := build()
	m[obj.ID()] = derived{gen: gen, mesh: mesh}
	return mesh
}

func (r *Renderer) wireframe(obj *models.Object) *models.Mesh {
	return cached(r.caches.wireframes, obj, func() *models.Mesh { return wireframeMesh(obj.Mesh) })
}

func (r *Renderer) normals(obj *models.Object) *models.Mesh {
	return cached(r.caches.normals, obj, func() *models.Mesh { return normalsMesh(obj.Mesh) })
}

func (r *Renderer) boundingBox(obj *models.Object) *models.Mesh {
	return cached(r.caches.boxes, obj, func() *models.Mesh {
		return boxMesh(obj.Name+"_bbox", obj.Mesh.Dimensions())
	})
}

func (r *Renderer) bones(obj *models.Object) *models.Mesh {
	return cached(r.caches.bones, obj, func() *models.Mesh {
		return boneMesh(obj.Name+"_skeleton", obj.Skeleton)
	})
}

// texture returns the device handle for encoded image bytes, uploading
// them the first time they are seen. Failed uploads are remembered too.
func (r *Renderer) texture(data []byte) (render.TextureID, error) {
	key := sha256.Sum256(data)
	if e, ok := r.caches.textures[key]; ok {
		return e.id, e.err
	}
	id, err := r.dev.UploadTexture(data)
	if err != nil {
		err = fmt.Errorf("upload texture: %w", err)
	}
	r.caches.textures[key] = textureEntry{id: id, err: err}
	return id, err
}

func (r *Renderer) draw(c render.DrawCall, what string) {
	if err := r.dev.Draw(c); err != nil {
		r.logOnce(err.Error(), "draw failed", "what", what, "err", err)
	}
}

// drawObject draws one object in the current display mode plus its
// overlays. A failure is logged once per distinct message and never
// escapes.
func (r *Renderer) drawObject(obj *models.Object, p pass) {
	if obj == nil || obj.Mesh == nil || !obj.Visible() {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("rendering %q: %v", obj.Name, rec)
			r.logOnce(msg, "problem rendering object", "object", obj.Name, "panic", rec)
		}
	}()
	if obj.Mesh.VertexCount() == 0 {
		r.infoOnce(fmt.Sprintf("nodrawer:%d", obj.ID()), "no drawer", "name", obj.Name)
		return
	}
	r.infoOnce(fmt.Sprintf("draw:%d", obj.ID()), "drawing model",
		"name", obj.Name, "id", obj.ID(), "primitive", obj.Mesh.Primitive)

	strat := SelectStrategy(obj.Capabilities(), p.flags)
	r.infoOnce(fmt.Sprintf("strategy:%d:%s", obj.ID(), strat), "selected program",
		"name", obj.Name, "program", strat.String())

	call := render.DrawCall{
		Geometry:   obj.Mesh,
		Strategy:   strat,
		Model:      obj.ModelMatrix(),
		View:       p.view,
		Projection: p.proj,
		Color:      render.FromFloats(obj.Material().BaseColor),
		ColorMask:  p.mask,
		LightPos:   p.light,
		PointSize:  1,
	}
	if strat.Skinned {
		call.JointMatrices = obj.Skeleton.JointMatrices
	}

	ds := p.ds
	switch {
	case obj.Mesh.Primitive == models.Points:
		call.Strategy = render.Strategy{Colored: true}
		call.Topology = render.TopologyPoints
		call.PointSize = 2
		r.draw(call, obj.Name)

	case ds.DrawWireframe() && obj.Mesh.Primitive == models.Triangles:
		wire := call
		wire.Geometry = r.wireframe(obj)
		wire.Topology = render.TopologyLines
		r.draw(wire, obj.Name+" wireframe")

	case ds.DrawPoints():
		dots := call
		dots.Topology = render.TopologyPoints
		r.draw(dots, obj.Name+" points")

	case ds.DrawSkeleton() && obj.Skeleton.HasAnimation():
		skin := call
		skin.ColorMask = math3d.V4(1, 1, 1, 0.5)
		r.drawSolid(obj, skin)

		bones := call
		bones.Geometry = r.bones(obj)
		bones.Topology = render.TopologyLines
		bones.Strategy = render.Strategy{Colored: true, Skinned: true}
		bones.JointMatrices = obj.Skeleton.JointMatrices
		bones.Color = render.ColorWhite
		r.dev.SetDepthTest(false)
		r.draw(bones, obj.Name+" skeleton")
		r.dev.SetDepthTest(true)

	default:
		r.drawSolid(obj, call)
	}

	if selected := p.selected == obj; selected || (ds.BoundingBox && obj.Solid()) {
		box := call
		box.Geometry = r.boundingBox(obj)
		box.Topology = render.TopologyLines
		box.Strategy = render.Strategy{Colored: true}
		box.JointMatrices = nil
		box.Color = render.ColorGray
		if selected {
			box.Color = render.ColorWhite
		}
		r.draw(box, obj.Name+" bounding box")
	}

	if ds.DrawNormals() {
		if n := r.normals(obj); n != nil {
			lines := call
			lines.Geometry = n
			lines.Topology = render.TopologyLines
			lines.Strategy = render.Strategy{Skinned: call.Strategy.Skinned}
			r.draw(lines, obj.Name+" normals")
		}
	}
}

// drawSolid draws the object's triangles, one call per element when the
// mesh is split into elements.
func (r *Renderer) drawSolid(obj *models.Object, call render.DrawCall) {
	if len(obj.Elements) == 0 {
		if call.Strategy.Textured {
			call.Texture, call.Strategy.Textured = r.resolveTexture(obj, obj.Material().TextureData)
		}
		r.draw(call, obj.Name)
		return
	}

	for _, el := range obj.Elements {
		if el.FaceCount == 0 {
			continue
		}
		c := call
		c.FaceStart, c.FaceCount = el.FaceStart, el.FaceCount
		c.Color = render.FromFloats(el.Material.BaseColor)
		c.Strategy.Textured = call.Strategy.Textured && el.Material.HasTexture()
		if c.Strategy.Textured {
			c.Texture, c.Strategy.Textured = r.resolveTexture(obj, el.Material.TextureData)
		}
		r.draw(c, obj.Name+"/"+el.Name)
	}
}

// resolveTexture falls back to an untextured draw when the bytes do not
// decode.
func (r *Renderer) resolveTexture(obj *models.Object, data []byte) (render.TextureID, bool) {
	if len(data) == 0 {
		return 0, false
	}
	id, err := r.texture(data)
	if err != nil {
		r.logOnce(err.Error(), "texture unavailable", "object", obj.Name, "err", err)
		return 0, false
	}
	return id, true
}

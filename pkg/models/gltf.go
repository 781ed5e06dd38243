package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/diorama/pkg/math3d"
)

// LoadListener receives loader progress. Calls arrive on the loader's
// goroutine, in order: OnStart, any number of OnProgress and OnLoad, then
// exactly one of OnLoadComplete or OnLoadError.
type LoadListener interface {
	OnStart()
	OnProgress(msg string)
	OnLoad(obj *Object)
	OnLoadComplete()
	OnLoadError(err error)
}

// GLTFLoader loads GLTF/GLB files into scene objects, one per mesh node.
type GLTFLoader struct {
	// Fill in missing normals
	CalculateNormals bool
	SmoothNormals    bool
}

// NewGLTFLoader creates a new GLTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals: true,
		SmoothNormals:    true,
	}
}

// Load opens path and streams the resulting objects to ls. The returned
// error is the same one delivered through OnLoadError.
func (l *GLTFLoader) Load(ctx context.Context, path string, ls LoadListener) error {
	ls.OnStart()
	ls.OnProgress(fmt.Sprintf("Loading %s", filepath.Base(path)))

	doc, err := gltf.Open(path)
	if err != nil {
		err = fmt.Errorf("open gltf: %w", err)
		ls.OnLoadError(err)
		return err
	}

	if err := l.LoadDocument(ctx, doc, filepath.Dir(path), ls); err != nil {
		ls.OnLoadError(err)
		return err
	}
	ls.OnLoadComplete()
	return nil
}

// LoadDocument converts an already decoded document. External images are
// resolved relative to dir. It does not call OnStart or the final
// callbacks.
func (l *GLTFLoader) LoadDocument(ctx context.Context, doc *gltf.Document, dir string, ls LoadListener) error {
	start := time.Now()
	w := &walker{loader: l, doc: doc, dir: dir, ls: ls}

	for _, root := range sceneRoots(doc) {
		if err := w.visit(ctx, root, math3d.Identity()); err != nil {
			return err
		}
	}
	if w.count == 0 {
		return errors.New("gltf: document has no mesh nodes")
	}
	ls.OnProgress(fmt.Sprintf("Loaded %d objects in %s", w.count, time.Since(start).Round(time.Millisecond)))
	return nil
}

type walker struct {
	loader *GLTFLoader
	doc    *gltf.Document
	dir    string
	ls     LoadListener
	count  int
}

func (w *walker) visit(ctx context.Context, idx int, parent math3d.Mat4) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(w.doc.Nodes) {
		return fmt.Errorf("gltf: node %d out of range", idx)
	}
	node := w.doc.Nodes[idx]
	world := parent.Mul(nodeMatrix(node))

	if node.Mesh != nil {
		obj, err := w.object(idx, node, world)
		if err != nil {
			return fmt.Errorf("node %q: %w", node.Name, err)
		}
		w.count++
		w.ls.OnLoad(obj)
	}
	for _, child := range node.Children {
		if err := w.visit(ctx, child, world); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) object(idx int, node *gltf.Node, world math3d.Mat4) (*Object, error) {
	doc := w.doc
	if *node.Mesh >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh %d out of range", *node.Mesh)
	}
	m := doc.Meshes[*node.Mesh]

	name := node.Name
	if name == "" {
		name = m.Name
	}
	if name == "" {
		name = fmt.Sprintf("node%d", idx)
	}

	mesh := NewMesh(name)
	obj := NewObject(name, mesh)
	obj.AuthoringTool = doc.Asset.Generator

	var elements []Element
	for pi, prim := range m.Primitives {
		start := len(mesh.Faces)
		mat, err := w.processPrimitive(prim, mesh)
		if err != nil {
			obj.AddError(fmt.Sprintf("%s primitive %d: %v", name, pi, err))
			continue
		}
		elements = append(elements, Element{
			Name:      fmt.Sprintf("%s.%d", name, pi),
			Material:  mat,
			FaceStart: start,
			FaceCount: len(mesh.Faces) - start,
		})
	}
	if len(elements) == 1 {
		obj.SetMaterial(elements[0].Material)
	} else if len(elements) > 1 {
		obj.Elements = elements
	}

	if mesh.Primitive == Triangles && w.loader.CalculateNormals && !mesh.HasNormals() {
		if w.loader.SmoothNormals {
			mesh.CalculateSmoothNormals()
		} else {
			mesh.CalculateNormals()
		}
	}

	if node.Skin != nil {
		skel, err := w.skeleton(*node.Skin)
		if err != nil {
			obj.AddError(fmt.Sprintf("%s skin: %v", name, err))
		} else {
			obj.Skeleton = skel
		}
	}

	// Skinned vertices are positioned by the joint matrices, everything
	// else gets its node transform baked in.
	if obj.Skeleton == nil {
		mesh.Transform(world)
	} else {
		mesh.CalculateBounds()
	}
	return obj, nil
}

// processPrimitive appends the primitive's geometry to mesh and returns its
// material.
func (w *walker) processPrimitive(prim *gltf.Primitive, mesh *Mesh) (Material, error) {
	doc := w.doc
	mat := DefaultMaterial()

	switch prim.Mode {
	case gltf.PrimitiveTriangles:
	case gltf.PrimitiveLines:
		if len(mesh.Faces) > 0 {
			return mat, errors.New("mixed line and triangle primitives")
		}
		mesh.Primitive = Lines
	case gltf.PrimitivePoints:
		if len(mesh.Faces) > 0 {
			return mat, errors.New("mixed point and triangle primitives")
		}
		mesh.Primitive = Points
	default:
		return mat, fmt.Errorf("unsupported primitive mode %v", prim.Mode)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return mat, errors.New("no POSITION attribute")
	}
	positions, err := readVec3Accessor(doc, posIdx)
	if err != nil {
		return mat, fmt.Errorf("read positions: %w", err)
	}

	var normals []math3d.Vec3
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = readVec3Accessor(doc, idx); err != nil {
			return mat, fmt.Errorf("read normals: %w", err)
		}
	}

	var uvs []math3d.Vec2
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if uvs, err = readVec2Accessor(doc, idx); err != nil {
			return mat, fmt.Errorf("read uvs: %w", err)
		}
	}

	var joints [][4]int
	var weights []math3d.Vec4
	if idx, ok := prim.Attributes[gltf.JOINTS_0]; ok {
		if joints, err = readJoints(doc, idx); err != nil {
			return mat, fmt.Errorf("read joints: %w", err)
		}
	}
	if idx, ok := prim.Attributes[gltf.WEIGHTS_0]; ok {
		if weights, err = readVec4Accessor(doc, idx); err != nil {
			return mat, fmt.Errorf("read weights: %w", err)
		}
	}

	base := len(mesh.Vertices)
	for i := range positions {
		v := MeshVertex{Position: positions[i]}
		if i < len(normals) {
			v.Normal = normals[i]
		}
		if i < len(uvs) {
			// GLTF puts V=0 at the top of the image
			v.UV = math3d.V2(uvs[i].X, 1.0-uvs[i].Y)
		}
		if i < len(joints) && i < len(weights) {
			v.Joints = joints[i]
			v.Weights = [4]float64{weights[i].X, weights[i].Y, weights[i].Z, weights[i].W}
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}

	var indices []int
	if prim.Indices != nil {
		if indices, err = readIndices(doc, *prim.Indices); err != nil {
			return mat, fmt.Errorf("read indices: %w", err)
		}
	} else {
		indices = make([]int, len(positions))
		for i := range indices {
			indices[i] = i
		}
	}

	matIdx := -1
	if prim.Material != nil {
		matIdx = len(mesh.Materials)
		mat = w.material(*prim.Material)
		mesh.Materials = append(mesh.Materials, mat)
	}

	switch mesh.Primitive {
	case Triangles:
		for i := 0; i+2 < len(indices); i += 3 {
			mesh.Faces = append(mesh.Faces, Face{
				V:        [3]int{base + indices[i], base + indices[i+1], base + indices[i+2]},
				Material: matIdx,
			})
		}
	case Lines:
		for i := 0; i+1 < len(indices); i += 2 {
			mesh.Lines = append(mesh.Lines, Line{base + indices[i], base + indices[i+1]})
		}
	}
	return mat, nil
}

func (w *walker) material(idx int) Material {
	mat := DefaultMaterial()
	if idx < 0 || idx >= len(w.doc.Materials) {
		return mat
	}
	src := w.doc.Materials[idx]
	mat.Name = src.Name

	pbr := src.PBRMetallicRoughness
	if pbr == nil {
		return mat
	}
	if pbr.BaseColorFactor != nil {
		mat.BaseColor = *pbr.BaseColorFactor
	}
	if pbr.MetallicFactor != nil {
		mat.Metallic = *pbr.MetallicFactor
	}
	if pbr.RoughnessFactor != nil {
		mat.Roughness = *pbr.RoughnessFactor
	}
	if pbr.BaseColorTexture != nil {
		mat.TextureData = w.textureBytes(pbr.BaseColorTexture.Index)
	}
	return mat
}

// textureBytes returns the encoded image behind a texture index, embedded
// or external. Missing images yield nil; the object then renders untextured.
func (w *walker) textureBytes(texIdx int) []byte {
	doc := w.doc
	if texIdx < 0 || texIdx >= len(doc.Textures) || doc.Textures[texIdx].Source == nil {
		return nil
	}
	src := *doc.Textures[texIdx].Source
	if src >= len(doc.Images) {
		return nil
	}
	img := doc.Images[src]

	if img.BufferView != nil {
		bv := doc.BufferViews[*img.BufferView]
		buf := doc.Buffers[bv.Buffer]
		if buf.Data == nil || bv.ByteOffset+bv.ByteLength > len(buf.Data) {
			return nil
		}
		return buf.Data[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
	}
	if img.URI != "" && !img.IsEmbeddedResource() {
		data, err := os.ReadFile(filepath.Join(w.dir, img.URI))
		if err != nil {
			return nil
		}
		return data
	}
	if img.IsEmbeddedResource() {
		data, err := img.MarshalData()
		if err != nil {
			return nil
		}
		return data
	}
	return nil
}

func (w *walker) skeleton(skinIdx int) (*Skeleton, error) {
	doc := w.doc
	if skinIdx >= len(doc.Skins) {
		return nil, fmt.Errorf("skin %d out of range", skinIdx)
	}
	skin := doc.Skins[skinIdx]

	jointOf := make(map[int]int, len(skin.Joints))
	for i, n := range skin.Joints {
		jointOf[n] = i
	}

	var inverseBind []math3d.Mat4
	if skin.InverseBindMatrices != nil {
		var err error
		if inverseBind, err = readMat4Accessor(doc, *skin.InverseBindMatrices); err != nil {
			return nil, fmt.Errorf("read inverse bind matrices: %w", err)
		}
	}

	skel := &Skeleton{Joints: make([]Joint, len(skin.Joints))}
	for i, n := range skin.Joints {
		node := doc.Nodes[n]
		t, r, s := node.TranslationOrDefault(), node.RotationOrDefault(), node.ScaleOrDefault()
		j := Joint{
			Name:        node.Name,
			Parent:      -1,
			InverseBind: math3d.Identity(),
			Translation: math3d.V3(t[0], t[1], t[2]),
			Rotation:    math3d.QuatFromXYZW(r[0], r[1], r[2], r[3]),
			Scale:       math3d.V3(s[0], s[1], s[2]),
		}
		if i < len(inverseBind) {
			j.InverseBind = inverseBind[i]
		}
		skel.Joints[i] = j
	}
	for i, n := range skin.Joints {
		for _, child := range doc.Nodes[n].Children {
			if ci, ok := jointOf[child]; ok {
				skel.Joints[ci].Parent = i
			}
		}
	}

	skel.Animation = w.animation(jointOf)
	skel.ResetBindPose()
	return skel, nil
}

// animation converts the first clip that drives any of the skin's joints.
func (w *walker) animation(jointOf map[int]int) *Animation {
	for _, a := range w.doc.Animations {
		clip := &Animation{Name: a.Name}
		for _, ch := range a.Channels {
			if ch.Target.Node == nil || ch.Sampler >= len(a.Samplers) {
				continue
			}
			joint, ok := jointOf[*ch.Target.Node]
			if !ok {
				continue
			}
			c, err := w.channel(a.Samplers[ch.Sampler], ch.Target.Path, joint)
			if err != nil {
				continue
			}
			if n := len(c.Times); n > 0 {
				clip.Duration = math.Max(clip.Duration, c.Times[n-1])
			}
			clip.Channels = append(clip.Channels, c)
		}
		if len(clip.Channels) > 0 {
			return clip
		}
	}
	return nil
}

func (w *walker) channel(s *gltf.AnimationSampler, path gltf.TRSProperty, joint int) (Channel, error) {
	c := Channel{Joint: joint}
	switch path {
	case gltf.TRSTranslation:
		c.Path = PathTranslation
	case gltf.TRSRotation:
		c.Path = PathRotation
	case gltf.TRSScale:
		c.Path = PathScale
	default:
		return c, fmt.Errorf("unsupported channel path %v", path)
	}

	times, err := readScalarFloats(w.doc, s.Input)
	if err != nil {
		return c, err
	}
	var values []math3d.Vec4
	if c.Path == PathRotation {
		values, err = readVec4Accessor(w.doc, s.Output)
	} else {
		var v3 []math3d.Vec3
		v3, err = readVec3Accessor(w.doc, s.Output)
		for _, v := range v3 {
			values = append(values, math3d.V4FromV3(v, 0))
		}
	}
	if err != nil {
		return c, err
	}

	switch s.Interpolation {
	case gltf.InterpolationStep:
		c.Interpolation = InterpolationStep
	case gltf.InterpolationCubicSpline:
		// keep the value of each in-tangent/value/out-tangent triple
		kept := make([]math3d.Vec4, 0, len(values)/3)
		for i := 1; i < len(values); i += 3 {
			kept = append(kept, values[i])
		}
		values = kept
	}
	c.Times = times
	c.Values = values
	return c, nil
}

func sceneRoots(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
			s = *doc.Scene
		}
		return doc.Scenes[s].Nodes
	}
	isChild := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			isChild[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !isChild[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

func nodeMatrix(n *gltf.Node) math3d.Mat4 {
	if n.Matrix != [16]float64{} && n.Matrix != gltf.DefaultMatrix {
		return math3d.Mat4(n.Matrix)
	}
	t, r, s := n.TranslationOrDefault(), n.RotationOrDefault(), n.ScaleOrDefault()
	return math3d.Compose(
		math3d.V3(t[0], t[1], t[2]),
		math3d.QuatFromXYZW(r[0], r[1], r[2], r[3]),
		math3d.V3(s[0], s[1], s[2]),
	)
}

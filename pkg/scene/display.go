package scene

import "fmt"

// DrawMode selects how solid objects are drawn.
type DrawMode int

const (
	DrawFaces DrawMode = iota
	DrawWireframe
	DrawPoints
	DrawSkeleton
	DrawNormals
	drawModeCount
)

func (m DrawMode) String() string {
	switch m {
	case DrawFaces:
		return "Faces"
	case DrawWireframe:
		return "Wireframe"
	case DrawPoints:
		return "Points"
	case DrawSkeleton:
		return "Skeleton"
	case DrawNormals:
		return "Normals"
	}
	return fmt.Sprintf("DrawMode(%d)", int(m))
}

// TextureMode selects which material inputs are sampled.
type TextureMode int

const (
	TexturesOn TextureMode = iota
	ColorsOnly
	Untextured
)

// LightMode selects the light source.
type LightMode int

const (
	LightRotating LightMode = iota
	LightStatic
	LightOff
)

// StereoMode selects the eye passes.
type StereoMode int

const (
	StereoOff StereoMode = iota
	StereoAnaglyph
	StereoVR
)

// BlendMode selects alpha blending. X-ray forces every draw translucent.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendXRay
	BlendOff
)

// DisplayState is the value snapshot of every display toggle. The render
// side takes one per frame so a toggle can never tear a frame.
type DisplayState struct {
	Draw     DrawMode
	Textures TextureMode
	Light    LightMode
	Stereo   StereoMode
	Blend    BlendMode

	BoundingBox bool
	Collision   bool
	Animation   bool // false shows the bind pose
	Smooth      bool
}

// DefaultDisplayState is faces, textures and colors, a rotating light,
// normal blending and animation on.
func DefaultDisplayState() DisplayState {
	return DisplayState{Animation: true}
}

// DrawWireframe is set in wireframe and normals mode.
func (d DisplayState) DrawWireframe() bool {
	return d.Draw == DrawWireframe || d.Draw == DrawNormals
}

func (d DisplayState) DrawPoints() bool   { return d.Draw == DrawPoints }
func (d DisplayState) DrawSkeleton() bool { return d.Draw == DrawSkeleton }
func (d DisplayState) DrawNormals() bool  { return d.Draw == DrawNormals }

func (d DisplayState) DrawTextures() bool { return d.Textures == TexturesOn }
func (d DisplayState) DrawColors() bool   { return d.Textures != Untextured }

func (d DisplayState) DrawLighting() bool  { return d.Light != LightOff }
func (d DisplayState) RotatingLight() bool { return d.Light == LightRotating }

func (d DisplayState) Stereoscopic() bool { return d.Stereo != StereoOff }
func (d DisplayState) Anaglyph() bool     { return d.Stereo == StereoAnaglyph }
func (d DisplayState) VRGlasses() bool    { return d.Stereo == StereoVR }

func (d DisplayState) BlendingEnabled() bool { return d.Blend != BlendOff }
func (d DisplayState) BlendingForced() bool  { return d.Blend == BlendXRay }

// ShowBindPose is the inverse of Animation.
func (d DisplayState) ShowBindPose() bool { return !d.Animation }

// next* advance one toggle group and return the notice text for the new
// state.

func (d *DisplayState) nextDraw() string {
	d.Draw = (d.Draw + 1) % drawModeCount
	return d.Draw.String()
}

func (d *DisplayState) nextTextures() string {
	switch d.Textures {
	case TexturesOn:
		d.Textures = ColorsOnly
		return "Texture off"
	case ColorsOnly:
		d.Textures = Untextured
		return "Colors off"
	default:
		d.Textures = TexturesOn
		return "Textures on"
	}
}

func (d *DisplayState) nextLight() string {
	switch d.Light {
	case LightRotating:
		d.Light = LightStatic
		return "Light stopped"
	case LightStatic:
		d.Light = LightOff
		return "Lights off"
	default:
		d.Light = LightRotating
		return "Light on"
	}
}

func (d *DisplayState) nextStereo() string {
	switch d.Stereo {
	case StereoOff:
		d.Stereo = StereoAnaglyph
		return "Stereoscopic Anaglyph"
	case StereoAnaglyph:
		d.Stereo = StereoVR
		return "Stereoscopic VR Glasses"
	default:
		d.Stereo = StereoOff
		return "Stereoscopic disabled"
	}
}

func (d *DisplayState) nextBlend() string {
	switch d.Blend {
	case BlendNormal:
		d.Blend = BlendXRay
		return "X-Ray enabled"
	case BlendXRay:
		d.Blend = BlendOff
		return "Blending disabled"
	default:
		d.Blend = BlendNormal
		return "X-Ray disabled"
	}
}

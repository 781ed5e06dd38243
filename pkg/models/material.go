package models

// Material is the surface description of an object or element. Texture
// data is kept as raw encoded bytes; the render pipeline decodes and caches
// them by content.
type Material struct {
	Name        string
	BaseColor   [4]float64 // RGBA in 0-1 range
	Metallic    float64    // 0 = dielectric, 1 = metal
	Roughness   float64    // 0 = smooth, 1 = rough
	TextureData []byte
}

// DefaultMaterial is opaque white.
func DefaultMaterial() Material {
	return Material{
		Name:      "default",
		BaseColor: [4]float64{1, 1, 1, 1},
		Roughness: 1,
	}
}

// HasTexture reports whether the material carries texture bytes.
func (m Material) HasTexture() bool {
	return len(m.TextureData) > 0
}

// Element is a sub-mesh: a contiguous face range drawn with its own
// material.
type Element struct {
	Name      string
	Material  Material
	FaceStart int
	FaceCount int
}

package renderer

import (
	"GopherPBR/internal/gpu"
	"GopherPBR/internal/ibl"
	"GopherPBR/internal/shaders"
)

// Skybox draws the environment cube behind the scene in the forward pass.
type Skybox struct {
	vertices gpu.Buffer
	pipeline PipelineRef
	set      *gpu.BindingSet
}

func NewSkybox(dev gpu.Device) (*Skybox, error) {
	verts := ibl.CubeVertices()
	vb, err := gpu.NewBufferWithData(dev, "skybox cube", gpu.BufferVertex, gpu.EncodeFloats(nil, verts...))
	if err != nil {
		return nil, err
	}
	return &Skybox{vertices: vb, pipeline: PipelineRef{Name: "skybox"}}, nil
}

// build creates the pipeline for pass and points its set at env.
func (s *Skybox) build(dev gpu.Device, lib *shaders.Library, pass gpu.RenderPass, env *gpu.Texture) error {
	err := buildPipeline(dev, lib, &s.pipeline, pipelineSpec{
		program: "skybox",
		kernel:  SkyboxKernel(),
		schema:  gpu.VertexPosition,
		own:     []gpu.Binding{gpu.TextureBinding("environmentMap", gpu.StageFragment)},
		push:    64,
		edit:    skyboxState,
	}, pass)
	if err != nil {
		return err
	}
	if s.set, err = s.pipeline.Get().Layout().NewSet(); err != nil {
		return err
	}
	return s.set.SetTexture("environmentMap", env)
}

// Record draws the cube with the camera rotation only.
func (s *Skybox) Record(cmd gpu.CommandBuffer, cam *Camera) {
	p := s.pipeline.Get()
	cmd.BindPipeline(p.Handle())
	cmd.BindDescriptorSets(p.Handle(), p.OwnSet(), []gpu.DescriptorSet{s.set.Raw()})
	cmd.PushConstants(p.Handle(), gpu.StageVertex, 0, gpu.EncodeMat4(nil, cam.GetSkyViewProjection()))
	cmd.BindVertexBuffer(s.vertices, 0)
	cmd.Draw(36, 1, 0, 0)
}

// teardown releases the resolution-dependent state.
func (s *Skybox) teardown() {
	if s.set != nil {
		s.set.Destroy()
		s.set = nil
	}
	s.pipeline.Destroy()
}

func (s *Skybox) Destroy() {
	s.teardown()
	if s.vertices != nil {
		s.vertices.Destroy()
		s.vertices = nil
	}
}

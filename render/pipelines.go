package render

import (
	"io/fs"

	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
)

type ShaderStage struct {
	Stage gpu.ShaderStage
	Path  string
}

// PipelineDesc names a pipeline and the ordered shader stages it is built
// from.
type PipelineDesc struct {
	Name   string
	Stages []ShaderStage
}

func NewPipelineDesc(name, vertexPath, fragmentPath string) PipelineDesc {
	return PipelineDesc{
		Name: name,
		Stages: []ShaderStage{
			{Stage: gpu.StageVertex, Path: vertexPath},
			{Stage: gpu.StageFragment, Path: fragmentPath},
		},
	}
}

// pipelineRegistry builds the main pipeline and its derivatives. IDs are
// assigned at registration and survive rebuilds, and every build goes
// through one pipeline cache that lives until destroy.
type pipelineRegistry struct {
	device  gpu.Device
	shaders fs.FS
	depth   bool

	descs     []PipelineDesc
	byName    map[string]PipelineID
	pipelines []gpu.Pipeline
	layout    gpu.PipelineLayout
	cache     gpu.PipelineCache
}

func newPipelineRegistry(device gpu.Device, shaders fs.FS, depth bool) *pipelineRegistry {
	return &pipelineRegistry{
		device:  device,
		shaders: shaders,
		depth:   depth,
		byName:  make(map[string]PipelineID),
	}
}

func (r *pipelineRegistry) register(desc PipelineDesc) (PipelineID, error) {
	if desc.Name == "" {
		return 0, errors.New("pipeline needs a name")
	}
	if len(desc.Stages) == 0 {
		return 0, errors.Newf("pipeline %q has no shader stages", desc.Name)
	}
	if _, ok := r.byName[desc.Name]; ok {
		return 0, errors.Newf("pipeline %q registered twice", desc.Name)
	}
	r.descs = append(r.descs, desc)
	id := PipelineID(len(r.descs))
	r.byName[desc.Name] = id
	return id, nil
}

func (r *pipelineRegistry) createLayout(setLayouts []gpu.DescriptorSetLayout) error {
	layout, err := r.device.CreatePipelineLayout(setLayouts)
	if err != nil {
		return errors.Wrap(err, "create pipeline layout")
	}
	r.layout = layout

	cache, err := r.device.CreatePipelineCache()
	if err != nil {
		return errors.Wrap(err, "create pipeline cache")
	}
	r.cache = cache
	return nil
}

func (r *pipelineRegistry) loadModule(path string) (gpu.ShaderModule, error) {
	code, err := fs.ReadFile(r.shaders, path)
	if err != nil {
		return 0, errors.Wrapf(err, "read shader %s", path)
	}
	module, err := r.device.CreateShaderModule(code)
	if err != nil {
		return 0, errors.Wrapf(err, "create shader module %s", path)
	}
	return module, nil
}

func (r *pipelineRegistry) createPipeline(desc PipelineDesc, renderPass gpu.RenderPass, base gpu.Pipeline) (gpu.Pipeline, error) {
	var stages []gpu.ShaderStageInfo
	defer func() {
		for _, s := range stages {
			r.device.DestroyShaderModule(s.Module)
		}
	}()
	for _, s := range desc.Stages {
		module, err := r.loadModule(s.Path)
		if err != nil {
			return 0, errors.Wrapf(err, "pipeline %q", desc.Name)
		}
		stages = append(stages, gpu.ShaderStageInfo{Stage: s.Stage, Module: module})
	}

	pipeline, err := r.device.CreateGraphicsPipeline(gpu.GraphicsPipelineCreateInfo{
		Stages:           stages,
		VertexStride:     VertexSize,
		VertexAttributes: vertexAttributes(),
		Layout:           r.layout,
		RenderPass:       renderPass,
		DepthTest:        r.depth,
		AllowDerivatives: base == 0,
		Base:             base,
		Cache:            r.cache,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "create pipeline %q", desc.Name)
	}
	return pipeline, nil
}

// build creates every registered pipeline against renderPass. The first
// registered pipeline is the base the others derive from.
func (r *pipelineRegistry) build(renderPass gpu.RenderPass) error {
	r.pipelines = make([]gpu.Pipeline, 0, len(r.descs))
	var base gpu.Pipeline
	for i, desc := range r.descs {
		pipeline, err := r.createPipeline(desc, renderPass, base)
		if err != nil {
			return err
		}
		if i == 0 {
			base = pipeline
		}
		r.pipelines = append(r.pipelines, pipeline)
	}
	return nil
}

func (r *pipelineRegistry) lookup(name string) (PipelineID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

func (r *pipelineRegistry) handle(id PipelineID) (gpu.Pipeline, bool) {
	if id < 1 || int(id) > len(r.pipelines) {
		return 0, false
	}
	return r.pipelines[id-1], true
}

func (r *pipelineRegistry) valid(id PipelineID) bool {
	return id >= 1 && int(id) <= len(r.descs)
}

func (r *pipelineRegistry) destroyPipelines() {
	for i := len(r.pipelines) - 1; i >= 0; i-- {
		r.device.DestroyPipeline(r.pipelines[i])
	}
	r.pipelines = nil
}

func (r *pipelineRegistry) destroy() {
	r.destroyPipelines()
	if r.cache != 0 {
		r.device.DestroyPipelineCache(r.cache)
		r.cache = 0
	}
	if r.layout != 0 {
		r.device.DestroyPipelineLayout(r.layout)
		r.layout = 0
	}
}

package render

// PipelineID names a registered pipeline. The zero value draws with the
// currently selected pipeline.
type PipelineID int

const (
	SelectedPipeline PipelineID = 0
	MainPipeline     PipelineID = 1
)

// MainPipelineName is reserved for the pipeline built from the configured
// main shader pair.
const MainPipelineName = "main"

// MeshID, TextureID, MaterialID and BindingID index resources created through
// the Renderer. They are valid for the Renderer's lifetime.
type (
	MeshID     int
	TextureID  int
	MaterialID int
	BindingID  int
)

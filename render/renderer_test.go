package render

import (
	"testing"

	"github.com/ashengine/ash/gpu"
	"github.com/ashengine/ash/gpu/gputest"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

func TestInit(t *testing.T) {
	r, dev, _ := newTestRenderer(t, testConfig())

	if s := r.SwapchainState(); s != SwapchainReady {
		t.Fatalf("expected Ready, got %s", s)
	}
	images := r.swapchain.imageCount()
	if images != 3 {
		t.Fatalf("expected min+1 = 3 swapchain images, got %d", images)
	}
	if n := dev.Live("Framebuffer"); n != images {
		t.Errorf("expected %d framebuffers, got %d", images, n)
	}
	if n := dev.Live("CommandBuffer"); n != images {
		t.Errorf("expected %d command buffers, got %d", images, n)
	}
	if n := dev.Live("DescriptorSetLayout"); n != 3 {
		t.Errorf("expected 3 set layouts, got %d", n)
	}
	if n := dev.Live("ShaderModule"); n != 0 {
		t.Errorf("shader modules should be destroyed after pipeline creation, %d alive", n)
	}
	if n := dev.Live("Pipeline"); n != 1 {
		t.Errorf("expected only the main pipeline, got %d", n)
	}
	if id, ok := r.Pipeline(MainPipelineName); !ok || id != MainPipeline {
		t.Errorf("main pipeline should have id %d, got %d", MainPipeline, id)
	}
	if len(r.global.sets) != images {
		t.Errorf("expected %d global sets, got %d", images, len(r.global.sets))
	}
	info, _ := dev.SwapchainInfo(r.swapchain.swapchain)
	if info.Format.Format != gpu.FormatB8G8R8A8SRGB {
		t.Errorf("expected preferred sRGB format, got %s", info.Format.Format)
	}
	if info.PresentMode != gpu.PresentModeMailbox {
		t.Errorf("expected mailbox present mode, got %s", info.PresentMode)
	}
	checkViolations(t, dev)
}

func TestInitTwice(t *testing.T) {
	r, _, _ := newTestRenderer(t, testConfig())
	err := r.Init(nil)
	if !errors.IsAssertionFailure(err) {
		t.Fatalf("expected assertion failure, got %v", err)
	}
}

func TestRenderBeforeInit(t *testing.T) {
	r := New(nil, &testWindow{width: 800, height: 600}, testConfig())
	if err := r.Render(); err == nil {
		t.Fatal("expected error rendering before Init")
	}
}

func TestRenderCyclesFrameSlots(t *testing.T) {
	r, dev, _ := newTestRenderer(t, testConfig())
	addQuad(t, r)
	dev.ResetLog()

	renderN(t, r, 3)

	s := frameSubmissions(dev)
	if len(s) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(s))
	}
	if s[0].Fence == s[1].Fence {
		t.Error("consecutive frames should use different slots")
	}
	if s[0].Fence != s[2].Fence {
		t.Error("third frame should reuse the first slot")
	}
	if got := dev.Presented; len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Errorf("unexpected presented images %v", got)
	}
	stats := r.Stats()
	if stats.Recreations != 0 || stats.FramesSubmitted != 3 || stats.FramesSkipped != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.RecordPasses != 1 {
		t.Errorf("expected a single record pass, got %d", stats.RecordPasses)
	}
	checkViolations(t, dev)
}

func TestFenceWaitedBeforeReset(t *testing.T) {
	r, dev, _ := newTestRenderer(t, testConfig())
	addQuad(t, r)
	renderN(t, r, 7)

	lastSubmit := make(map[uint64]int)
	waited := make(map[uint64]bool)
	for i, c := range dev.Calls {
		switch c.Name {
		case "Submit":
			lastSubmit[c.Handle] = i
			waited[c.Handle] = false
		case "WaitForFence":
			waited[c.Handle] = true
		case "ResetFence":
			if _, ok := lastSubmit[c.Handle]; ok && !waited[c.Handle] {
				t.Fatalf("fence %d reset at call %d without a wait since its submit", c.Handle, i)
			}
		}
	}
	checkViolations(t, dev)
}

func TestZeroAreaSkipsFrames(t *testing.T) {
	r, dev, win := newTestRenderer(t, testConfig())
	addQuad(t, r)
	dev.ResetLog()

	win.width, win.height = 0, 0
	renderN(t, r, 2)
	if n := len(frameSubmissions(dev)); n != 0 {
		t.Fatalf("expected no submissions while minimized, got %d", n)
	}
	if !r.Minimized() {
		t.Error("expected renderer to report minimized")
	}
	if s := r.SwapchainState(); s != SwapchainStale {
		t.Errorf("expected Stale while minimized, got %s", s)
	}

	win.width, win.height = 800, 600
	renderN(t, r, 1)
	if n := len(frameSubmissions(dev)); n != 1 {
		t.Fatalf("expected one frame submission after restore, got %d", n)
	}
	stats := r.Stats()
	if stats.Recreations != 1 {
		t.Errorf("expected exactly one recreation, got %d", stats.Recreations)
	}
	if stats.FramesSkipped != 2 {
		t.Errorf("expected 2 skipped frames, got %d", stats.FramesSkipped)
	}
	if r.Minimized() {
		t.Error("renderer should no longer be minimized")
	}
	checkViolations(t, dev)
}

func TestRepeatedRecreationKeepsCounts(t *testing.T) {
	cfg := testConfig()
	wire := NewPipelineDesc("wire", "shaders/wire_vert.spv", "shaders/wire_frag.spv")
	r, dev, _ := newTestRenderer(t, cfg, wire)
	addQuad(t, r)
	renderN(t, r, 1)

	wireID, _ := r.Pipeline("wire")
	counts := func() map[string]int {
		return map[string]int{
			"Swapchain":     dev.Live("Swapchain"),
			"ImageView":     dev.Live("ImageView"),
			"Framebuffer":   dev.Live("Framebuffer"),
			"Pipeline":      dev.Live("Pipeline"),
			"CommandBuffer": dev.Live("CommandBuffer"),
			"RenderPass":    dev.Live("RenderPass"),
			"Image":         dev.Live("Image"),
		}
	}
	before := counts()

	for i := 0; i < 4; i++ {
		dev.PresentResults = []gpu.Result{gpu.ResultOutOfDate}
		renderN(t, r, 1)
		after := counts()
		for kind, n := range before {
			if after[kind] != n {
				t.Errorf("recreation %d: %s count changed from %d to %d", i, kind, n, after[kind])
			}
		}
		if !r.swapchain.consistent() {
			t.Fatalf("recreation %d left swapchain objects inconsistent", i)
		}
	}

	if got := r.Stats().Recreations; got != 4 {
		t.Errorf("expected 4 recreations, got %d", got)
	}
	if id, _ := r.Pipeline("wire"); id != wireID {
		t.Errorf("pipeline id changed from %d to %d", wireID, id)
	}
	used, _ := r.alloc.PoolCount()
	if used != 1 {
		t.Errorf("descriptor pools should be recycled across recreation, %d in use", used)
	}
	checkViolations(t, dev)
}

func TestAcquireOutOfDateRecreates(t *testing.T) {
	r, dev, _ := newTestRenderer(t, testConfig())
	addQuad(t, r)
	dev.ResetLog()

	dev.AcquireResults = []gpu.Result{gpu.ResultOutOfDate}
	renderN(t, r, 1)
	if n := len(frameSubmissions(dev)); n != 0 {
		t.Fatalf("out of date acquire must not submit a frame, got %d", n)
	}
	if got := r.Stats().Recreations; got != 1 {
		t.Fatalf("expected a recreation, got %d", got)
	}

	renderN(t, r, 1)
	if n := len(frameSubmissions(dev)); n != 1 {
		t.Fatalf("expected the next frame to submit, got %d submissions", n)
	}
	checkViolations(t, dev)
}

func TestSuboptimalAcquirePresentsThenRecreates(t *testing.T) {
	r, dev, _ := newTestRenderer(t, testConfig())
	addQuad(t, r)
	dev.ResetLog()

	dev.AcquireResults = []gpu.Result{gpu.ResultSuboptimal}
	renderN(t, r, 1)
	if len(dev.Presented) != 1 {
		t.Fatal("suboptimal frame should still be presented")
	}
	if got := r.Stats().Recreations; got != 1 {
		t.Fatalf("expected a recreation after suboptimal acquire, got %d", got)
	}
	checkViolations(t, dev)
}

func TestResizeRecreatesAfterPresent(t *testing.T) {
	r, dev, win := newTestRenderer(t, testConfig())
	addQuad(t, r)
	dev.ResetLog()

	win.resized = true
	win.width, win.height = 1024, 768
	dev.SetExtent(1024, 768)
	renderN(t, r, 1)

	present := dev.Index("Present", 0)
	create := dev.Index("CreateSwapchain", uint64(r.swapchain.swapchain))
	if present < 0 || create < present {
		t.Fatalf("swapchain should be recreated after present (present %d, create %d)", present, create)
	}
	if e := r.SwapchainExtent(); e.Width != 1024 || e.Height != 768 {
		t.Errorf("unexpected extent %+v", e)
	}
	checkViolations(t, dev)
}

func TestRecordedCommands(t *testing.T) {
	r, dev, _ := newTestRenderer(t, testConfig())
	addQuad(t, r)
	renderN(t, r, 1)

	mesh, _ := r.Mesh(0)
	main, _ := r.pipelines.handle(MainPipeline)
	cmds := dev.Commands(r.rec.buffers[0])
	want := []string{
		"BeginRenderPass", "SetViewport", "SetScissor", "BindDescriptorSets",
		"BindPipeline", "BindVertexBuffer", "BindIndexBuffer", "BindDescriptorSets", "DrawIndexed",
		"EndRenderPass",
	}
	if len(cmds) != len(want) {
		t.Fatalf("expected %d commands, got %d: %v", len(want), len(cmds), cmds)
	}
	for i, op := range want {
		if cmds[i].Op != op {
			t.Fatalf("command %d: expected %s, got %s", i, op, cmds[i].Op)
		}
	}
	if cmds[3].Args[1] != globalSet || cmds[3].Args[2] != uint64(r.global.sets[0]) {
		t.Errorf("global set bound incorrectly: %v", cmds[3].Args)
	}
	if cmds[4].Args[0] != uint64(main) {
		t.Errorf("expected main pipeline %d, got %v", main, cmds[4].Args)
	}
	if cmds[6].Args[0] != uint64(mesh.Buffer) || cmds[6].Args[1] != uint64(mesh.IndexOffset) {
		t.Errorf("index buffer bound at %v, want buffer %d offset %d", cmds[6].Args, mesh.Buffer, mesh.IndexOffset)
	}
	if cmds[7].Args[1] != materialSet || len(cmds[7].Args) != 4 {
		t.Errorf("material and object sets bound incorrectly: %v", cmds[7].Args)
	}
	if cmds[8].Args[0] != 6 {
		t.Errorf("expected 6 indices drawn, got %d", cmds[8].Args[0])
	}
}

func TestRecordWaitsForQueue(t *testing.T) {
	r, dev, _ := newTestRenderer(t, testConfig())
	addQuad(t, r)
	renderN(t, r, 2)
	dev.ResetLog()

	r.SetClearColor(mgl32.Vec4{0.1, 0.2, 0.3, 1})
	renderN(t, r, 1)

	idle := dev.Index("QueueWaitIdle", 0)
	reset := dev.Index("ResetCommandPool", uint64(r.rec.pool))
	if idle < 0 || reset < idle {
		t.Fatalf("command pool reset (%d) must follow queue idle (%d)", reset, idle)
	}
	if got := r.Stats().RecordPasses; got != 2 {
		t.Errorf("expected 2 record passes, got %d", got)
	}
	checkViolations(t, dev)
}

func TestUnchangedClearColorKeepsRecording(t *testing.T) {
	r, _, _ := newTestRenderer(t, testConfig())
	addQuad(t, r)
	renderN(t, r, 1)
	r.SetClearColor(r.cfg.ClearColor)
	if r.RecordState() != RecordRecorded {
		t.Fatalf("setting the same clear color should not dirty, state %s", r.RecordState())
	}
}

func TestSignalDuringRecordingRecordsAgain(t *testing.T) {
	r, dev, _ := newTestRenderer(t, testConfig())
	scene := addQuad(t, r)
	scene.onIterate = func() {
		scene.onIterate = nil
		r.SignalRecord()
	}

	renderN(t, r, 1)
	if s := r.RecordState(); s != RecordDirty {
		t.Fatalf("change during recording should leave state Dirty, got %s", s)
	}
	renderN(t, r, 1)
	if s := r.RecordState(); s != RecordRecorded {
		t.Fatalf("expected Recorded, got %s", s)
	}
	if got := r.Stats().RecordPasses; got != 2 {
		t.Fatalf("expected 2 record passes, got %d", got)
	}
	checkViolations(t, dev)
}

func TestDerivativePipelines(t *testing.T) {
	wire := NewPipelineDesc("wire", "shaders/wire_vert.spv", "shaders/wire_frag.spv")
	r, dev, _ := newTestRenderer(t, testConfig(), wire)
	addQuad(t, r)

	main, _ := r.pipelines.handle(MainPipeline)
	wireID, ok := r.Pipeline("wire")
	if !ok {
		t.Fatal("wire pipeline not registered")
	}
	wirePipeline, _ := r.pipelines.handle(wireID)
	info, _ := dev.Pipeline(wirePipeline)
	if info.Base != main {
		t.Errorf("wire should derive from main %d, base is %d", main, info.Base)
	}
	mainInfo, _ := dev.Pipeline(main)
	if !mainInfo.AllowDerivatives {
		t.Error("main pipeline should allow derivatives")
	}

	if err := r.SetPipeline("wire"); err != nil {
		t.Fatal(err)
	}
	renderN(t, r, 1)
	cmds := dev.Commands(r.rec.buffers[0])
	if cmds[4].Op != "BindPipeline" || cmds[4].Args[0] != uint64(wirePipeline) {
		t.Errorf("expected wire pipeline bound, got %v", cmds[4])
	}
	checkViolations(t, dev)
}

func TestSetPipelineUnknown(t *testing.T) {
	r, _, _ := newTestRenderer(t, testConfig())
	if err := r.SetPipeline("missing"); err == nil {
		t.Fatal("expected unknown pipeline error")
	}
}

func TestInitMissingShader(t *testing.T) {
	dev := gputest.NewDevice()
	r := New(dev, &testWindow{width: 800, height: 600}, testConfig())
	err := r.Init([]PipelineDesc{NewPipelineDesc("broken", "shaders/none.spv", "shaders/frag.spv")})
	if err == nil {
		t.Fatal("expected missing shader to fail Init")
	}
}

func TestInitDuplicatePipeline(t *testing.T) {
	dev := gputest.NewDevice()
	r := New(dev, &testWindow{width: 800, height: 600}, testConfig())
	err := r.Init([]PipelineDesc{NewPipelineDesc(MainPipelineName, "shaders/vert.spv", "shaders/frag.spv")})
	if err == nil {
		t.Fatal("expected duplicate pipeline name to fail Init")
	}
}

func TestUnknownDrawItemFails(t *testing.T) {
	r, _, _ := newTestRenderer(t, testConfig())
	r.SetScene(&testScene{items: []DrawItem{{Mesh: 3}}})
	err := r.Render()
	if !errors.IsAssertionFailure(err) {
		t.Fatalf("expected assertion failure for unknown mesh, got %v", err)
	}

	r, _, _ = newTestRenderer(t, testConfig())
	scene := addQuad(t, r)
	scene.items[0].Pipeline = 9
	err = r.Render()
	if !errors.IsAssertionFailure(err) {
		t.Fatalf("expected assertion failure for unknown pipeline, got %v", err)
	}
}

func TestWithoutDepth(t *testing.T) {
	cfg := testConfig()
	cfg.Depth = false
	r, dev, _ := newTestRenderer(t, cfg)
	addQuad(t, r)
	renderN(t, r, 2)

	if r.swapchain.depthImage != 0 {
		t.Fatal("depth image created with depth disabled")
	}
	if n := dev.Live("Image"); n != 1 {
		t.Errorf("expected only the fallback texture image, got %d", n)
	}
	checkViolations(t, dev)
}

func TestUniformsWritten(t *testing.T) {
	r, dev, _ := newTestRenderer(t, testConfig())
	addQuad(t, r)
	r.SetLight(Light{Position: mgl32.Vec4{1, 2, 3, 1}, Color: mgl32.Vec4{1, 0, 0, 1}})
	renderN(t, r, 1)

	image := dev.Presented[0]
	want, err := encode(LightUniforms{Position: mgl32.Vec4{1, 2, 3, 1}, Color: mgl32.Vec4{1, 0, 0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if got := dev.BufferData(r.global.lightUBOs[image]); string(got) != string(want) {
		t.Errorf("light uniforms not written for image %d", image)
	}
	model, err := encode(ObjectUniforms{Model: mgl32.Ident4()})
	if err != nil {
		t.Fatal(err)
	}
	if got := dev.BufferData(r.bindings[0].ubos[image]); string(got) != string(model) {
		t.Errorf("object uniforms not written for image %d", image)
	}
}

func TestCleanupReleasesEverything(t *testing.T) {
	wire := NewPipelineDesc("wire", "shaders/wire_vert.spv", "shaders/wire_frag.spv")
	r, dev, _ := newTestRenderer(t, testConfig(), wire)
	addQuad(t, r)
	if _, err := r.CreateTexture(Pixels{Width: 2, Height: 2, RGBA: make([]byte, 16)}); err != nil {
		t.Fatal(err)
	}
	renderN(t, r, 3)
	dev.PresentResults = []gpu.Result{gpu.ResultOutOfDate}
	renderN(t, r, 2)

	if err := r.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if n := dev.Live(""); n != 0 {
		t.Fatalf("%d objects leaked after cleanup", n)
	}
	if s := r.SwapchainState(); s != SwapchainDestroyed {
		t.Errorf("expected Destroyed, got %s", s)
	}
	if err := r.Cleanup(); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	if err := r.Render(); err == nil {
		t.Error("render after cleanup should fail")
	}
	checkViolations(t, dev)
}

func TestOutOfOrderAcquireWaitsForImageOwner(t *testing.T) {
	r, dev, _ := newTestRenderer(t, testConfig())
	addQuad(t, r)
	dev.ResetLog()

	// Two slots over three images: the third frame gets image 1, last
	// rendered by the other slot, and the fourth gets image 0 back.
	dev.AcquireIndices = []int{0, 1, 1, 0}
	renderN(t, r, 3)

	other := r.frames.slots[1].inFlight
	if !dev.FenceSignaled(other) {
		t.Fatalf("fence %d of the slot that last rendered image 1 should have been waited on", other)
	}

	renderN(t, r, 1)
	if got := dev.Presented; len(got) != 4 || got[0] != 0 || got[1] != 1 || got[2] != 1 || got[3] != 0 {
		t.Errorf("unexpected presented images %v", got)
	}
	if n := len(frameSubmissions(dev)); n != 4 {
		t.Errorf("expected 4 frame submissions, got %d", n)
	}
	checkViolations(t, dev)
}

func TestPipelineCacheReusedAcrossRecreation(t *testing.T) {
	wire := NewPipelineDesc("wire", "shaders/wire_vert.spv", "shaders/wire_frag.spv")
	r, dev, _ := newTestRenderer(t, testConfig(), wire)
	addQuad(t, r)

	dev.PresentResults = []gpu.Result{gpu.ResultOutOfDate}
	renderN(t, r, 2)
	if got := r.Stats().Recreations; got != 1 {
		t.Fatalf("expected one recreation, got %d", got)
	}

	if n := dev.Count("CreatePipelineCache"); n != 1 {
		t.Fatalf("expected a single pipeline cache, got %d", n)
	}
	cache := r.pipelines.cache
	built := 0
	for _, c := range dev.Calls {
		if c.Name != "CreatePipeline" {
			continue
		}
		built++
		info, _ := dev.Pipeline(gpu.Pipeline(c.Handle))
		if info.Cache != cache {
			t.Errorf("pipeline %d built with cache %d, want %d", c.Handle, info.Cache, cache)
		}
	}
	if built != 4 {
		t.Errorf("expected 4 pipeline builds across init and recreation, got %d", built)
	}

	if err := r.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if n := dev.Live("PipelineCache"); n != 0 {
		t.Errorf("pipeline cache left alive after cleanup")
	}
	checkViolations(t, dev)
}

func TestCreateRenderableBeforeInit(t *testing.T) {
	r := New(gputest.NewDevice(), &testWindow{width: 800, height: 600}, testConfig())
	if _, err := r.CreateRenderable(); err == nil {
		t.Fatal("expected an error creating a renderable before Init")
	}
}

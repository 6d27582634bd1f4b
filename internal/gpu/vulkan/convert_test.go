package vulkan

import (
	"testing"

	"GopherPBR/internal/gpu"

	vk "github.com/vulkan-go/vulkan"
)

func TestFormatsRoundTrip(t *testing.T) {
	for f := range formats {
		if got := gpuFormat(vkFormat(f)); got != f {
			t.Errorf("expected %s, got %s", f, got)
		}
	}
	if vkFormat(gpu.FormatUndefined) != vk.FormatUndefined {
		t.Error("undefined format should stay undefined")
	}
}

func TestEveryTransitionMapsToVulkan(t *testing.T) {
	layouts := []gpu.Layout{
		gpu.LayoutUndefined, gpu.LayoutTransferDst, gpu.LayoutTransferSrc,
		gpu.LayoutColorAttachment, gpu.LayoutDepthAttachment, gpu.LayoutShaderReadOnly, gpu.LayoutPresent,
	}
	for _, from := range layouts {
		for _, to := range layouts {
			m, err := gpu.LookupTransition(from, to)
			if err != nil {
				continue
			}
			if stageFlags(m.SrcStage) == 0 || stageFlags(m.DstStage) == 0 {
				t.Errorf("%s -> %s: empty stage mask", from, to)
			}
			if m.DstAccess != gpu.AccessNone && accessFlags(m.DstAccess) == 0 {
				t.Errorf("%s -> %s: access bits dropped", from, to)
			}
		}
	}
}

func TestDepthWriteGatesEarlyFragmentTests(t *testing.T) {
	m, err := gpu.LookupTransition(gpu.LayoutDepthAttachment, gpu.LayoutDepthAttachment)
	if err != nil {
		t.Fatal(err)
	}
	if got := stageFlags(m.DstStage); got != vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit) {
		t.Errorf("expected early fragment tests only, got %#x", got)
	}
	want := vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
	if got := accessFlags(m.DstAccess); got != want {
		t.Errorf("expected %#x, got %#x", want, got)
	}
}

func TestAspectFollowsFormat(t *testing.T) {
	if aspect(gpu.FormatDepth32Float) != vk.ImageAspectFlags(vk.ImageAspectDepthBit) {
		t.Error("depth format should use the depth aspect")
	}
	if aspect(gpu.FormatRGBA16Float) != vk.ImageAspectFlags(vk.ImageAspectColorBit) {
		t.Error("color format should use the color aspect")
	}
}

func TestShaderStages(t *testing.T) {
	want := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	if got := shaderStages(gpu.StageAllGraphics); got != want {
		t.Errorf("expected %#x, got %#x", want, got)
	}
}

func TestColorAttachmentFromUndefinedWaitsAtColorOutput(t *testing.T) {
	m, err := gpu.LookupTransition(gpu.LayoutUndefined, gpu.LayoutColorAttachment)
	if err != nil {
		t.Fatal(err)
	}
	want := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	if got := stageFlags(m.SrcStage); got&want == 0 {
		t.Errorf("expected the source stages %#x to include color attachment output", got)
	}
}

package gpu

import (
	"fmt"
)

// OneShot records commands into a temporary command buffer, submits them,
// waits for completion and releases the command buffer and fence.
//
// Transitions recorded by record update texture layout tracking as they are
// recorded. When OneShot fails, those layouts no longer describe the image:
// the caller must Discard or Destroy every texture record touched.
func OneShot(dev Device, label string, record func(cmd CommandBuffer) error) error {
	cmd, err := dev.NewCommandBuffer(label)
	if err != nil {
		return fmt.Errorf("%s: command buffer: %w", label, err)
	}
	defer cmd.Destroy()
	fence, err := dev.NewFence(false)
	if err != nil {
		return fmt.Errorf("%s: fence: %w", label, err)
	}
	defer fence.Destroy()

	if err := cmd.Begin(); err != nil {
		return fmt.Errorf("%s: begin: %w", label, err)
	}
	if err := record(cmd); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	if err := cmd.End(); err != nil {
		return fmt.Errorf("%s: end: %w", label, err)
	}
	if err := dev.Submit(SubmitInfo{Commands: []CommandBuffer{cmd}, Fence: fence}); err != nil {
		return fmt.Errorf("%s: submit: %w", label, err)
	}
	return fence.Wait()
}

// UploadTexture copies tightly packed mip 0 texels of every layer into tex through a
// staging buffer and leaves the whole image in ShaderReadOnly.
func UploadTexture(dev Device, tex *Texture, data []byte) error {
	desc := tex.Desc()
	layerSize := desc.Extent.Width * desc.Extent.Height * desc.Format.BytesPerTexel()
	if len(data) != layerSize*desc.Layers {
		return fmt.Errorf("upload %s: expected %d bytes, got %d", tex.Label, layerSize*desc.Layers, len(data))
	}
	if desc.Mips != 1 {
		return fmt.Errorf("upload %s: only single-mip textures can be uploaded, got %d mips", tex.Label, desc.Mips)
	}
	staging, err := dev.NewBuffer(BufferDesc{
		Label:       tex.Label + " staging",
		Size:        len(data),
		Usage:       BufferTransferSrc,
		HostVisible: true,
	})
	if err != nil {
		return fmt.Errorf("upload %s: staging: %w", tex.Label, err)
	}
	defer staging.Destroy()
	if err := staging.Write(0, data); err != nil {
		return fmt.Errorf("upload %s: %w", tex.Label, err)
	}

	err = OneShot(dev, "upload "+tex.Label, func(cmd CommandBuffer) error {
		if err := TransitionAll(cmd, tex, LayoutTransferDst); err != nil {
			return err
		}
		for layer := 0; layer < desc.Layers; layer++ {
			cmd.CopyBufferToImage(staging, tex.Image(), BufferImageCopy{
				BufferOffset: layer * layerSize,
				Layer:        layer,
				Extent:       desc.Extent,
			})
		}
		return TransitionAll(cmd, tex, LayoutShaderReadOnly)
	})
	if err != nil {
		tex.Discard()
	}
	return err
}

// NewBufferWithData creates a host-visible buffer holding data.
func NewBufferWithData(dev Device, label string, usage BufferUsage, data []byte) (Buffer, error) {
	buf, err := dev.NewBuffer(BufferDesc{Label: label, Size: len(data), Usage: usage, HostVisible: true})
	if err != nil {
		return nil, fmt.Errorf("buffer %s: %w", label, err)
	}
	if err := buf.Write(0, data); err != nil {
		buf.Destroy()
		return nil, fmt.Errorf("buffer %s: %w", label, err)
	}
	return buf, nil
}

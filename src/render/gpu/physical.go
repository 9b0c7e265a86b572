package gpu

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"vkmodel/src/render"
)

const swapchainExtension = "VK_KHR_swapchain"

var deviceExtensions = []string{swapchainExtension}

// PhysicalDevice is the adapter chosen for rendering and what was learnt
// about it during selection.
type PhysicalDevice struct {
	Handle        vulkan.PhysicalDevice
	Name          string
	Families      render.QueueFamilies
	Samples       vulkan.SampleCountFlagBits
	Anisotropy    bool
	MaxAnisotropy float32
	// MaxTextureSize is the largest supported 2D image dimension.
	MaxTextureSize uint32
}

// SelectPhysicalDevice returns the first adapter with graphics and present
// queues, the swapchain extension and a usable surface. With
// requireAnisotropy set, adapters without sampler anisotropy are skipped.
func SelectPhysicalDevice(inst *Instance, surface vulkan.Surface, requireAnisotropy bool) (*PhysicalDevice, error) {
	var count uint32
	if res := vulkan.EnumeratePhysicalDevices(inst.Handle, &count, nil); res != vulkan.Success || count == 0 {
		return nil, errors.Wrap(render.ErrDeviceSelection, "no vulkan adapters")
	}
	handles := make([]vulkan.PhysicalDevice, count)
	if err := render.NewError("enumerate physical devices", vulkan.EnumeratePhysicalDevices(inst.Handle, &count, handles)); err != nil {
		return nil, errors.Wrap(render.ErrDeviceSelection, err.Error())
	}

	log := render.Logger()
	for _, pd := range handles {
		var props vulkan.PhysicalDeviceProperties
		vulkan.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		props.Limits.Deref()
		name := vulkan.ToString(props.DeviceName[:])

		families, ok := queueFamilies(pd, surface)
		if !ok {
			log.Debug("adapter skipped", "name", name, "reason", "queue families")
			continue
		}
		if missing := missingExtensions(deviceExtensions, availableExtensions(pd)); len(missing) > 0 {
			log.Debug("adapter skipped", "name", name, "missing", missing)
			continue
		}
		support := querySurfaceSupport(pd, surface)
		if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
			log.Debug("adapter skipped", "name", name, "reason", "surface support")
			continue
		}

		var features vulkan.PhysicalDeviceFeatures
		vulkan.GetPhysicalDeviceFeatures(pd, &features)
		features.Deref()
		anisotropy := features.SamplerAnisotropy == vulkan.True
		if requireAnisotropy && !anisotropy {
			log.Debug("adapter skipped", "name", name, "reason", "sampler anisotropy")
			continue
		}

		dev := &PhysicalDevice{
			Handle:         pd,
			Name:           name,
			Families:       families,
			Samples:        maxSampleCount(props.Limits.FramebufferColorSampleCounts, props.Limits.FramebufferDepthSampleCounts),
			Anisotropy:     anisotropy,
			MaxAnisotropy:  props.Limits.MaxSamplerAnisotropy,
			MaxTextureSize: props.Limits.MaxImageDimension2D,
		}
		log.Info("adapter selected", "name", name,
			"graphics", families.Graphics, "present", families.Present, "samples", dev.Samples)
		return dev, nil
	}
	return nil, errors.Wrap(render.ErrDeviceSelection, "no adapter meets the requirements")
}

func queueFamilies(pd vulkan.PhysicalDevice, surface vulkan.Surface) (render.QueueFamilies, bool) {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(pd, &count, props)

	flags := make([]vulkan.QueueFlags, count)
	present := make([]bool, count)
	for i := range props {
		props[i].Deref()
		flags[i] = props[i].QueueFlags
		var supported vulkan.Bool32
		vulkan.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surface, &supported)
		present[i] = supported == vulkan.True
	}
	return pickFamilies(flags, present)
}

// pickFamilies prefers a single family that can both draw and present and
// falls back to the first of each.
func pickFamilies(flags []vulkan.QueueFlags, present []bool) (render.QueueFamilies, bool) {
	graphics, presentIdx := -1, -1
	for i := range flags {
		isGraphics := flags[i]&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0
		if isGraphics && present[i] {
			return render.QueueFamilies{Graphics: uint32(i), Present: uint32(i)}, true
		}
		if isGraphics && graphics < 0 {
			graphics = i
		}
		if present[i] && presentIdx < 0 {
			presentIdx = i
		}
	}
	if graphics < 0 || presentIdx < 0 {
		return render.QueueFamilies{}, false
	}
	return render.QueueFamilies{Graphics: uint32(graphics), Present: uint32(presentIdx)}, true
}

func availableExtensions(pd vulkan.PhysicalDevice) []string {
	var count uint32
	if vulkan.EnumerateDeviceExtensionProperties(pd, "", &count, nil) != vulkan.Success {
		return nil
	}
	props := make([]vulkan.ExtensionProperties, count)
	if vulkan.EnumerateDeviceExtensionProperties(pd, "", &count, props) != vulkan.Success {
		return nil
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, vulkan.ToString(props[i].ExtensionName[:]))
	}
	return names
}

func missingExtensions(required, available []string) []string {
	have := make(map[string]bool, len(available))
	for _, name := range available {
		have[name] = true
	}
	var missing []string
	for _, name := range required {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// maxSampleCount is the highest sample count usable for both color and
// depth attachments.
func maxSampleCount(color, depth vulkan.SampleCountFlags) vulkan.SampleCountFlagBits {
	counts := color & depth
	for _, bit := range []vulkan.SampleCountFlagBits{
		vulkan.SampleCount64Bit,
		vulkan.SampleCount32Bit,
		vulkan.SampleCount16Bit,
		vulkan.SampleCount8Bit,
		vulkan.SampleCount4Bit,
		vulkan.SampleCount2Bit,
	} {
		if counts&vulkan.SampleCountFlags(bit) != 0 {
			return bit
		}
	}
	return vulkan.SampleCount1Bit
}

func querySurfaceSupport(pd vulkan.PhysicalDevice, surface vulkan.Surface) render.SurfaceSupport {
	var support render.SurfaceSupport
	vulkan.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &support.Capabilities)
	support.Capabilities.Deref()
	support.Capabilities.CurrentExtent.Deref()
	support.Capabilities.MinImageExtent.Deref()
	support.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vulkan.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, nil)
	if formatCount > 0 {
		support.Formats = make([]vulkan.SurfaceFormat, formatCount)
		vulkan.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, support.Formats)
		for i := range support.Formats {
			support.Formats[i].Deref()
		}
	}

	var modeCount uint32
	vulkan.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, nil)
	if modeCount > 0 {
		support.PresentModes = make([]vulkan.PresentMode, modeCount)
		vulkan.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, support.PresentModes)
	}
	return support
}

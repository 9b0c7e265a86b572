package gpu

import (
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"vkmodel/src/render"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Init points the bindings at the platform loader. It must run before any
// other call in this package.
func Init(getInstanceProcAddr unsafe.Pointer) error {
	vulkan.SetGetInstanceProcAddr(getInstanceProcAddr)
	return errors.Wrap(vulkan.Init(), "initialise vulkan loader")
}

// Instance is the Vulkan instance with its optional debug report callback.
type Instance struct {
	Handle     vulkan.Instance
	Validation bool
	debug      vulkan.DebugReportCallback
}

// NewInstance creates an instance enabling the given extensions. With
// validation set, the Khronos validation layer is enabled when present and
// its messages are routed to the renderer logger.
func NewInstance(appName string, extensions []string, validation bool) (*Instance, error) {
	if validation && !layerAvailable(validationLayer) {
		render.Logger().Warn("validation layer requested but not installed", "layer", validationLayer)
		validation = false
	}

	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   safeString(appName),
		ApplicationVersion: vulkan.MakeVersion(1, 0, 0),
		PEngineName:        safeString("vkmodel"),
		EngineVersion:      vulkan.MakeVersion(1, 0, 0),
		ApiVersion:         vulkan.ApiVersion10,
	}

	exts := safeStrings(extensions)
	createInfo := vulkan.InstanceCreateInfo{
		SType:            vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	if validation {
		exts = append(exts, safeString(vulkan.ExtDebugReportExtensionName))
		layers := safeStrings([]string{validationLayer})
		createInfo.EnabledLayerCount = uint32(len(layers))
		createInfo.PpEnabledLayerNames = layers
	}
	createInfo.EnabledExtensionCount = uint32(len(exts))
	createInfo.PpEnabledExtensionNames = exts

	var handle vulkan.Instance
	if err := render.NewError("create instance", vulkan.CreateInstance(&createInfo, nil, &handle)); err != nil {
		return nil, errors.Wrap(render.ErrDeviceSelection, err.Error())
	}
	if err := vulkan.InitInstance(handle); err != nil {
		vulkan.DestroyInstance(handle, nil)
		return nil, errors.Wrap(err, "load instance functions")
	}

	inst := &Instance{Handle: handle, Validation: validation}
	if validation {
		dbgInfo := vulkan.DebugReportCallbackCreateInfo{
			SType:       vulkan.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vulkan.DebugReportFlags(vulkan.DebugReportErrorBit | vulkan.DebugReportWarningBit | vulkan.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}
		var cb vulkan.DebugReportCallback
		if err := render.NewError("create debug report callback", vulkan.CreateDebugReportCallback(handle, &dbgInfo, nil, &cb)); err != nil {
			render.Logger().Warn("debug report callback unavailable", "err", err)
		} else {
			inst.debug = cb
		}
	}
	return inst, nil
}

func debugReport(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint,
	messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
	log := render.Logger()
	switch {
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportErrorBit) != 0:
		log.Error("validation", "layer", layerPrefix, "code", messageCode, "msg", message)
	default:
		log.Warn("validation", "layer", layerPrefix, "code", messageCode, "msg", message)
	}
	return vulkan.False
}

// Destroy releases the debug callback and the instance. Every object created
// from the instance must already be gone.
func (i *Instance) Destroy() {
	if i.debug != vulkan.NullDebugReportCallback {
		vulkan.DestroyDebugReportCallback(i.Handle, i.debug, nil)
	}
	vulkan.DestroyInstance(i.Handle, nil)
}

// DestroySurface releases a surface created against this instance.
func (i *Instance) DestroySurface(surface vulkan.Surface) {
	vulkan.DestroySurface(i.Handle, surface, nil)
}

func layerAvailable(name string) bool {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success || count == 0 {
		return false
	}
	layers := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, layers) != vulkan.Success {
		return false
	}
	for _, layer := range layers {
		layer.Deref()
		if vulkan.ToString(layer.LayerName[:]) == name {
			return true
		}
	}
	return false
}

func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

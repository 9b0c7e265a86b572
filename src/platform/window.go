// Package platform owns the native window and the Vulkan loader hooks that
// come with it.
package platform

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

func init() {
	// GLFW must be driven from the main thread.
	runtime.LockOSThread()
}

// Window is a resizable GLFW window without a client API.
type Window struct {
	handle  *glfw.Window
	resized atomic.Bool
}

// NewWindow initialises GLFW and opens the window. Close undoes both.
func NewWindow(title string, width, height int) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "initialise glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("glfw reports no vulkan loader")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	handle, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "create window")
	}

	w := &Window{handle: handle}
	handle.SetFramebufferSizeCallback(func(_ *glfw.Window, _, _ int) {
		w.markResized()
	})
	handle.SetKeyCallback(func(win *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			win.SetShouldClose(true)
		}
	})
	return w, nil
}

// ProcAddr is the loader entry point to hand to the Vulkan bindings.
func ProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// RequiredExtensions lists the instance extensions needed to present to
// this window.
func (w *Window) RequiredExtensions() []string {
	return w.handle.GetRequiredInstanceExtensions()
}

// CreateSurface creates a presentation surface for the window.
func (w *Window) CreateSurface(instance vulkan.Instance) (vulkan.Surface, error) {
	ptr, err := w.handle.CreateWindowSurface(instance, nil)
	if err != nil {
		return vulkan.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vulkan.SurfaceFromPointer(ptr), nil
}

func (w *Window) FramebufferSize() (int, int) {
	return w.handle.GetFramebufferSize()
}

// WaitEvents blocks until at least one event arrives.
func (w *Window) WaitEvents() {
	glfw.WaitEvents()
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

func (w *Window) ShouldClose() bool {
	return w.handle.ShouldClose()
}

// TakeResized reports whether the framebuffer was resized since the last
// call and clears the flag.
func (w *Window) TakeResized() bool {
	return w.resized.Swap(false)
}

func (w *Window) markResized() {
	w.resized.Store(true)
}

// Close destroys the window and terminates GLFW.
func (w *Window) Close() {
	w.handle.Destroy()
	glfw.Terminate()
}

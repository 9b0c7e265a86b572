package render

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

var (
	// ErrDeviceSelection is returned when no physical device, queue family or
	// surface configuration can satisfy the renderer. Fatal at startup.
	ErrDeviceSelection = errors.New("no suitable device")
	// ErrResourceCreation wraps a failed allocation or object creation.
	ErrResourceCreation = errors.New("resource creation failed")
	// ErrUnsupportedTransition is returned for an image layout change the
	// transfer engine does not know how to synchronise.
	ErrUnsupportedTransition = errors.New("unsupported layout transition")
	// ErrUnsupportedFormat is returned when a format lacks a required
	// feature, such as linear-filtered blits for mipmap generation.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// ResultError carries the raw result code of a failed Vulkan call.
type ResultError struct {
	Result vulkan.Result
	Op     string
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %v (%d)", e.Op, vulkan.Error(e.Result), e.Result)
}

// Unwrap lets errors.Is match the failed call against ErrResourceCreation.
func (e *ResultError) Unwrap() error {
	return ErrResourceCreation
}

// NewError converts a result into an error with a stack trace attached, or
// nil for VK_SUCCESS.
func NewError(op string, retVal vulkan.Result) error {
	if !IsError(retVal) {
		return nil
	}
	return errors.WithStack(&ResultError{Result: retVal, Op: op})
}

func IsError(retVal vulkan.Result) bool {
	return retVal != vulkan.Success
}

// CheckError recovers a panic raised below it and stores it in err. Use it as
//
//	defer CheckError(&err)
func CheckError(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = errors.Wrap(e, "recovered")
			return
		}
		*err = errors.Errorf("recovered: %+v", v)
	}
}

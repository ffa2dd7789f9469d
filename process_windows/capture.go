//go:build windows

package process_windows

import (
	"bytes"
	"fmt"
	"unsafe"

	"polmem/process"

	"golang.org/x/sys/windows"
)

const captureLineBuffer = 1024

// CaptureDLL binds the chat-capture library exports. The library is not
// reentrant; callers serialize every call.
type CaptureDLL struct {
	dll            *windows.LazyDLL
	createInstance *windows.LazyProc
	deleteInstance *windows.LazyProc
	lineCount      *windows.LazyProc
	lineRaw        *windows.LazyProc
}

// LoadCaptureDLL resolves the required exports from path.
func LoadCaptureDLL(path string) (*CaptureDLL, error) {
	dll := windows.NewLazyDLL(path)
	if err := dll.Load(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	c := &CaptureDLL{
		dll:            dll,
		createInstance: dll.NewProc("CreateInstance"),
		deleteInstance: dll.NewProc("DeleteInstance"),
		lineCount:      dll.NewProc("GetChatLineCount"),
		lineRaw:        dll.NewProc("GetChatLineRaw"),
	}
	for _, proc := range []*windows.LazyProc{c.createInstance, c.deleteInstance, c.lineCount, c.lineRaw} {
		if err := proc.Find(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return c, nil
}

func (c *CaptureDLL) CreateInstance(pid process.ProcessID) (uintptr, error) {
	h, _, _ := c.createInstance.Call(uintptr(pid))
	if h == 0 {
		return 0, fmt.Errorf("CreateInstance(%d) returned null", pid)
	}
	return h, nil
}

func (c *CaptureDLL) DeleteInstance(h uintptr) {
	if h != 0 {
		c.deleteInstance.Call(h)
	}
}

func (c *CaptureDLL) LineCount(h uintptr) (int, error) {
	r, _, _ := c.lineCount.Call(h)
	return int(int32(r)), nil
}

func (c *CaptureDLL) LineRaw(h uintptr, index int) ([]byte, error) {
	buf := make([]byte, captureLineBuffer)
	r, _, _ := c.lineRaw.Call(h, uintptr(index), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if byte(r) == 0 {
		return nil, fmt.Errorf("GetChatLineRaw(%d) failed", index)
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return buf, nil
}

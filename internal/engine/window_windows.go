//go:build windows

package engine

import (
	"syscall"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
)

var (
	dwmapi                    = syscall.NewLazyDLL("dwmapi.dll")
	procDwmSetWindowAttribute = dwmapi.NewProc("DwmSetWindowAttribute")
)

const (
	dwmwaUseImmersiveDarkMode = 20
	dwmwaBorderColor          = 34
	dwmwaCaptionColor         = 35
)

func setWindowAttribute(hwnd unsafe.Pointer, attr uintptr, value uint32) {
	procDwmSetWindowAttribute.Call(uintptr(hwnd), attr, uintptr(unsafe.Pointer(&value)), unsafe.Sizeof(value))
}

// colorRef packs a linear color into a Win32 COLORREF (0x00BBGGRR).
func colorRef(c [4]float32) uint32 {
	channel := func(v float32) uint32 {
		return uint32(min(max(v, 0), 1) * 255)
	}
	return channel(c[0]) | channel(c[1])<<8 | channel(c[2])<<16
}

// styleTitleBar switches the caption to dark mode and tints the caption and
// border with the renderer's clear color.
func styleTitleBar(window *glfw.Window, clear [4]float32) {
	hwnd := window.GetWin32Window()
	if hwnd == nil {
		return
	}
	p := unsafe.Pointer(hwnd)
	setWindowAttribute(p, dwmwaUseImmersiveDarkMode, 1)
	setWindowAttribute(p, dwmwaBorderColor, colorRef(clear))
	setWindowAttribute(p, dwmwaCaptionColor, colorRef(clear))
}

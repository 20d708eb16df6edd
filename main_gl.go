//go:build opengl43

package main

// Registers the OpenGL 4.3 compute backend.
import _ "github.com/pthm-cable/slime/gpu/gldev"

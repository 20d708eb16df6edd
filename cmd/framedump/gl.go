//go:build opengl43

package main

import _ "github.com/pthm-cable/slime/gpu/gldev"

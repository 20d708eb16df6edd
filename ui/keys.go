package ui

import (
	"fmt"
	"strings"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Action identifies something a key binding triggers.
type Action string

// Actions handled by the frame loop.
const (
	ActionPause        Action = "pause"
	ActionRestart      Action = "restart"
	ActionSlower       Action = "slower"
	ActionFaster       Action = "faster"
	ActionTogglePanel  Action = "toggle_panel"
	ActionTogglePerf   Action = "toggle_perf"
	ActionResetView    Action = "reset_view"
	ActionFullscreen   Action = "fullscreen"
	ActionDrawSensors  Action = "draw_sensors"
	ActionWrapEdges    Action = "wrap_edges"
	ActionReloadShader Action = "reload_shaders"
	ActionStepOnce     Action = "step_once"
)

// Binding maps a key to an action.
type Binding struct {
	Key      int32
	KeyLabel string // e.g. "Space", "R"
	Name     string
	Action   Action
}

// KeyMap holds the key bindings in display order.
type KeyMap struct {
	bindings []Binding
	byKey    map[int32]Action
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() *KeyMap {
	km := &KeyMap{byKey: make(map[int32]Action)}
	km.Register(Binding{Key: rl.KeySpace, KeyLabel: "Space", Name: "Pause", Action: ActionPause})
	km.Register(Binding{Key: rl.KeyN, KeyLabel: "N", Name: "Step", Action: ActionStepOnce})
	km.Register(Binding{Key: rl.KeyR, KeyLabel: "R", Name: "Restart", Action: ActionRestart})
	km.Register(Binding{Key: rl.KeyComma, KeyLabel: "<", Name: "Slower", Action: ActionSlower})
	km.Register(Binding{Key: rl.KeyPeriod, KeyLabel: ">", Name: "Faster", Action: ActionFaster})
	km.Register(Binding{Key: rl.KeyS, KeyLabel: "S", Name: "Sensors", Action: ActionDrawSensors})
	km.Register(Binding{Key: rl.KeyW, KeyLabel: "W", Name: "Wrap", Action: ActionWrapEdges})
	km.Register(Binding{Key: rl.KeyH, KeyLabel: "H", Name: "Panel", Action: ActionTogglePanel})
	km.Register(Binding{Key: rl.KeyP, KeyLabel: "P", Name: "Perf", Action: ActionTogglePerf})
	km.Register(Binding{Key: rl.KeyHome, KeyLabel: "Home", Name: "View", Action: ActionResetView})
	km.Register(Binding{Key: rl.KeyF5, KeyLabel: "F5", Name: "Reload", Action: ActionReloadShader})
	km.Register(Binding{Key: rl.KeyF11, KeyLabel: "F11", Name: "Fullscreen", Action: ActionFullscreen})
	return km
}

// Register adds a binding. A later binding for the same key replaces the
// earlier one.
func (km *KeyMap) Register(b Binding) {
	if _, exists := km.byKey[b.Key]; exists {
		for i := range km.bindings {
			if km.bindings[i].Key == b.Key {
				km.bindings = append(km.bindings[:i], km.bindings[i+1:]...)
				break
			}
		}
	}
	km.bindings = append(km.bindings, b)
	km.byKey[b.Key] = b.Action
}

// Lookup returns the action bound to key.
func (km *KeyMap) Lookup(key int32) (Action, bool) {
	a, ok := km.byKey[key]
	return a, ok
}

// Bindings returns the bindings in display order.
func (km *KeyMap) Bindings() []Binding {
	return km.bindings
}

// Pressed returns the actions whose keys were pressed this frame.
func (km *KeyMap) Pressed() []Action {
	var out []Action
	for _, b := range km.bindings {
		if rl.IsKeyPressed(b.Key) {
			out = append(out, b.Action)
		}
	}
	return out
}

// Legend formats the bindings for the controls line.
func (km *KeyMap) Legend() string {
	parts := make([]string, 0, len(km.bindings))
	for _, b := range km.bindings {
		parts = append(parts, fmt.Sprintf("[%s] %s", b.KeyLabel, b.Name))
	}
	return strings.Join(parts, "  ")
}

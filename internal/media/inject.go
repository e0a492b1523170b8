package media

import (
	"github.com/1ureka/rdstream/internal/input"
	"github.com/1ureka/rdstream/internal/util"
)

// LogInjector records input at debug level instead of driving the OS.
type LogInjector struct{}

func (LogInjector) MoveCursor(x, y int) error {
	util.LogDebug("inject move %d,%d", x, y)
	return nil
}

func (LogInjector) MouseButton(b input.Button, down bool) error {
	util.LogDebug("inject %s button down=%v", b, down)
	return nil
}

func (LogInjector) Key(code int, down bool) error {
	util.LogDebug("inject key 0x%x down=%v", code, down)
	return nil
}

var _ input.Injector = LogInjector{}

package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"imx662-go/drivers/imx662"
	"imx662-go/types"
)

// BuildInput is handed to a builder to construct one sensor.
type BuildInput struct {
	Ctx      context.Context
	Platform Platform
	Device   types.CameraDevice
	Logger   *slog.Logger
}

// BuildOutput is returned by a builder.
type BuildOutput struct {
	Device *imx662.Device
	Sensor string // reported in the info document
	Addr   uint16
	Worker WorkerConfig
}

// Builder constructs a sensor from config and platform resources.
type Builder interface {
	Build(in BuildInput) (BuildOutput, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(in BuildInput) (BuildOutput, error)

func (f BuilderFunc) Build(in BuildInput) (BuildOutput, error) { return f(in) }

var (
	muBuilders sync.RWMutex
	builders   = map[string]Builder{}
)

// RegisterBuilder installs a builder for a device type string.
// It panics on duplicate registration to catch mistakes at start-up.
func RegisterBuilder(deviceType string, b Builder) {
	muBuilders.Lock()
	defer muBuilders.Unlock()
	if deviceType == "" {
		panic("camera: empty device type for builder")
	}
	if _, exists := builders[deviceType]; exists {
		panic(fmt.Sprintf("camera: builder already registered for type %q", deviceType))
	}
	builders[deviceType] = b
}

func findBuilder(deviceType string) (Builder, bool) {
	muBuilders.RLock()
	defer muBuilders.RUnlock()
	b, ok := builders[deviceType]
	return b, ok
}

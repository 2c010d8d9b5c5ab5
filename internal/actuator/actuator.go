// Package actuator defines the boundary to the robot's servo driver.
package actuator

import (
	"context"
	"errors"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("actuator closed")

// HeadPose is an absolute head set-point in degrees.
type HeadPose struct {
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// Angles returns the pose in the driver's [yaw, roll, pitch] order.
func (p HeadPose) Angles() [3]float64 {
	return [3]float64{p.Yaw, p.Roll, p.Pitch}
}

// Actuator drives the robot. Calls block until the motion completes or ctx
// ends; implementations serialize calls at their own boundary.
type Actuator interface {
	DoAction(ctx context.Context, name string, speed int) error
	RunPreset(ctx context.Context, name string) error
	HeadMove(ctx context.Context, pose HeadPose, speed int) error
	ReadDistance(ctx context.Context) (float64, error)
	BodyStop(ctx context.Context) error
	Close() error
}

//go:build !linux

package device

import "errors"

func openBus(dev string, addr int) (bus, error) {
	return nil, errors.New("i2c is only supported on linux")
}

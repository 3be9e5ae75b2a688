package device

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE ioctl from linux/i2c-dev.h.
const i2cSlave = 0x0703

// devfsBus is a peripheral on a /dev/i2c-N character device.
type devfsBus struct {
	f *os.File
}

func openBus(dev string, addr int) (bus, error) {
	f, err := os.OpenFile(dev, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, addr); err != nil {
		f.Close()
		return nil, fmt.Errorf("set slave address: %w", err)
	}
	return &devfsBus{f: f}, nil
}

func (b *devfsBus) Read(buf []byte) error {
	_, err := io.ReadFull(b.f, buf)
	return err
}

func (b *devfsBus) Write(buf []byte) error {
	_, err := b.f.Write(buf)
	return err
}

func (b *devfsBus) Close() error {
	return b.f.Close()
}

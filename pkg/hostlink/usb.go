package hostlink

import (
	"fmt"

	"github.com/google/gousb"

	"github.com/mso/pkg/settings"
)

// USB identity of the instrument.
const (
	VendorID  = 0x16D0
	ProductID = 0x06F9
)

const (
	requestTypeVendorIn  = 0xC0
	requestTypeVendorOut = 0x40
)

// ControlDevice is the part of *gousb.Device the client needs.
type ControlDevice interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	Close() error
}

// Client speaks the opcode protocol to an instrument over USB control
// transfers.
type Client struct {
	dev     ControlDevice
	Serial  string
	Product string
}

// OpenUSB opens the first attached instrument.
func OpenUSB(ctx *gousb.Context) (*Client, error) {
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(VendorID), gousb.ID(ProductID))
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	if dev == nil {
		return nil, fmt.Errorf("device %04x:%04x not found", VendorID, ProductID)
	}
	c := NewClient(dev)
	c.Serial, _ = dev.SerialNumber()
	c.Product, _ = dev.Product()
	return c, nil
}

// NewClient wraps an open control endpoint.
func NewClient(dev ControlDevice) *Client {
	return &Client{dev: dev}
}

func (c *Client) Close() error {
	return c.dev.Close()
}

// Do sends one opcode and returns the device's reply.
func (c *Client) Do(op byte, payload []byte) ([]byte, error) {
	r, err := NewRequest(op, payload)
	if err != nil {
		return nil, err
	}
	if n := ReplySize(op); n > 0 {
		buf := make([]byte, n)
		got, err := c.dev.Control(requestTypeVendorIn, r.Op, r.Value, r.Index, buf)
		if err != nil {
			return nil, fmt.Errorf("control in %q: %w", op, err)
		}
		if got < n {
			return nil, fmt.Errorf("%w: %q replied %d of %d bytes", ErrShortPayload, op, got, n)
		}
		return buf, nil
	}
	if _, err := c.dev.Control(requestTypeVendorOut, r.Op, r.Value, r.Index, r.Data); err != nil {
		return nil, fmt.Errorf("control out %q: %w", op, err)
	}
	return nil, nil
}

// Version returns the firmware version string.
func (c *Client) Version() (string, error) {
	b, err := c.Do(OpVersion, nil)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Settings reads the full settings snapshot.
func (c *Client) Settings() (settings.Settings, error) {
	var s settings.Settings
	b, err := c.Do(OpSnapshot, nil)
	if err != nil {
		return s, err
	}
	if err := s.LoadSnapshot(b); err != nil {
		return s, err
	}
	return s, nil
}

// WriteRegister writes one register.
func (c *Client) WriteRegister(r settings.Register, v uint8) error {
	_, err := c.Do(OpWriteRegister, []byte{uint8(r), v})
	return err
}

// Meter reads the current meter value raw; see DecodeMeter.
func (c *Client) Meter() ([]byte, error) {
	return c.Do(OpMeter, nil)
}

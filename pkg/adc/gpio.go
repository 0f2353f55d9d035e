package adc

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIOPort reads the eight digital lines from individual input pins. Pin i
// supplies bit i; nil pins read as low.
type GPIOPort struct {
	pins [8]gpio.PinIn
}

// NewGPIOPort configures up to eight pins as inputs with the given pull.
func NewGPIOPort(pull gpio.Pull, pins ...gpio.PinIn) (*GPIOPort, error) {
	if len(pins) > 8 {
		return nil, fmt.Errorf("digital port has 8 lines, got %d pins", len(pins))
	}
	p := &GPIOPort{}
	for i, pin := range pins {
		if pin == nil {
			continue
		}
		if err := pin.In(pull, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("failed to configure %s as input: %w", pin, err)
		}
		p.pins[i] = pin
	}
	return p, nil
}

// ParsePull maps "float", "down" or "up" to a pull setting.
func ParsePull(s string) (gpio.Pull, error) {
	switch strings.ToLower(s) {
	case "", "float":
		return gpio.Float, nil
	case "down":
		return gpio.PullDown, nil
	case "up":
		return gpio.PullUp, nil
	}
	return gpio.PullNoChange, fmt.Errorf("unknown pull %q", s)
}

// NewGPIOPortByName resolves pins through the periph registry. Empty names
// leave the line unconnected.
func NewGPIOPortByName(pull gpio.Pull, names ...string) (*GPIOPort, error) {
	if len(names) > 8 {
		return nil, fmt.Errorf("digital port has 8 lines, got %d pins", len(names))
	}
	pins := make([]gpio.PinIn, len(names))
	for i, name := range names {
		if name == "" {
			continue
		}
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("no GPIO pin %q", name)
		}
		pins[i] = pin
	}
	return NewGPIOPort(pull, pins...)
}

// OpenGPIOPort loads the host GPIO drivers and resolves names.
func OpenGPIOPort(pull string, names []string) (*GPIOPort, error) {
	pl, err := ParsePull(pull)
	if err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to load GPIO drivers: %w", err)
	}
	return NewGPIOPortByName(pl, names...)
}

// Read samples all lines.
func (p *GPIOPort) Read() uint8 {
	var v uint8
	for i, pin := range p.pins {
		if pin != nil && pin.Read() == gpio.High {
			v |= 1 << uint(i)
		}
	}
	return v
}

// Package capture records microphone audio through PortAudio and hands it
// out as timestamped PCM frames. Device selection accepts an exact index,
// a case-insensitive name fragment, or nothing at all, in which case the
// first input-capable device wins.
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// ErrDeviceNotFound is returned when no input device matches the requested
// selector. Callers should surface the available devices to the user when
// they see this error.
var ErrDeviceNotFound = errors.New("no matching input device")

// Initialize sets up the PortAudio runtime. It must be called once before
// any other function in this package and paired with [Terminate].
func Initialize() error {
	return portaudio.Initialize()
}

// Terminate releases the PortAudio runtime.
func Terminate() error {
	return portaudio.Terminate()
}

// Device describes one audio device known to the host. Index is the
// position in the host's device table and is stable for the lifetime of
// the PortAudio session.
type Device struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64

	info *portaudio.DeviceInfo
}

// Input reports whether the device can capture audio.
func (d Device) Input() bool {
	return d.MaxInputChannels > 0
}

// String renders the device the way --list-devices prints it.
func (d Device) String() string {
	dir := "output only"
	if d.Input() {
		dir = fmt.Sprintf("%d in", d.MaxInputChannels)
	}
	return fmt.Sprintf("[%d] %s (%s, %.0f Hz)", d.Index, d.Name, dir, d.DefaultSampleRate)
}

// List returns every audio device the host exposes, in device-table order.
func List() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			Index:             i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			info:              info,
		}
	}
	return devices, nil
}

// DefaultInput returns the device the driver reports as the default input.
func DefaultInput() (Device, error) {
	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return Device{}, fmt.Errorf("default input device: %w", err)
	}
	devices, err := List()
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if d.info == info {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: driver default %q missing from the device table", ErrDeviceNotFound, info.Name)
}

// Resolve picks an input device for the given selector.
//
// An empty selector picks the first input-capable device. A selector made
// entirely of digits is treated as an exact device index, which must refer
// to an input-capable device. Anything else is matched case-insensitively
// as a substring of input-capable device names, first match in device-table
// order. Every failure mode returns [ErrDeviceNotFound].
func Resolve(selector string) (Device, error) {
	devices, err := List()
	if err != nil {
		return Device{}, err
	}
	return resolveFrom(devices, selector)
}

func resolveFrom(devices []Device, selector string) (Device, error) {
	if selector == "" {
		for _, d := range devices {
			if d.Input() {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("%w: host has no input-capable devices", ErrDeviceNotFound)
	}

	if isDigits(selector) {
		// An index selector is exact. It never falls back to name matching,
		// so "2" with an output-only device 2 is an error even if a device
		// named "2ndMic" exists.
		idx, err := strconv.Atoi(selector)
		if err != nil || idx < 0 || idx >= len(devices) {
			return Device{}, fmt.Errorf("%w: index %s out of range (0-%d)", ErrDeviceNotFound, selector, len(devices)-1)
		}
		d := devices[idx]
		if !d.Input() {
			return Device{}, fmt.Errorf("%w: device %d (%s) has no input channels", ErrDeviceNotFound, idx, d.Name)
		}
		return d, nil
	}

	needle := strings.ToLower(selector)
	for _, d := range devices {
		if d.Input() && strings.Contains(strings.ToLower(d.Name), needle) {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: no input device name contains %q", ErrDeviceNotFound, selector)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

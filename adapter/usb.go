package adapter

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/gousb"
	"github.com/rs/zerolog"
)

// Interface class codes
// Reference: http://www.usb.org/developers/defined_class
const (
	IfaceClassAudio   = 0x01
	IfaceClassHID     = 0x03
	IfaceClassPrinter = 0x07
	IfaceClassHub     = 0x09
)

var (
	// ErrNoPrinter is returned when no USB printer-class device can be found.
	ErrNoPrinter = errors.New("cannot find printer")
	// ErrNotOpen is returned by Write and Read on a closed adapter.
	ErrNotOpen = errors.New("device not open")
)

// USBAdapter manages USB printer communication over the bulk OUT endpoint.
// The libusb context lives until Release; the device handle is opened and
// closed per Open/Close cycle so the printer can be claimed once per job.
type USBAdapter struct {
	ctx         *gousb.Context
	vid, pid    uint16
	device      *gousb.Device
	config      *gousb.Config
	iface       *gousb.Interface
	outEndpoint *gousb.OutEndpoint
	inEndpoint  *gousb.InEndpoint
	isOpen      bool
	mu          sync.Mutex
	logger      zerolog.Logger
}

// NewUSBAdapter creates a new USB adapter instance. A zero vid and pid
// selects the first printer-class device found on the bus.
func NewUSBAdapter(vid, pid uint16, logger zerolog.Logger) *USBAdapter {
	return &USBAdapter{
		ctx:    gousb.NewContext(),
		vid:    vid,
		pid:    pid,
		logger: logger.With().Str("adapter", "usb").Logger(),
	}
}

// IsPrinter checks if a device is a printer
func IsPrinter(dev *gousb.Device) bool {
	if dev == nil {
		return false
	}

	cfg, err := dev.ActiveConfigNum()
	if err != nil {
		return false
	}

	cfgDesc, err := dev.Config(cfg)
	if err != nil {
		return false
	}
	defer cfgDesc.Close()

	for _, iface := range cfgDesc.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == IfaceClassPrinter {
				return true
			}
		}
	}

	return false
}

// FindPrinters returns all USB printer devices. The caller owns the
// returned handles.
func FindPrinters(ctx *gousb.Context, logger zerolog.Logger) []*gousb.Device {
	var printers []*gousb.Device

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return true // Check all devices
	})
	if err != nil {
		// OpenDevices may report an error alongside the devices it did open.
		logger.Debug().Err(err).Msg("enumerating usb devices")
	}

	for _, dev := range devices {
		if IsPrinter(dev) {
			logger.Debug().
				Str("vid", dev.Desc.Vendor.String()).
				Str("pid", dev.Desc.Product.String()).
				Msg("found printer")
			printers = append(printers, dev)
		} else {
			dev.Close()
		}
	}

	return printers
}

// PrinterInfo describes a USB printer found on the bus.
type PrinterInfo struct {
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	Serial       string
}

// ListPrinters enumerates the printer-class devices on the bus.
func ListPrinters(logger zerolog.Logger) []PrinterInfo {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var infos []PrinterInfo
	for _, dev := range FindPrinters(ctx, logger) {
		info := PrinterInfo{
			VendorID:  uint16(dev.Desc.Vendor),
			ProductID: uint16(dev.Desc.Product),
		}
		info.Manufacturer, _ = dev.Manufacturer()
		info.Product, _ = dev.Product()
		info.Serial, _ = dev.SerialNumber()
		infos = append(infos, info)
		dev.Close()
	}
	return infos
}

// GetDeviceByVIDPID opens a device by VID and PID
func GetDeviceByVIDPID(ctx *gousb.Context, vid, pid uint16) (*gousb.Device, error) {
	device, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, errors.New("device not found")
	}
	return device, nil
}

func (a *USBAdapter) openDevice() (*gousb.Device, error) {
	if a.vid != 0 || a.pid != 0 {
		return GetDeviceByVIDPID(a.ctx, a.vid, a.pid)
	}
	devices := FindPrinters(a.ctx, a.logger)
	if len(devices) == 0 {
		return nil, ErrNoPrinter
	}
	for _, d := range devices[1:] {
		d.Close()
	}
	return devices[0], nil
}

// Open opens the USB device and claims the printer interface
func (a *USBAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isOpen {
		return errors.New("device already open")
	}
	if a.ctx == nil {
		return errors.New("usb context released")
	}

	device, err := a.openDevice()
	if err != nil {
		return err
	}

	// Set auto-detach kernel driver on Linux
	if runtime.GOOS == "linux" {
		device.SetAutoDetach(true)
	}

	if err := a.claim(device); err != nil {
		a.releaseHandles()
		device.Close()
		return err
	}

	a.device = device
	a.isOpen = true
	a.logger.Debug().Msg("device opened")

	return nil
}

// claim selects the printer interface and its bulk endpoints.
func (a *USBAdapter) claim(device *gousb.Device) error {
	cfgNum, err := device.ActiveConfigNum()
	if err != nil {
		return fmt.Errorf("failed to get active config: %w", err)
	}

	cfg, err := device.Config(cfgNum)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	a.config = cfg

	printerIfaceNum := -1
	for _, iface := range cfg.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == IfaceClassPrinter {
				printerIfaceNum = iface.Number
				break
			}
		}
		if printerIfaceNum >= 0 {
			break
		}
	}

	if printerIfaceNum < 0 {
		return errors.New("no printer interface found")
	}

	iface, err := cfg.Interface(printerIfaceNum, 0)
	if err != nil {
		return fmt.Errorf("failed to claim interface: %w", err)
	}
	a.iface = iface

	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut && a.outEndpoint == nil {
			if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
				a.outEndpoint = ep
			}
		}
		if epDesc.Direction == gousb.EndpointDirectionIn && a.inEndpoint == nil {
			if ep, err := iface.InEndpoint(epDesc.Number); err == nil {
				a.inEndpoint = ep
			}
		}
	}

	if a.outEndpoint == nil {
		return errors.New("cannot find output endpoint from printer")
	}
	return nil
}

// Write sends data to the printer
func (a *USBAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, ErrNotOpen
	}

	n, err := a.outEndpoint.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}

	return n, nil
}

// Read reads data from the printer
func (a *USBAdapter) Read(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, ErrNotOpen
	}

	if a.inEndpoint == nil {
		return 0, errors.New("input endpoint not available")
	}

	n, err := a.inEndpoint.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read failed: %w", err)
	}

	return n, nil
}

func (a *USBAdapter) releaseHandles() {
	if a.iface != nil {
		a.iface.Close()
		a.iface = nil
	}
	if a.config != nil {
		a.config.Close()
		a.config = nil
	}
	a.outEndpoint = nil
	a.inEndpoint = nil
}

// Close releases the interface and closes the device handle. The adapter
// can be opened again afterwards.
func (a *USBAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return nil
	}

	a.releaseHandles()

	var err error
	if a.device != nil {
		err = a.device.Close()
		a.device = nil
	}

	a.isOpen = false
	a.logger.Debug().Msg("device closed")

	if err != nil {
		return fmt.Errorf("close errors: %w", err)
	}
	return nil
}

// Release closes the device, if open, and the libusb context.
func (a *USBAdapter) Release() error {
	if err := a.Close(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx == nil {
		return nil
	}
	err := a.ctx.Close()
	a.ctx = nil
	return err
}

// IsOpen returns whether the device is open
func (a *USBAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isOpen
}

// GetDevice returns the underlying USB device
func (a *USBAdapter) GetDevice() *gousb.Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.device
}

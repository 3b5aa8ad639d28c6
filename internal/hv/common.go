package hv

import (
	"errors"
	"fmt"
	"io"
	"runtime"
)

var (
	ErrInterrupted           = errors.New("operation interrupted")
	ErrVMHalted              = errors.New("virtual machine halted")
	ErrHypervisorUnsupported = errors.New("hypervisor unsupported on this platform")
	ErrGuestRequestedReboot  = errors.New("guest requested reboot")
	ErrYield                 = errors.New("yield to host")
	ErrUserYield             = errors.New("user yield to host")
)

type CpuArchitecture string

const (
	ArchitectureInvalid CpuArchitecture = "invalid"
	ArchitectureX86_64  CpuArchitecture = "x86_64"
	ArchitectureARM64   CpuArchitecture = "arm64"
	ArchitectureRISCV64 CpuArchitecture = "riscv64"
)

var ArchitectureNative CpuArchitecture

func init() {
	switch runtime.GOARCH {
	case "amd64":
		ArchitectureNative = ArchitectureX86_64
	case "arm64":
		ArchitectureNative = ArchitectureARM64
	}
}

// Device is anything that can be attached to a VirtualMachine and take part
// in its MMIO dispatch.
type Device interface {
	Init(vm VirtualMachine) error
}

// DeviceTemplate produces a Device once the VM it will be attached to (and
// therefore its address space and IRQ allocator) is known.
type DeviceTemplate interface {
	Create(vm VirtualMachine) (Device, error)
}

// ExitContext carries the single-vCPU identity a fault was raised on through
// to MMIO dispatch. It intentionally exposes nothing about the fault
// dispatcher or vCPU run loop that produced it.
type ExitContext interface {
	VCPUId() int
}

type MMIORegion struct {
	Address uint64
	Size    uint64
}

type MemoryMappedIODevice interface {
	Device

	MMIORegions() []MMIORegion

	ReadMMIO(ctx ExitContext, addr uint64, data []byte) error
	WriteMMIO(ctx ExitContext, addr uint64, data []byte) error
}

type SimpleMMIODevice struct {
	Regions []MMIORegion

	ReadFunc  func(ctx ExitContext, addr uint64, data []byte) error
	WriteFunc func(ctx ExitContext, addr uint64, data []byte) error
}

func (d SimpleMMIODevice) MMIORegions() []MMIORegion { return d.Regions }
func (d SimpleMMIODevice) ReadMMIO(ctx ExitContext, addr uint64, data []byte) error {
	if d.ReadFunc != nil {
		return d.ReadFunc(ctx, addr, data)
	}
	return fmt.Errorf("unhandled read from MMIO address 0x%X", addr)
}
func (d SimpleMMIODevice) WriteMMIO(ctx ExitContext, addr uint64, data []byte) error {
	if d.WriteFunc != nil {
		return d.WriteFunc(ctx, addr, data)
	}
	return fmt.Errorf("unhandled write to MMIO address 0x%X", addr)
}
func (d SimpleMMIODevice) Init(vm VirtualMachine) error {
	return nil
}

var (
	_ MemoryMappedIODevice = SimpleMMIODevice{}
)

// MemoryRegion is a slice of guest physical memory backing a device, such as
// the DMA pool a shared-ring transport negotiates with a peer domain.
type MemoryRegion interface {
	io.ReaderAt
	io.WriterAt

	Size() uint64
}

// MMIOAllocationRequest describes a device's MMIO footprint requirements so
// the address space allocator can place it above guest RAM, after every
// earlier allocation. Registered fixed regions (GIC, UART, ...) are not
// consulted when placing it.
type MMIOAllocationRequest struct {
	Name      string
	Size      uint64
	Alignment uint64
}

// MMIOAllocation is the placement the allocator returned for a prior
// MMIOAllocationRequest, or a pre-determined fixed region.
type MMIOAllocation struct {
	Name string
	Base uint64
	Size uint64
}

// VirtualMachine is the surface a virtio device needs from its host: guest
// memory access, MMIO region allocation, interrupt injection and device
// registration. It deliberately excludes vCPU control, boot/loader glue and
// snapshotting — those belong to layers outside the virtio core.
type VirtualMachine interface {
	io.ReaderAt
	io.WriterAt

	io.Closer

	Hypervisor() Hypervisor

	MemorySize() uint64
	MemoryBase() uint64

	// SetIRQ raises or lowers a guest IRQ line. A virtio device's interrupt
	// injector calls this after making its used-buffer or config-change
	// notification visible, never before.
	SetIRQ(irqLine uint32, level bool) error

	AddDevice(dev Device) error
	AddDeviceFromTemplate(template DeviceTemplate) error

	AllocateMemory(physAddr, size uint64) (MemoryRegion, error)
	AllocateMMIO(req MMIOAllocationRequest) (MMIOAllocation, error)
}

type Hypervisor interface {
	io.Closer

	Architecture() CpuArchitecture

	NewVirtualMachine(config VMConfig) (VirtualMachine, error)
}

// VMConfig carries the handful of properties a VirtualMachine needs at
// construction time. Boot source selection, vCPU scheduling and the fault
// dispatch loop live outside the virtio core and are not modeled here.
type VMConfig interface {
	CPUCount() int
	MemorySize() uint64
	MemoryBase() uint64
}

type SimpleVMConfig struct {
	NumCPUs int
	MemSize uint64
	MemBase uint64
}

func (c SimpleVMConfig) CPUCount() int      { return c.NumCPUs }
func (c SimpleVMConfig) MemorySize() uint64 { return c.MemSize }
func (c SimpleVMConfig) MemoryBase() uint64 { return c.MemBase }

var (
	_ VMConfig = SimpleVMConfig{}
)

package adapter

import (
	"go.bug.st/serial/enumerator"

	"github.com/fluxfox-go/fluxfox/hfe"
)

// FloppyAdapter defines the interface for floppy disk adapters
type FloppyAdapter interface {
	// PrintStatus prints adapter status information to stdout
	PrintStatus()
	// Read reads the given number of cylinders off the floppy disk
	Read(cylinders int) (*hfe.Disk, error)
	// Write writes a disk image to the floppy disk, up to numCylinders
	Write(disk *hfe.Disk, numCylinders int) error
	// Erase overwrites the given number of cylinders with erase patterns
	Erase(cylinders int) error
}

// NewClientFunc is a function type that creates a new adapter client
type NewClientFunc func(portDetails *enumerator.PortDetails) (FloppyAdapter, error)


// Package workload describes user programs as traces of memory accesses and
// replays them on a machine.
package workload

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/nachos/mem/vm"
)

// Op is the kind of an access.
type Op string

// The supported operations.
const (
	// Read loads a value from memory.
	Read Op = "read"
	// Write stores a value into memory.
	Write Op = "write"
	// Exit ends the address space and releases its memory.
	Exit Op = "exit"
)

// An Access is one step of a workload.
type Access struct {
	AddressSpace vm.AddressSpaceID `yaml:"asid"`
	Op           Op                `yaml:"op"`
	Addr         int               `yaml:"addr"`
	Size         int               `yaml:"size"`
	Value        int               `yaml:"value"`

	// Expect, if set, is the value a read must return.
	Expect *int `yaml:"expect"`
}

func (a Access) String() string {
	switch a.Op {
	case Read:
		return fmt.Sprintf("asid %d read %d bytes at 0x%x",
			a.AddressSpace, a.Size, a.Addr)
	case Write:
		return fmt.Sprintf("asid %d write %d bytes at 0x%x: %d",
			a.AddressSpace, a.Size, a.Addr, a.Value)
	default:
		return fmt.Sprintf("asid %d %s", a.AddressSpace, a.Op)
	}
}

// A Workload is an ordered list of accesses, possibly interleaving several
// address spaces.
type Workload struct {
	Name     string   `yaml:"name"`
	Accesses []Access `yaml:"accesses"`
}

// ErrInvalidAccess is returned when a workload contains an access that can
// never be performed.
var ErrInvalidAccess = errors.New("invalid access")

// Load reads a workload from a YAML file.
func Load(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading workload %s: %w", path, err)
	}

	return w, nil
}

// Parse decodes a workload from YAML. Sizes default to a word and operations
// are case-insensitive.
func Parse(data []byte) (*Workload, error) {
	w := &Workload{}

	err := yaml.Unmarshal(data, w)
	if err != nil {
		return nil, err
	}

	for i := range w.Accesses {
		a := &w.Accesses[i]
		a.Op = Op(strings.ToLower(strings.TrimSpace(string(a.Op))))

		if a.Size == 0 {
			a.Size = 4
		}

		err = validate(*a)
		if err != nil {
			return nil, fmt.Errorf("access %d: %w", i, err)
		}
	}

	return w, nil
}

func validate(a Access) error {
	if a.AddressSpace < 0 {
		return fmt.Errorf("%w: negative address space %d",
			ErrInvalidAccess, a.AddressSpace)
	}

	switch a.Op {
	case Read, Write, Exit:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidAccess, a.Op)
	}

	switch a.Size {
	case 1, 2, 4:
	default:
		return fmt.Errorf("%w: size %d", ErrInvalidAccess, a.Size)
	}

	if a.Op != Exit && a.Addr < 0 {
		return fmt.Errorf("%w: negative address %d", ErrInvalidAccess, a.Addr)
	}

	if a.Expect != nil && a.Op != Read {
		return fmt.Errorf("%w: only reads can expect a value",
			ErrInvalidAccess)
	}

	return nil
}

// AddressSpaces returns the distinct address spaces of the workload in order
// of first appearance.
func (w *Workload) AddressSpaces() []vm.AddressSpaceID {
	seen := make(map[vm.AddressSpaceID]bool)

	var spaces []vm.AddressSpaceID

	for _, a := range w.Accesses {
		if !seen[a.AddressSpace] {
			seen[a.AddressSpace] = true
			spaces = append(spaces, a.AddressSpace)
		}
	}

	return spaces
}

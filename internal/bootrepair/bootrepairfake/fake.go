// Package bootrepairfake provides an in-memory Repairer for tests and dry
// runs.
package bootrepairfake

import (
	"context"
	"sync"
)

// Repair is one recorded repair call.
type Repair struct {
	Target rune
	UEFI   bool
}

// Repairer is a fake implementation of bootrepair.Repairer.
type Repairer struct {
	mu sync.Mutex

	// Err makes every repair fail with this error when set.
	Err error

	repairs []Repair
}

// NewRepairer creates a fake boot repairer.
func NewRepairer() *Repairer { return &Repairer{} }

func (r *Repairer) Repair(_ context.Context, target rune, uefi bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repairs = append(r.repairs, Repair{Target: target, UEFI: uefi})
	return r.Err
}

// Repairs returns the recorded repair calls.
func (r *Repairer) Repairs() []Repair {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Repair{}, r.repairs...)
}

package bootrepair_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peforge/peforge/internal/bootrepair"
)

type call struct {
	tool string
	args []string
}

// scriptedExecer replays canned results and records the tools it ran.
type scriptedExecer struct {
	errs  []error
	calls []call
}

func (e *scriptedExecer) Run(_ context.Context, tool string, args ...string) ([]byte, error) {
	e.calls = append(e.calls, call{tool: tool, args: args})

	if len(e.errs) == 0 {
		return []byte("Boot files successfully created.\n"), nil
	}
	err := e.errs[0]
	e.errs = e.errs[1:]
	if err != nil {
		return []byte("Failure when attempting to copy boot files.\n"), err
	}
	return []byte("Boot files successfully created.\n"), nil
}

func newTools(t *testing.T, execer bootrepair.Execer) *bootrepair.Tools {
	t.Helper()

	tools, err := bootrepair.NewTools(bootrepair.ToolsConfig{Execer: execer})
	require.NoError(t, err)

	return tools
}

func TestToolsRepair(t *testing.T) {
	exitErr := fmt.Errorf("exit status 1")

	tests := map[string]struct {
		uefi     bool
		errs     []error
		expCalls []call
		expErr   bool
	}{
		"A UEFI repair should run bcdboot with the UEFI firmware flag.": {
			uefi: true,
			expCalls: []call{
				{tool: "bcdboot.exe", args: []string{`C:\Windows`, "/f", "UEFI"}},
			},
		},

		"A BIOS repair should run bcdboot with the ALL firmware flag.": {
			expCalls: []call{
				{tool: "bcdboot.exe", args: []string{`C:\Windows`, "/f", "ALL"}},
			},
		},

		"A failing UEFI repair should not fall back to bootsect.": {
			uefi:   true,
			errs:   []error{exitErr},
			expErr: true,
			expCalls: []call{
				{tool: "bcdboot.exe", args: []string{`C:\Windows`, "/f", "UEFI"}},
			},
		},

		"A failing BIOS repair should rewrite the boot sector and retry.": {
			errs: []error{exitErr, nil, nil},
			expCalls: []call{
				{tool: "bcdboot.exe", args: []string{`C:\Windows`, "/f", "ALL"}},
				{tool: "bootsect.exe", args: []string{"/nt60", "C:", "/force", "/mbr"}},
				{tool: "bcdboot.exe", args: []string{`C:\Windows`, "/f", "ALL"}},
			},
		},

		"A BIOS repair failing even after the boot sector rewrite should fail.": {
			errs:   []error{exitErr, nil, exitErr},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			execer := &scriptedExecer{errs: test.errs}
			tools := newTools(t, execer)

			err := tools.Repair(context.TODO(), 'C', test.uefi)

			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}
			if test.expCalls != nil {
				assert.Equal(test.expCalls, execer.calls)
			}
		})
	}
}

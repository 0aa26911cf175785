package unattend_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peforge/peforge/internal/unattend"
)

type staticProber struct {
	version unattend.Version
	err     error
}

func (p staticProber) WindowsVersion(string) (unattend.Version, error) { return p.version, p.err }

func TestGeneratorGenerate(t *testing.T) {
	tests := map[string]struct {
		prober      staticProber
		opts        unattend.Options
		expContains []string
		expMissing  []string
	}{
		"A win10 image should get account, autologon and store app removal.": {
			prober: staticProber{version: unattend.VersionWin10},
			opts:   unattend.Options{Username: "deploy", RemoveUWPApps: true},
			expContains: []string{
				"<Name>deploy</Name>",
				"<Username>deploy</Username>",
				"<HideOnlineAccountScreens>true</HideOnlineAccountScreens>",
				"Remove-AppxPackage",
			},
		},

		"A win7 image should skip store app removal and online account screens.": {
			prober: staticProber{version: unattend.VersionWin7},
			opts:   unattend.Options{Username: "deploy", RemoveUWPApps: true},
			expContains: []string{
				"<Name>deploy</Name>",
			},
			expMissing: []string{
				"Remove-AppxPackage",
				"HideOnlineAccountScreens",
			},
		},

		"An empty username should default to Admin.": {
			prober: staticProber{version: unattend.VersionWin10},
			expContains: []string{
				"<Name>Admin</Name>",
			},
		},

		"A failing probe should fall back to the win10 variant.": {
			prober: staticProber{err: fmt.Errorf("no ntdll")},
			opts:   unattend.Options{Username: "deploy"},
			expContains: []string{
				"<HideOnlineAccountScreens>true</HideOnlineAccountScreens>",
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			gen, err := unattend.NewGenerator(unattend.GeneratorConfig{Prober: test.prober})
			require.NoError(t, err)

			root := t.TempDir()
			require.NoError(t, gen.Generate(root, test.opts))

			for _, rel := range []string{
				filepath.Join("Windows", "Panther", "unattend.xml"),
				filepath.Join("Windows", "System32", "Sysprep", "unattend.xml"),
			} {
				data, err := os.ReadFile(filepath.Join(root, rel))
				require.NoError(t, err, rel)

				content := string(data)
				for _, s := range test.expContains {
					assert.Contains(content, s)
				}
				for _, s := range test.expMissing {
					assert.NotContains(content, s)
				}
			}
		})
	}
}

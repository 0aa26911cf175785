package imaging_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peforge/peforge/internal/imaging"
	"github.com/peforge/peforge/internal/model"
)

// scriptedRunner replays canned output lines and records the argument lists
// it was invoked with.
type scriptedRunner struct {
	lines [][]string
	err   error
	calls [][]string
}

func (r *scriptedRunner) Run(_ context.Context, onLine func(string), _ string, args ...string) error {
	r.calls = append(r.calls, args)

	var lines []string
	if len(r.lines) > 0 {
		lines = r.lines[0]
		r.lines = r.lines[1:]
	}
	for _, l := range lines {
		onLine(l)
	}

	return r.err
}

func newTestEngine(t *testing.T, runner imaging.LineRunner) *imaging.DISMEngine {
	t.Helper()

	engine, err := imaging.NewDISMEngine(imaging.DISMEngineConfig{Runner: runner})
	require.NoError(t, err)

	return engine
}

func TestDISMEngineApply(t *testing.T) {
	assert := assert.New(t)

	runner := &scriptedRunner{lines: [][]string{{
		"Deployment Image Servicing and Management tool",
		"Applying image",
		"[==                         10.0%           ]",
		"[=============              52.3%           ]",
		"[==========================100.0%==========]",
		"The operation completed successfully.",
	}}}
	engine := newTestEngine(t, runner)

	var percents []int
	err := engine.Apply(context.TODO(), imaging.ApplyOptions{
		ImagePath:   `D:\images\win10.wim`,
		TargetRoot:  `C:\`,
		VolumeIndex: 2,
		Progress:    func(p int, _ string) { percents = append(percents, p) },
	})

	require.NoError(t, err)
	assert.Equal([]int{10, 52, 100}, percents)
	require.Len(t, runner.calls, 1)
	assert.Equal([]string{
		"/Apply-Image",
		`/ImageFile:D:\images\win10.wim`,
		"/Index:2",
		`/ApplyDir:C:\`,
	}, runner.calls[0])
}

func TestDISMEngineApplyFailure(t *testing.T) {
	assert := assert.New(t)

	runner := &scriptedRunner{
		lines: [][]string{{"Error: 2", "The system cannot find the file specified."}},
		err:   fmt.Errorf("exit status 2"),
	}
	engine := newTestEngine(t, runner)

	err := engine.Apply(context.TODO(), imaging.ApplyOptions{ImagePath: "missing.wim", TargetRoot: `C:\`, VolumeIndex: 1})

	require.Error(t, err)
	assert.Contains(err.Error(), "cannot find the file")
}

func TestDISMEngineCapture(t *testing.T) {
	tests := map[string]struct {
		opts     imaging.CaptureOptions
		expCalls [][]string
	}{
		"A WIM capture should name and describe the image.": {
			opts: imaging.CaptureOptions{
				SourceRoot:  `C:\`,
				ImagePath:   `E:\backup\sys.wim`,
				Name:        "sys",
				Description: "weekly",
				Format:      model.ImageFormatWIM,
			},
			expCalls: [][]string{{
				"/Capture-Image",
				`/ImageFile:E:\backup\sys.wim`,
				`/CaptureDir:C:\`,
				"/Name:sys",
				"/Description:weekly",
			}},
		},

		"An ESD capture should use recovery compression.": {
			opts: imaging.CaptureOptions{
				SourceRoot: `C:\`,
				ImagePath:  `E:\backup\sys.esd`,
				Name:       "sys",
				Format:     model.ImageFormatESD,
			},
			expCalls: [][]string{{
				"/Capture-Image",
				`/ImageFile:E:\backup\sys.esd`,
				`/CaptureDir:C:\`,
				"/Name:sys",
				"/Compress:recovery",
			}},
		},

		"An incremental capture should append to the existing image.": {
			opts: imaging.CaptureOptions{
				SourceRoot:  `C:\`,
				ImagePath:   `E:\backup\sys.wim`,
				Name:        "sys",
				Format:      model.ImageFormatWIM,
				Incremental: true,
			},
			expCalls: [][]string{{
				"/Append-Image",
				`/ImageFile:E:\backup\sys.wim`,
				`/CaptureDir:C:\`,
				"/Name:sys",
			}},
		},

		"An SWM capture should split the image after capturing.": {
			opts: imaging.CaptureOptions{
				SourceRoot:  `C:\`,
				ImagePath:   `E:\backup\sys.wim`,
				Name:        "sys",
				Format:      model.ImageFormatSWM,
				SplitSizeMB: 4000,
			},
			expCalls: [][]string{
				{
					"/Capture-Image",
					`/ImageFile:E:\backup\sys.wim`,
					`/CaptureDir:C:\`,
					"/Name:sys",
				},
				{
					"/Split-Image",
					`/ImageFile:E:\backup\sys.wim`,
					`/SWMFile:E:\backup\sys.swm`,
					"/FileSize:4000",
				},
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			runner := &scriptedRunner{}
			engine := newTestEngine(t, runner)

			err := engine.Capture(context.TODO(), test.opts)

			require.NoError(t, err)
			assert.Equal(t, test.expCalls, runner.calls)
		})
	}
}

func TestDISMEngineDrivers(t *testing.T) {
	assert := assert.New(t)

	runner := &scriptedRunner{}
	engine := newTestEngine(t, runner)

	require.NoError(t, engine.AddDrivers(context.TODO(), `C:\`, `E:\drivers`))
	require.NoError(t, engine.ExportDrivers(context.TODO(), `D:\`, `E:\drivers`))

	assert.Equal([][]string{
		{`/Image:C:\`, "/Add-Driver", `/Driver:E:\drivers`, "/Recurse"},
		{`/Image:D:\`, "/Export-Driver", `/Destination:E:\drivers`},
	}, runner.calls)
}

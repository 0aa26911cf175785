// Package unattend generates the answer file that skips the out-of-box
// experience on first boot of a freshly applied image.
package unattend

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/peforge/peforge/internal/log"
)

// Version is the Windows generation of the applied image. Answer files are
// not fully portable across generations.
type Version int

const (
	VersionUnknown Version = iota
	VersionWin7
	VersionWin8
	VersionWin10
)

func (v Version) String() string {
	switch v {
	case VersionWin7:
		return "win7"
	case VersionWin8:
		return "win8"
	case VersionWin10:
		return "win10"
	default:
		return "unknown"
	}
}

// Prober detects the Windows generation of an offline image root.
type Prober interface {
	WindowsVersion(root string) (Version, error)
}

// Options select the answer file contents.
type Options struct {
	// Username is the local account created at first boot. Defaults to
	// "Admin".
	Username string
	// RemoveUWPApps adds a first-logon command stripping the bundled
	// store apps. Ignored on Windows 7 images, which have none.
	RemoveUWPApps bool
}

// GeneratorConfig is the configuration of the answer file generator.
type GeneratorConfig struct {
	Prober Prober
	Logger log.Logger
}

func (c *GeneratorConfig) defaults() error {
	if c.Prober == nil {
		c.Prober = NewProber()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "unattend.Generator"})

	return nil
}

// Generator writes answer files into an offline image.
type Generator struct {
	prober Prober
	logger log.Logger
}

// NewGenerator creates a new answer file generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Generator{
		prober: cfg.Prober,
		logger: cfg.Logger,
	}, nil
}

// Generate probes the image generation and writes the matching unattend.xml
// into the places Windows setup looks at: Windows\Panther and the Sysprep
// directory.
func (g *Generator) Generate(targetRoot string, opts Options) error {
	version, err := g.prober.WindowsVersion(targetRoot)
	if err != nil {
		g.logger.Warningf("could not detect Windows generation of %s, assuming win10: %s", targetRoot, err)
		version = VersionWin10
	}

	if opts.Username == "" {
		opts.Username = "Admin"
	}
	if version == VersionWin7 {
		opts.RemoveUWPApps = false
	}

	content, err := render(version, opts)
	if err != nil {
		return fmt.Errorf("could not render answer file: %w", err)
	}

	targets := []string{
		filepath.Join(targetRoot, "Windows", "Panther", "unattend.xml"),
		filepath.Join(targetRoot, "Windows", "System32", "Sysprep", "unattend.xml"),
	}
	for _, path := range targets {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("could not create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, content, 0644); err != nil {
			return fmt.Errorf("could not write %s: %w", path, err)
		}
	}

	g.logger.Infof("Wrote %s answer file for user %q", version, opts.Username)

	return nil
}

type templateData struct {
	Options
	Version Version
	// ProcessorArchitecture is the component arch attribute value.
	ProcessorArchitecture string
}

func render(version Version, opts Options) ([]byte, error) {
	data := templateData{
		Options:               opts,
		Version:               version,
		ProcessorArchitecture: "amd64",
	}

	var buf bytes.Buffer
	if err := answerTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var answerTemplate = template.Must(template.New("unattend").Parse(`<?xml version="1.0" encoding="utf-8"?>
<unattend xmlns="urn:schemas-microsoft-com:unattend">
  <settings pass="oobeSystem">
    <component name="Microsoft-Windows-Shell-Setup" processorArchitecture="{{ .ProcessorArchitecture }}" publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
      <OOBE>
        <HideEULAPage>true</HideEULAPage>
        <ProtectYourPC>3</ProtectYourPC>
        <NetworkLocation>Home</NetworkLocation>
{{- if ne .Version.String "win7" }}
        <HideOnlineAccountScreens>true</HideOnlineAccountScreens>
        <HideLocalAccountScreen>true</HideLocalAccountScreen>
{{- end }}
        <HideWirelessSetupInOOBE>true</HideWirelessSetupInOOBE>
      </OOBE>
      <UserAccounts>
        <LocalAccounts>
          <LocalAccount wcm:action="add" xmlns:wcm="http://schemas.microsoft.com/WMIConfig/2002/State">
            <Name>{{ .Username }}</Name>
            <Group>Administrators</Group>
            <DisplayName>{{ .Username }}</DisplayName>
          </LocalAccount>
        </LocalAccounts>
      </UserAccounts>
      <AutoLogon>
        <Enabled>true</Enabled>
        <LogonCount>1</LogonCount>
        <Username>{{ .Username }}</Username>
      </AutoLogon>
{{- if .RemoveUWPApps }}
      <FirstLogonCommands>
        <SynchronousCommand wcm:action="add" xmlns:wcm="http://schemas.microsoft.com/WMIConfig/2002/State">
          <Order>1</Order>
          <CommandLine>powershell -ExecutionPolicy Bypass -Command "Get-AppxPackage -AllUsers | Remove-AppxPackage -ErrorAction SilentlyContinue"</CommandLine>
          <Description>Remove bundled store apps</Description>
        </SynchronousCommand>
      </FirstLogonCommands>
{{- end }}
    </component>
  </settings>
</unattend>
`))

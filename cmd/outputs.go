package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zsolt-donca/scanout/internal/config"
	"github.com/zsolt-donca/scanout/internal/drm"
)

// OutputInfo represents one connector in the listing
type OutputInfo struct {
	Name       string   `json:"name"`
	Connected  bool     `json:"connected"`
	PhysWidth  uint32   `json:"phys_width_mm"`
	PhysHeight uint32   `json:"phys_height_mm"`
	Modes      []string `json:"modes"`
}

var (
	jsonOutput bool

	nameStyle         = lipgloss.NewStyle().Bold(true)
	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	modeStyle         = lipgloss.NewStyle().PaddingLeft(4)
)

var outputsCmd = &cobra.Command{
	Use:   "outputs",
	Short: "List connectors and their modes",
	Long:  `Query the DRM device once and list every connector with its connection state and supported modes.`,
	RunE:  runOutputs,
}

func init() {
	outputsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func runOutputs(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	dev, err := drm.Open(cfg.DevicePath())
	if err != nil {
		return err
	}
	defer dev.Close()

	res, err := dev.Resources()
	if err != nil {
		return err
	}

	var outputs []OutputInfo
	for _, id := range res.Connectors {
		conn, err := dev.Connector(id)
		if err != nil {
			continue
		}

		info := OutputInfo{
			Name:       conn.Name(),
			Connected:  conn.Connection == drm.Connected,
			PhysWidth:  conn.PhysWidth,
			PhysHeight: conn.PhysHeight,
		}
		if info.Connected {
			for _, m := range conn.Modes {
				info.Modes = append(info.Modes, m.String())
			}
		}
		outputs = append(outputs, info)
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(outputs)
	}

	var sb strings.Builder
	for _, out := range outputs {
		state := disconnectedStyle.Render("disconnected")
		if out.Connected {
			state = connectedStyle.Render("connected")
		}
		fmt.Fprintf(&sb, "%s %s\n", nameStyle.Render(out.Name), state)
		for _, m := range out.Modes {
			sb.WriteString(modeStyle.Render(m))
			sb.WriteByte('\n')
		}
	}
	fmt.Print(sb.String())
	return nil
}

package cmd

import (
	"fmt"
	"os"
	"text/template"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/cobra"
)

// enumerateCmd represents the enumerate command
var enumerateCmd = &cobra.Command{
	Use:   "enumerate",
	Short: "List all available audio output devices and supported Host APIs",
	Long:  `List all available audio output devices and supported Host APIs`,
	Run: func(cmd *cobra.Command, args []string) {
		enumerate()
	},
}

func init() {
	RootCmd.AddCommand(enumerateCmd)
}

var tmpl = template.Must(template.New("").Parse(
	`
Available audio output devices and supported Host APIs:

	Detected {{. | len}} host API(s): {{range .}}

	Name:                   {{.Name}}
	{{if .DefaultOutputDevice}}Default output device:  {{.DefaultOutputDevice.Name}}{{end}}
	Devices: {{range .Devices}}{{if .MaxOutputChannels}}
		Name:                      {{.Name}}
		MaxOutputChannels:         {{.MaxOutputChannels}}
		DefaultLowOutputLatency:   {{.DefaultLowOutputLatency}}
		DefaultHighOutputLatency:  {{.DefaultHighOutputLatency}}
		DefaultSampleRate:         {{.DefaultSampleRate}}
	{{end}}{{end}}
{{end}}`,
))

// enumerate lists all available audio devices on the system
func enumerate() {
	portaudio.Initialize()
	defer portaudio.Terminate()

	hs, err := portaudio.HostApis()
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := tmpl.Execute(os.Stdout, hs); err != nil {
		fmt.Println(err)
	}
}

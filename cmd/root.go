package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// RootCmd represents the base command when called without any
// subcommands
var RootCmd = &cobra.Command{
	Use:   "klang",
	Short: "klang is a headless music player with a web control surface",
	Long: `klang is a headless music player.

It decodes local audio files (wav, flac, ogg/opus), routes them through
a real-time effects chain (equalizer, bass boost, pitch/tempo, reverb,
echo) and plays them on a local sound card. Playback is controlled
through an embedded web interface and a JSON API, which also serves
spectrum and waveform data for visualizers.
`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.klang.yaml)")
}

// initConfig reads in the config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".klang")
		viper.AddConfigPath("$HOME")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("klang")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("using config file:", viper.ConfigFileUsed())
	}
}

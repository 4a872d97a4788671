package cmd

import (
	"os"
	"os/signal"

	"github.com/beamdrop/beamdrop/internal/ui"
	"github.com/beamdrop/beamdrop/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "beamdrop",
	Short:   "Peer-to-peer encrypted file transfer over WebRTC",
	Long: `BeamDrop pairs two endpoints by a short room code, negotiates a direct
WebRTC data channel between them, and streams files end-to-end encrypted
with AES-256-GCM. No intermediary ever sees file contents.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/beamdrop/beamdrop/internal/config"
	"github.com/beamdrop/beamdrop/internal/files"
	"github.com/beamdrop/beamdrop/internal/transfer"
	"github.com/beamdrop/beamdrop/internal/ui"
	"github.com/beamdrop/beamdrop/internal/utils"
)

var (
	flagDomain   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

var sendCmd = &cobra.Command{
	Use:     "send <file...>",
	Aliases: []string{"s"},
	Short:   "Send files to a receiver",
	Long: `Send one or more files, or whole directories, to a receiver over a
direct WebRTC data channel, encrypted end-to-end with AES-256-GCM.

Examples:
  beamdrop send file1.txt file2.pdf
  beamdrop send --domain custom.example.com ./build
  beamdrop send --relay file.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendFiles(args)
	},
}

func sendFiles(filePaths []string) error {
	stop := ui.RunSpinner("Validating files...")
	fileInfos, err := files.ValidateFiles(filePaths)
	stop()
	if err != nil {
		return err
	}
	displayFileTable(fileInfos)

	cfg, err := LoadConfig(config.Options{
		Domain:     flagDomain,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
	if err != nil {
		return err
	}

	queue, err := transfer.BuildQueue(fileInfos)
	if err != nil {
		return err
	}

	fmt.Println()
	stop = ui.RunConnectionSpinner("Connecting to server...")
	connCtx, err := NewConnectionContext(cfg)
	stop()
	if err != nil {
		return err
	}
	defer connCtx.Close()

	if err := connCtx.CreateRoom(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(ui.NewRoomInfo(connCtx.RoomID, cfg.GetRoomLink(connCtx.RoomID)).View())

	fmt.Println()
	stop = ui.RunWaitingSpinner("Waiting for receiver to join...")
	err = connCtx.WaitForPeer()
	stop()
	if err != nil {
		return err
	}

	stop = ui.RunConnectionSpinner("Negotiating connection...")
	engine, err := connCtx.RunHandshake()
	stop()
	if err != nil {
		return err
	}

	queued := transfer.QueueFileInfos(queue)
	names := make([]string, len(queued))
	sizes := make([]int64, len(queued))
	for i, f := range queued {
		names[i] = f.Name
		sizes[i] = f.Size
	}
	index := indexByFileID(queued)

	tui := ui.NewTransferUI(ui.ModeSend, names, sizes)
	engine.OnProgress = func(s transfer.ProgressSample) {
		if id, ok := index[s.FileID]; ok {
			tui.UpdateProgress(id, s.BytesDone)
		}
	}
	engine.OnFileComplete = func(info transfer.FileInfo) {
		if id, ok := index[info.ID]; ok {
			tui.MarkComplete(id)
		}
	}
	engine.OnError = func(err error) {
		tui.SetState(err.Error())
	}

	ctx := context.Background()
	go engine.Listen(ctx)

	if err := engine.ExportKey(); err != nil {
		tui.Stop()
		return err
	}

	tui.Start()
	start := time.Now()
	sendErr := engine.SendQueue(ctx, queue)
	tui.Stop()

	if sendErr != nil {
		return sendErr
	}

	elapsed := time.Since(start)
	total := files.GetTotalSize(fileInfos)
	var speed float64
	if elapsed.Seconds() > 0 {
		speed = float64(total) / elapsed.Seconds()
	}

	fmt.Println()
	ui.RenderTransferSummary(ui.TransferSummary{
		Status:    "Sent",
		Files:     len(queue),
		TotalSize: utils.FormatSize(total),
		Duration:  utils.FormatTimeDuration(elapsed),
		Speed:     utils.FormatSpeed(speed),
	})

	return nil
}

func indexByFileID(infos []transfer.FileInfo) map[string]int {
	m := make(map[string]int, len(infos))
	for i, f := range infos {
		m[f.ID] = i
	}
	return m
}

func displayFileTable(fileInfos []files.FileInfo) {
	items := make([]ui.FileTableItem, len(fileInfos))
	for i, f := range fileInfos {
		items[i] = ui.FileTableItem{Index: i + 1, Name: f.Name, Size: f.Size, Type: f.Type}
	}
	fmt.Println()
	ui.RenderFileTable(items)
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom domain")
	sendCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	sendCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	sendCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	sendCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	sendCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
}

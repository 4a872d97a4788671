package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/beamdrop/beamdrop/internal/config"
	"github.com/beamdrop/beamdrop/internal/transfer"
	"github.com/beamdrop/beamdrop/internal/ui"
	"github.com/beamdrop/beamdrop/internal/utils"
)

var (
	flagReceiverDomain   string
	flagReceiverSTUN     string
	flagReceiverTURN     string
	flagReceiverTURNUser string
	flagReceiverTURNPass string
	flagReceiverRelay    bool
	flagReceiverZip      bool
	flagReceiverDir      string
)

var receiveCmd = &cobra.Command{
	Use:     "receive <room-id|url>",
	Aliases: []string{"r"},
	Short:   "Receive files from a sender",
	Long: `Join a sender's room and receive whatever files they queue, over a
direct WebRTC data channel, decrypted as each chunk arrives.

Examples:
  beamdrop receive ABC123
  beamdrop receive https://beamdrop.dev?room=ABC123
  beamdrop receive ABC123 --zip`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return receiveFiles(roomID)
	},
}

// receivedFile tracks the on-disk destination opened for one incoming
// file, so the transfer summary can report real totals once the engine
// closes it out.
type receivedFile struct {
	info transfer.FileInfo
	dest *os.File
}

func receiveFiles(roomID string) error {
	cfg, err := LoadConfig(config.Options{
		Domain:     flagReceiverDomain,
		STUNServer: flagReceiverSTUN,
		TURNServer: flagReceiverTURN,
		TURNUser:   flagReceiverTURNUser,
		TURNPass:   flagReceiverTURNPass,
		ForceRelay: flagReceiverRelay,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	stop := ui.RunConnectionSpinner("Connecting to server...")
	connCtx, err := NewConnectionContext(cfg)
	stop()
	if err != nil {
		return err
	}
	defer connCtx.Close()

	if err := connCtx.JoinRoom(roomID); err != nil {
		return err
	}
	ui.PrintSuccess("Joined room " + roomID)

	stop = ui.RunConnectionSpinner("Negotiating connection...")
	engine, err := connCtx.RunHandshake()
	stop()
	if err != nil {
		return err
	}

	outputDir, cleanup, err := prepareOutputDir(flagReceiverZip, flagReceiverDir)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	names := []string{}
	sizes := []int64{}
	index := map[string]int{}
	tui := ui.NewTransferUI(ui.ModeReceive, names, sizes)
	tui.Start()

	var files []receivedFile
	var totalBytes int64

	engine.OnQueueInfo = func(q transfer.QueueInfo) {
		tui.SetState(fmt.Sprintf("Receiving %d file(s)...", q.TotalFiles))
	}

	engine.OnIncomingFile = func(info transfer.FileInfo) {
		dest, openErr := openDestination(outputDir, info)
		if openErr != nil {
			engine.Decide(transfer.Decision{Accept: false})
			tui.SetState(openErr.Error())
			return
		}

		id := tui.AddFile(info.Name, info.Size)
		index[info.ID] = id
		files = append(files, receivedFile{info: info, dest: dest})

		engine.Decide(transfer.Decision{Accept: true, Dest: dest})
	}

	engine.OnProgress = func(s transfer.ProgressSample) {
		if id, ok := index[s.FileID]; ok {
			tui.UpdateProgress(id, s.BytesDone)
		}
	}

	engine.OnFileComplete = func(info transfer.FileInfo) {
		if id, ok := index[info.ID]; ok {
			tui.MarkComplete(id)
			totalBytes += info.Size
		}
	}

	engine.OnError = func(err error) {
		tui.SetState(err.Error())
	}

	start := time.Now()
	engine.Listen(context.Background())
	tui.Stop()

	elapsed := time.Since(start)
	var speed float64
	if elapsed.Seconds() > 0 {
		speed = float64(totalBytes) / elapsed.Seconds()
	}

	fmt.Println()
	ui.RenderTransferSummary(ui.TransferSummary{
		Status:    "Received",
		Files:     len(files),
		TotalSize: utils.FormatSize(totalBytes),
		Duration:  utils.FormatTimeDuration(elapsed),
		Speed:     utils.FormatSpeed(speed),
	})

	return finalizeReceive(flagReceiverZip, flagReceiverDir, outputDir)
}

// openDestination creates the on-disk file a FILE_INFO offer names,
// recreating any relative directory structure it carries.
func openDestination(outputDir string, info transfer.FileInfo) (*os.File, error) {
	name := info.Name
	if info.Path != "" {
		name = info.Path
	}

	dest := filepath.Join(outputDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, transfer.NewFileError("create directory", name, err)
	}

	dest = utils.GetUniqueFilename(dest)
	f, err := os.Create(dest)
	if err != nil {
		return nil, transfer.NewFileError("create file", name, err)
	}
	return f, nil
}

// prepareOutputDir resolves where received files land. In zip mode they
// land in a scratch temp dir that finalizeReceive folds into a single
// archive and removes afterward.
func prepareOutputDir(zipMode bool, outputDir string) (string, func(), error) {
	if zipMode {
		tempDir, err := os.MkdirTemp("", "beamdrop-receive-*")
		if err != nil {
			return "", nil, transfer.NewError("create temp dir", err)
		}
		return tempDir, func() { os.RemoveAll(tempDir) }, nil
	}

	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", nil, transfer.NewError("create output dir", err)
	}
	return outputDir, nil, nil
}

func finalizeReceive(zipMode bool, outputDir, tempDir string) error {
	if !zipMode {
		return nil
	}

	zipName := fmt.Sprintf("beamdrop-download-%d.zip", time.Now().UnixMilli())
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return transfer.NewError("create output dir", err)
		}
		zipName = filepath.Join(outputDir, zipName)
	}

	fmt.Println()
	stop := ui.RunWaitingSpinner("Zipping files...")
	err := utils.ZipDirectory(tempDir, zipName)
	stop()
	if err != nil {
		return transfer.NewError("zip files", err)
	}
	ui.PrintSuccessf("Files zipped to %s", zipName)

	return nil
}

// parseRoomInput accepts either a bare room code or a shareable room
// link and normalizes it to the room code the signaling server expects.
func parseRoomInput(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if strings.Contains(input, "://") || strings.Contains(input, ".") {
		roomID, err := extractRoomIDFromURL(input)
		if err != nil {
			return "", err
		}
		return roomID, nil
	}

	return input, nil
}

func extractRoomIDFromURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", transfer.NewError("parse URL", err)
	}

	if room := parsedURL.Query().Get("room"); room != "" {
		return room, nil
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", urlStr)
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVar(&flagReceiverDomain, "domain", "", "Custom domain")
	receiveCmd.Flags().StringVarP(&flagReceiverSTUN, "stun", "s", "", "Custom STUN server")
	receiveCmd.Flags().StringVarP(&flagReceiverTURN, "turn", "t", "", "Custom TURN server")
	receiveCmd.Flags().StringVar(&flagReceiverTURNUser, "turn-user", "", "TURN username")
	receiveCmd.Flags().StringVar(&flagReceiverTURNPass, "turn-pass", "", "TURN password")
	receiveCmd.Flags().BoolVarP(&flagReceiverRelay, "relay", "r", false, "Force relay mode")
	receiveCmd.Flags().BoolVarP(&flagReceiverZip, "zip", "z", false, "Zip received files")
	receiveCmd.Flags().StringVarP(&flagReceiverDir, "dir", "d", "", "Directory to save received files")
}

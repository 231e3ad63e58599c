package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/internal/coordlog"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the coordination log as entries are appended",
	Long: `watch tails the coordination log (claims.log) and prints each new
entry as it's appended, the same way 'dittofs logs -f' follows the
server log file. Each invocation is tagged with a random session id
(for correlating 'watch' sessions in support requests) that has no
bearing on the log entries themselves.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}
	logPath := engine.LogPath()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return fmt.Errorf("coordination log not found at %s\nrun 'coordctl recover' to initialize the control directory", logPath)
	}

	sessionID := uuid.NewString()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(logPath); err != nil {
		return fmt.Errorf("failed to watch coordination log: %w", err)
	}

	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open coordination log: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end of coordination log: %w", err)
	}
	reader := bufio.NewReader(file)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "Watching %s (session %s, Ctrl+C to stop)...\n", logPath, sessionID)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write != fsnotify.Write {
				continue
			}
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					break
				}
				printLogLine(line)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func printLogLine(line string) {
	var entry coordlog.Entry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		fmt.Print(line)
		return
	}
	fmt.Printf("[%s] seq=%d %s agent=%s worktree=%s\n",
		entry.Timestamp.Format("15:04:05"), entry.Sequence, entry.EventType,
		entry.Actor.AgentID, entry.Actor.WorktreeID)
}

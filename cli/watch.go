package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"playground.evalgo.org/common"
	"playground.evalgo.org/notify"
	"playground.evalgo.org/operations"
	"playground.evalgo.org/progress"
)

func init() {
	RootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("server", "http://localhost:8090", "playground server base URL")
	watchCmd.Flags().String("api-key", "", "API key for the playground server")
	watchCmd.Flags().Duration("interval", 2*time.Second, "poll interval")
	watchCmd.Flags().Int("max-attempts", 150, "polls before giving up")
}

var watchCmd = &cobra.Command{
	Use:   "watch <operation-id>",
	Short: "follow a running operation until it settles",
	Long: `Polls the operation-status endpoint of a playground server and logs
phase transitions and the final outcome of the operation.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

// logRenderer prints phase transitions instead of driving a UI.
type logRenderer struct{}

func (logRenderer) Render(container string, v progress.Visual) {
	common.Logger.Infof("%s %s: %s", v.Icon, container, v.Text)
}

func (logRenderer) Hide(container string) {}

func runWatch(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	apiKey, _ := cmd.Flags().GetString("api-key")
	interval, _ := cmd.Flags().GetDuration("interval")
	maxAttempts, _ := cmd.Flags().GetInt("max-attempts")

	fetcher := newHTTPFetcher(server, apiKey)
	tracker := progress.NewTracker(logRenderer{})
	notifier := notify.NewDispatcher(notify.LogSink{}, notify.DefaultErrorInterval)
	poller := progress.NewPoller(fetcher, tracker, notifier, progress.Options{
		Interval:    interval,
		MaxAttempts: maxAttempts,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	_, err := poller.Poll(ctx, args[0], args[0])
	return err
}

// httpFetcher reads operation snapshots from a remote playground server.
type httpFetcher struct {
	base   string
	apiKey string
	client *http.Client
}

func newHTTPFetcher(base, apiKey string) *httpFetcher {
	return &httpFetcher{
		base:   base,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *httpFetcher) FetchStatus(ctx context.Context, operationID string) (*operations.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base+"/api/operation-status/"+operationID, nil)
	if err != nil {
		return nil, err
	}
	if f.apiKey != "" {
		req.Header.Set("X-API-Key", f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Unknown (possibly pruned) operations are nil without error, per the
	// Fetcher contract.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("operation-status returned %d", resp.StatusCode)
	}

	var snapshot operations.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/V-Sekai-fire/forge/broker"
	"github.com/V-Sekai-fire/forge/bus"
	"github.com/V-Sekai-fire/forge/codec"
	"github.com/V-Sekai-fire/forge/envconfig"
	"github.com/V-Sekai-fire/forge/logutil"
	"github.com/V-Sekai-fire/forge/zimage"
)

const servicesKeyExpr = "forge/services/**"

func NewCLI() *cobra.Command {
	cfg := envconfig.Load()

	rootCmd := &cobra.Command{
		Use:   "zimagectl",
		Short: "Query image generation services on the bus",
		Long:  "Query image generation services on the bus\n\n" + envHelp(cfg),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
			debug, _ := cmd.Flags().GetInt("debug")
			slog.SetDefault(logutil.NewLogger(os.Stderr, logutil.Level(debug)))
		},
	}
	rootCmd.PersistentFlags().String("broker", cfg.Broker, "Bus endpoint")
	rootCmd.PersistentFlags().String("encoding", cfg.Encoding, "Reply encoding used by the responder (flatbuffers, json)")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "How long to wait for a reply")
	rootCmd.PersistentFlags().Int("debug", cfg.Debug, "Log verbosity (1 debug, 2 trace)")

	def := zimage.DefaultRequest()
	generateCmd := &cobra.Command{
		Use:   "generate PROMPT",
		Short: "Request an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			return queryHandler(cmd, req.Selector(zimage.GenerateKey))
		},
	}
	generateCmd.Flags().Int("width", def.Width, "Image width")
	generateCmd.Flags().Int("height", def.Height, "Image height")
	generateCmd.Flags().Int64("seed", def.Seed, "Random seed")
	generateCmd.Flags().Int("num-steps", def.NumSteps, "Number of inference steps")
	generateCmd.Flags().Float64("guidance-scale", def.GuidanceScale, "Guidance scale")
	generateCmd.Flags().String("output-format", def.OutputFormat, "Output format")

	queryCmd := &cobra.Command{
		Use:   "query SELECTOR",
		Short: "Send a raw selector and print the decoded reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryHandler(cmd, args[0])
		},
	}

	servicesCmd := &cobra.Command{
		Use:   "services [KEYEXPR]",
		Short: "List live services",
		Args:  cobra.MaximumNArgs(1),
		RunE:  servicesHandler,
	}
	servicesCmd.Flags().Duration("wait", time.Second, "How long to collect liveliness tokens")

	brokerCmd := &cobra.Command{
		Use:   "broker",
		Short: "Run an embedded bus broker",
		Args:  cobra.NoArgs,
		RunE:  brokerHandler,
	}
	brokerCmd.Flags().String("addr", "127.0.0.1:1883", "Listen address")

	rootCmd.AddCommand(
		generateCmd,
		queryCmd,
		servicesCmd,
		brokerCmd,
	)

	return rootCmd
}

// envHelp lists the environment variables with their current values.
func envHelp(cfg envconfig.Config) string {
	envs := cfg.AsMap()
	keys := make([]string, 0, len(envs))
	for k := range envs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("Environment Variables:\n")
	for _, k := range keys {
		e := envs[k]
		fmt.Fprintf(&sb, "      %-24s %s (current: %v)\n", e.Name, e.Description, e.Value)
	}
	return sb.String()
}

func requestFromFlags(cmd *cobra.Command, prompt string) (zimage.GenerationRequest, error) {
	req := zimage.DefaultRequest()
	req.Prompt = prompt

	var err error
	flags := cmd.Flags()
	if req.Width, err = flags.GetInt("width"); err != nil {
		return req, err
	}
	if req.Height, err = flags.GetInt("height"); err != nil {
		return req, err
	}
	if req.Seed, err = flags.GetInt64("seed"); err != nil {
		return req, err
	}
	if req.NumSteps, err = flags.GetInt("num-steps"); err != nil {
		return req, err
	}
	if req.GuidanceScale, err = flags.GetFloat64("guidance-scale"); err != nil {
		return req, err
	}
	if req.OutputFormat, err = flags.GetString("output-format"); err != nil {
		return req, err
	}
	return req, nil
}

func openSession(cmd *cobra.Command) (*bus.Session, error) {
	endpoint, err := cmd.Flags().GetString("broker")
	if err != nil {
		return nil, err
	}
	return bus.Open(cmd.Context(), bus.Config{
		Broker:         endpoint,
		ClientIDPrefix: "zimagectl-",
	})
}

func queryHandler(cmd *cobra.Command, selector string) error {
	encoding, _ := cmd.Flags().GetString("encoding")
	c, err := codec.ForName(encoding)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	session, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	payload, err := session.Get(ctx, selector)
	if err != nil {
		return fmt.Errorf("query %s: %w", selector, err)
	}

	resp, err := c.Decode(payload)
	if err != nil {
		return err
	}
	printResponse(cmd.OutOrStdout(), resp)
	return nil
}

func printResponse(out io.Writer, resp zimage.GenerationResponse) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"STATUS", "OUTPUT PATH", "REASON", "RESULT BYTES"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.Append([]string{string(resp.Status), resp.OutputPath, resp.Reason, strconv.Itoa(len(resp.ResultData))})
	table.Render()
}

func servicesHandler(cmd *cobra.Command, args []string) error {
	keyExpr := servicesKeyExpr
	if len(args) > 0 {
		keyExpr = args[0]
	}
	wait, _ := cmd.Flags().GetDuration("wait")

	session, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	var mu sync.Mutex
	alive := make(map[string]bool)
	watch, err := session.WatchLiveliness(cmd.Context(), keyExpr, func(name string, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if ok {
			alive[name] = true
		} else {
			delete(alive, name)
		}
	})
	if err != nil {
		return err
	}
	defer watch.Close()

	select {
	case <-time.After(wait):
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}

	mu.Lock()
	names := make([]string, 0, len(alive))
	for name := range alive {
		names = append(names, name)
	}
	mu.Unlock()

	printServices(cmd.OutOrStdout(), names)
	return nil
}

func printServices(out io.Writer, names []string) {
	sort.Strings(names)
	var data [][]string
	for _, name := range names {
		data = append(data, []string{name})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"SERVICE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

func brokerHandler(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	b, err := broker.Start(addr, slog.Default())
	if err != nil {
		return err
	}
	defer b.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "broker listening on %s\n", b.URL())
	<-cmd.Context().Done()
	return nil
}

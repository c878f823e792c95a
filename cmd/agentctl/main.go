package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/agentledger/agentledger/internal/identity"
	"github.com/agentledger/agentledger/internal/indexer"
	"github.com/agentledger/agentledger/internal/ledger/model"
	"github.com/agentledger/agentledger/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	nodeURL      string
	cfgFile      string
	identityFlag string
	tokenFlag    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "AgentLedger operator CLI",
	Long: `agentctl is the command-line interface for an AgentLedger node.

It registers agents, sends and answers messages, records peer ratings,
queries reputation, and inspects the hash-chained event log behind it all.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".agentledger"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if nodeURL == "" {
			nodeURL = viper.GetString("node_url")
		}
		if nodeURL == "" {
			nodeURL = "http://localhost:8080"
		}
		if identityFlag == "" {
			identityFlag = viper.GetString("identity")
		}
		if tokenFlag == "" {
			tokenFlag = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.agentledger/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&nodeURL, "node", "", "AgentLedger node URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&identityFlag, "identity", "", "submitter identity, sent as X-Submitter (nodes with header identities enabled)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Bearer identity token (see 'agentctl token')")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(reputationCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(ratingCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(respondCmd)
	rootCmd.AddCommand(messageCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(tipCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds the SDK client from the global identity flags. Bearer
// tokens win over header identities.
func newClient() (*client.Client, error) {
	opts := []client.Option{}
	if tokenFlag != "" {
		opts = append(opts, client.WithBearerToken(tokenFlag))
	} else if identityFlag != "" {
		opts = append(opts, client.WithSubmitter(identityFlag))
	}
	return client.New(nodeURL, opts...)
}

// parseID parses a command-line agent or message id.
func parseID(arg, what string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", what, arg)
	}
	return id, nil
}

// ── register ─────────────────────────────────────────────────────────────────

var (
	regName     string
	regRole     string
	regMetadata string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new agent under your identity",
	Long: `register appends an AgentRegistered event and binds your identity to
the new agent. Later sends, responses, and ratings from the same identity
act as this agent.

Registering again re-binds the identity: the previous agent stays on the
ledger but can no longer act.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		id, err := c.RegisterAgent(context.Background(), client.RegisterAgentRequest{
			Name:        regName,
			Role:        regRole,
			MetadataRef: regMetadata,
		})
		if err != nil {
			return fmt.Errorf("register agent: %w", err)
		}

		fmt.Printf("%s Agent registered\n\n", color.GreenString("✓"))
		fmt.Printf("  ID:   %d\n", id)
		if regName != "" {
			fmt.Printf("  Name: %s\n", regName)
		}
		fmt.Printf("\nNext: agentctl send <receiver-id> <body> to message another agent\n")
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&regName, "name", "", "Agent display name")
	registerCmd.Flags().StringVar(&regRole, "role", "", "Agent role: GENERIC or CHAT (default GENERIC)")
	registerCmd.Flags().StringVar(&regMetadata, "metadata", "", "Off-ledger metadata reference (URI or content hash)")
}

// ── agents ───────────────────────────────────────────────────────────────────

var agentsFormat string

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List all registered agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		agents, err := c.ListAgents(context.Background())
		if err != nil {
			return fmt.Errorf("list agents: %w", err)
		}

		if agentsFormat == "json" {
			return printJSON(agents)
		}
		return printAgentTable(agents, false)
	},
}

func init() {
	agentsCmd.Flags().StringVar(&agentsFormat, "format", "text", "Output format: text or json")
}

// ── get ──────────────────────────────────────────────────────────────────────

var getCmd = &cobra.Command{
	Use:   "get <agent-id>",
	Short: "Show one agent's registration and reputation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "agent id")
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		agent, err := c.GetAgent(context.Background(), id)
		if err != nil {
			return fmt.Errorf("get agent %d: %w", id, err)
		}

		fmt.Printf("ID:           %d\n", agent.ID)
		fmt.Printf("Name:         %s\n", agent.Name)
		fmt.Printf("Role:         %s\n", agent.Role)
		if agent.MetadataRef != "" {
			fmt.Printf("Metadata:     %s\n", agent.MetadataRef)
		}
		fmt.Printf("Trust:        %s\n", trustString(agent.TrustScore))
		fmt.Printf("Interactions: %d (%d positive)\n", agent.TotalInteractions, agent.PositiveRatings)
		fmt.Printf("Registered:   %s\n", agent.RegisteredAt.Format(time.RFC3339))
		return nil
	},
}

// ── top ──────────────────────────────────────────────────────────────────────

var topFormat string

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List agents ranked by trust score",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		agents, err := c.TopRated(context.Background())
		if err != nil {
			return fmt.Errorf("top rated: %w", err)
		}

		if topFormat == "json" {
			return printJSON(agents)
		}
		return printAgentTable(agents, true)
	},
}

func init() {
	topCmd.Flags().StringVar(&topFormat, "format", "text", "Output format: text or json")
}

// ── reputation ───────────────────────────────────────────────────────────────

var reputationCmd = &cobra.Command{
	Use:   "reputation <agent-id>",
	Short: "Show an agent's trust standing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "agent id")
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		rep, err := c.GetReputation(context.Background(), id)
		if err != nil {
			return fmt.Errorf("reputation of agent %d: %w", id, err)
		}

		fmt.Printf("Agent:        %d\n", rep.AgentID)
		fmt.Printf("Trust:        %s\n", trustString(rep.TrustScore))
		fmt.Printf("Interactions: %d (%d positive)\n", rep.TotalInteractions, rep.PositiveRatings)
		return nil
	},
}

// ── rate ─────────────────────────────────────────────────────────────────────

var (
	rateDown    bool
	rateComment string
)

var rateCmd = &cobra.Command{
	Use:   "rate <agent-id>",
	Short: "Record your verdict on another agent",
	Long: `rate appends an AgentRated event followed by the target's refreshed
TrustScoreUpdated. Your identity must be bound to a registered agent, you
cannot rate your own agent, and each target can be rated once per rater.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "agent id")
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.RateAgent(context.Background(), id, !rateDown, rateComment); err != nil {
			return fmt.Errorf("rate agent %d: %w", id, err)
		}

		verdict := color.GreenString("positive")
		if rateDown {
			verdict = color.RedString("negative")
		}
		fmt.Printf("%s Recorded %s rating for agent %d\n", color.GreenString("✓"), verdict, id)
		return nil
	},
}

func init() {
	rateCmd.Flags().BoolVar(&rateDown, "down", false, "Record a negative verdict (default positive)")
	rateCmd.Flags().StringVar(&rateComment, "comment", "", "Free-form comment recorded with the rating")
}

// ── rating ───────────────────────────────────────────────────────────────────

var ratingCmd = &cobra.Command{
	Use:   "rating <target-id> <rater-id>",
	Short: "Show the rating one agent gave another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseID(args[0], "target id")
		if err != nil {
			return err
		}
		rater, err := parseID(args[1], "rater id")
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		rating, err := c.GetRating(context.Background(), target, rater)
		if err != nil {
			return fmt.Errorf("rating of %d by %d: %w", target, rater, err)
		}

		verdict := color.GreenString("positive")
		if !rating.Positive {
			verdict = color.RedString("negative")
		}
		fmt.Printf("Agent %d rated agent %d: %s\n", rating.RaterID, rating.TargetID, verdict)
		if rating.Comment != "" {
			fmt.Printf("Comment: %s\n", rating.Comment)
		}
		return nil
	},
}

// ── send ─────────────────────────────────────────────────────────────────────

var sendCmd = &cobra.Command{
	Use:   "send <receiver-id> <body...>",
	Short: "Send a message to another agent",
	Long: `send appends a MessageSent event addressed to the receiver. The sender
is the agent your identity is bound to; unbound identities send as agent 0.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		receiver, err := parseID(args[0], "receiver id")
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		id, err := c.SendMessage(context.Background(), receiver, strings.Join(args[1:], " "))
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}

		fmt.Printf("%s Message %d sent to agent %d\n", color.GreenString("✓"), id, receiver)
		return nil
	},
}

// ── respond ──────────────────────────────────────────────────────────────────

var respondCmd = &cobra.Command{
	Use:   "respond <message-id> <target-id> <body...>",
	Short: "Record a reply to a message",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		msgID, err := parseID(args[0], "message id")
		if err != nil {
			return err
		}
		target, err := parseID(args[1], "target id")
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.RespondMessage(context.Background(), msgID, target, strings.Join(args[2:], " ")); err != nil {
			return fmt.Errorf("respond to message %d: %w", msgID, err)
		}

		fmt.Printf("%s Response to message %d recorded for agent %d\n", color.GreenString("✓"), msgID, target)
		return nil
	},
}

// ── message ──────────────────────────────────────────────────────────────────

var messageCmd = &cobra.Command{
	Use:   "message <message-id>",
	Short: "Show a recorded message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "message id")
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		msg, err := c.GetMessage(context.Background(), id)
		if err != nil {
			return fmt.Errorf("get message %d: %w", id, err)
		}

		fmt.Printf("Message:  %d\n", msg.ID)
		fmt.Printf("From:     agent %d\n", msg.SenderID)
		fmt.Printf("To:       agent %d\n", msg.ReceiverID)
		fmt.Printf("Sent:     %s\n", msg.SentAt.Format(time.RFC3339))
		fmt.Printf("Body:     %s\n", msg.Body)
		return nil
	},
}

// ── events ───────────────────────────────────────────────────────────────────

var (
	eventsFrom   uint64
	eventsTo     uint64
	eventsFormat string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Dump a range of event-log records",
	Long: `events reads the node's sealed log records. --from defaults to 1 and
--to defaults to the current tip; the window is clipped to the log bounds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		to := eventsTo
		if to == 0 {
			if to, err = c.CurrentTip(ctx); err != nil {
				return fmt.Errorf("read tip: %w", err)
			}
		}
		recs, err := c.ReadRange(ctx, eventsFrom, to)
		if err != nil {
			return fmt.Errorf("read events: %w", err)
		}

		if eventsFormat == "json" {
			return printJSON(recs)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "POSITION\tKIND\tTIMESTAMP\tHASH")
		for _, rec := range recs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				rec.Position, rec.Kind, rec.Timestamp.Format(time.RFC3339), shortHash(rec.Hash))
		}
		return w.Flush()
	},
}

func init() {
	eventsCmd.Flags().Uint64Var(&eventsFrom, "from", 1, "First position to read")
	eventsCmd.Flags().Uint64Var(&eventsTo, "to", 0, "Last position to read (default: current tip)")
	eventsCmd.Flags().StringVar(&eventsFormat, "format", "text", "Output format: text or json")
}

// ── tip ──────────────────────────────────────────────────────────────────────

var tipCmd = &cobra.Command{
	Use:   "tip",
	Short: "Print the current event-log tip",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		tip, err := c.CurrentTip(context.Background())
		if err != nil {
			return fmt.Errorf("read tip: %w", err)
		}
		fmt.Println(tip)
		return nil
	},
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the node's full hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		ov, err := c.LedgerOverview(ctx)
		if err != nil {
			return fmt.Errorf("ledger overview: %w", err)
		}
		res, err := c.VerifyLedger(ctx)
		if err != nil {
			return fmt.Errorf("verify ledger: %w", err)
		}

		fmt.Printf("Entries: %d\n", ov.Entries)
		fmt.Printf("Root:    %s\n", ov.Root)
		if res.Valid {
			fmt.Printf("%s chain intact\n", color.GreenString("✓"))
			return nil
		}
		fmt.Printf("%s chain BROKEN: %s\n", color.RedString("✗"), res.Error)
		os.Exit(1)
		return nil
	},
}

// ── watch ────────────────────────────────────────────────────────────────────

var (
	watchInterval time.Duration
	watchFrom     int64
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail the event stream live",
	Long: `watch polls the node and prints each new event as it is sealed.
By default it starts at the current tip; --from replays history first.
Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		m := indexer.NewMonitor(indexer.NewRemoteSource(c), zap.NewNop())
		m.OnAny(func(rec model.Record, ev model.Event) {
			fmt.Printf("%6d  %s  %s\n", rec.Position, kindString(rec.Kind), eventSummary(ev))
		})
		m.OnError(func(err error) {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.YellowString("!"), err)
		})

		from := indexer.Latest
		if watchFrom >= 0 {
			from = indexer.From(uint64(watchFrom))
		}
		if err := m.Start(from, watchInterval); err != nil {
			return fmt.Errorf("start watch: %w", err)
		}
		defer m.Stop()

		fmt.Fprintf(os.Stderr, "watching %s (poll %s) — Ctrl-C to stop\n", nodeURL, watchInterval)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "Poll interval")
	watchCmd.Flags().Int64Var(&watchFrom, "from", -1, "Replay from this position first (default: tail from the tip)")
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenIdentity string
	tokenSecret   string
	tokenTTL      time.Duration
	tokenOut      string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a submitter identity token",
	Long: `token signs an HS256 Bearer token binding requests to an identity.
The secret must match the node's identity.secret.

Write it where the SDK finds it:

  agentctl token --identity did:example:alice --out ~/.agentledger/token`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenIdentity == "" {
			tokenIdentity = identityFlag
		}
		if tokenIdentity == "" {
			return fmt.Errorf("--identity is required")
		}
		if tokenSecret == "" {
			tokenSecret = viper.GetString("secret")
		}
		if tokenSecret == "" {
			return fmt.Errorf("--secret is required (or set secret in the config file)")
		}

		issuer := identity.NewIssuer(tokenSecret, tokenTTL)
		token, err := issuer.Issue(tokenIdentity)
		if err != nil {
			return fmt.Errorf("mint token: %w", err)
		}

		if tokenOut == "" {
			fmt.Println(token)
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(tokenOut), 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
		if err := os.WriteFile(tokenOut, []byte(token+"\n"), 0o600); err != nil {
			return fmt.Errorf("write token: %w", err)
		}
		fmt.Printf("%s Token for %s written to %s (expires in %s)\n",
			color.GreenString("✓"), tokenIdentity, tokenOut, issuer.TTL())
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenIdentity, "identity", "", "Submitter identity to bind the token to")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Shared HS256 secret (must match the node)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
	tokenCmd.Flags().StringVar(&tokenOut, "out", "", "Write the token to this file instead of stdout")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agentctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agentctl %s (AgentLedger)\n", version)
	},
}

// ── output helpers ───────────────────────────────────────────────────────────

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAgentTable(agents []client.Agent, ranked bool) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if ranked {
		fmt.Fprintln(w, "RANK\tID\tNAME\tROLE\tTRUST\tINTERACTIONS")
	} else {
		fmt.Fprintln(w, "ID\tNAME\tROLE\tTRUST\tINTERACTIONS\tREGISTERED")
	}
	for i, a := range agents {
		if ranked {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%d\n",
				i+1, a.ID, a.Name, a.Role, trustString(a.TrustScore), a.TotalInteractions)
		} else {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
				a.ID, a.Name, a.Role, trustString(a.TrustScore), a.TotalInteractions,
				a.RegisteredAt.Format(time.RFC3339))
		}
	}
	return w.Flush()
}

// trustString colors a trust score green/yellow/red.
func trustString(score uint64) string {
	s := strconv.FormatUint(score, 10)
	switch {
	case score >= 80:
		return color.GreenString(s)
	case score >= 50:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// kindString colors an event kind for the watch stream.
func kindString(kind model.Kind) string {
	s := fmt.Sprintf("%-18s", kind)
	switch kind {
	case model.KindAgentRegistered:
		return color.GreenString(s)
	case model.KindMessageSent, model.KindMessageResponded:
		return color.CyanString(s)
	case model.KindAgentRated:
		return color.YellowString(s)
	case model.KindTrustScoreUpdated:
		return color.MagentaString(s)
	default:
		return s
	}
}

// eventSummary renders one human line per event.
func eventSummary(ev model.Event) string {
	switch e := ev.(type) {
	case model.AgentRegistered:
		return fmt.Sprintf("agent %d %q role=%s", e.AgentID, e.Name, e.Role)
	case model.MessageSent:
		return fmt.Sprintf("message %d: agent %d → agent %d (%s)", e.MessageID, e.SenderID, e.ReceiverID, truncate(e.Body, 40))
	case model.MessageResponded:
		return fmt.Sprintf("message %d: agent %d replied to agent %d (%s)", e.MessageID, e.ResponderID, e.TargetID, truncate(e.Body, 40))
	case model.AgentRated:
		verdict := "up"
		if !e.Positive {
			verdict = "down"
		}
		return fmt.Sprintf("agent %d rated agent %d %s", e.RaterID, e.TargetID, verdict)
	case model.TrustScoreUpdated:
		return fmt.Sprintf("agent %d trust → %d (%d/%d positive)", e.AgentID, e.TrustScore, e.PositiveRatings, e.TotalInteractions)
	default:
		return ""
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12] + "…"
	}
	return h
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

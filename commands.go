package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/addressbridge/pkg/bridge"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// maxConcurrentLookups bounds parallel tracking requests.
const maxConcurrentLookups = 4

// runFunc executes a command against the wired environment and returns the
// value printed as JSON.
type runFunc func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error)

func withEnvironment(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := setup(ctx)
		if err != nil {
			return err
		}
		defer env.close(ctx)

		out, err := fn(ctx, env, cmd, args)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ============================================================================
// Authorization
// ============================================================================

var authorizeURLCmd = &cobra.Command{
	Use:   "authorize-url",
	Short: "Print the consent page URL",
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		flags := cmd.Flags()
		redirect, _ := flags.GetString("redirect-uri")
		scope, _ := flags.GetStringSlice("scope")
		expiry, _ := flags.GetInt("expiry-days")
		maxAccesses, _ := flags.GetInt("max-accesses")
		chain, _ := flags.GetString("chain")
		state, _ := flags.GetString("state")
		walletConnect, _ := flags.GetBool("wallet-connect")

		if state == "" {
			state = bridge.NewState()
		}

		u, err := env.client.AuthorizationURL(bridge.AuthorizationOptions{
			RedirectURI:      redirect,
			Scope:            scope,
			ExpiryDays:       expiry,
			MaxAccesses:      maxAccesses,
			PreferredChain:   chain,
			State:            state,
			UseWalletConnect: walletConnect,
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{"url": u, "state": state}, nil
	}),
}

var exchangeCodeCmd = &cobra.Command{
	Use:   "exchange-code <code>",
	Short: "Exchange an authorization code for an access token",
	Args:  cobra.ExactArgs(1),
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		redirect, _ := cmd.Flags().GetString("redirect-uri")
		return env.client.ExchangeCode(ctx, args[0], redirect)
	}),
}

var validateTokenCmd = &cobra.Command{
	Use:   "validate-token [token]",
	Short: "Check an access token with the API",
	Args:  cobra.MaximumNArgs(1),
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		var token string
		if len(args) == 1 {
			token = args[0]
		}
		return env.client.ValidateToken(ctx, token), nil
	}),
}

// ============================================================================
// Address & wallet
// ============================================================================

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Fetch the shared address",
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		fields, _ := cmd.Flags().GetStringSlice("fields")
		verification, _ := cmd.Flags().GetBool("verification")
		return env.client.GetAddress(ctx, bridge.AddressOptions{
			Fields:                  fields,
			IncludeVerificationInfo: verification,
		})
	}),
}

var linkWalletCmd = &cobra.Command{
	Use:   "link-wallet <wallet-address>",
	Short: "Link the verified address to a wallet",
	Args:  cobra.ExactArgs(1),
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		chainID, _ := cmd.Flags().GetInt64("chain-id")
		vc, _ := cmd.Flags().GetBool("credential")
		return env.client.LinkWallet(ctx, bridge.LinkWalletOptions{
			WalletAddress:              args[0],
			ChainID:                    chainID,
			CreateVerifiableCredential: vc,
		})
	}),
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show usage statistics for the access token",
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		return env.client.GetUsageStats(ctx)
	}),
}

// ============================================================================
// Webhooks
// ============================================================================

var registerWebhookCmd = &cobra.Command{
	Use:   "register-webhook <url>",
	Short: "Register a webhook endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		events, _ := cmd.Flags().GetStringSlice("events")
		secret, _ := cmd.Flags().GetString("secret")
		return env.client.RegisterWebhook(ctx, bridge.WebhookOptions{
			URL:    args[0],
			Events: events,
			Secret: secret,
		})
	}),
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a webhook payload",
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		payload, secret, err := payloadAndSecret(cmd, env)
		if err != nil {
			return nil, err
		}
		return map[string]string{"signature": bridge.SignWebhookPayload(payload, secret)}, nil
	}),
}

var verifyCmd = &cobra.Command{
	Use:   "verify <signature>",
	Short: "Verify a webhook payload signature",
	Args:  cobra.ExactArgs(1),
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		payload, secret, err := payloadAndSecret(cmd, env)
		if err != nil {
			return nil, err
		}
		return verifySignature(env.client, args[0], payload, secret)
	}),
}

// errInvalidSignature makes verify exit non-zero on a mismatch.
var errInvalidSignature = errors.New("webhook signature does not match")

func verifySignature(client *bridge.Client, signature string, payload []byte, secret string) (map[string]bool, error) {
	if !client.VerifyWebhookSignature(signature, payload, secret) {
		return nil, errInvalidSignature
	}
	return map[string]bool{"valid": true}, nil
}

// payloadAndSecret reads the payload from --file ("-" for stdin) or --payload
// and the secret from --secret, then BRIDGE_WEBHOOK_SECRET, then a terminal
// prompt.
func payloadAndSecret(cmd *cobra.Command, env *environment) ([]byte, string, error) {
	file, _ := cmd.Flags().GetString("file")
	inline, _ := cmd.Flags().GetString("payload")
	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = env.cfg.WebhookSecret
	}
	if secret == "" && file != "-" && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(cmd.ErrOrStderr(), "Webhook secret: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return nil, "", fmt.Errorf("failed to read secret: %w", err)
		}
		secret = string(raw)
	}
	if secret == "" {
		return nil, "", errors.New("no secret: pass --secret or set BRIDGE_WEBHOOK_SECRET")
	}

	switch {
	case file == "-":
		payload, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}
		return payload, secret, nil
	case file != "":
		payload, err := os.ReadFile(file)
		if err != nil {
			return nil, "", fmt.Errorf("reading payload: %w", err)
		}
		return payload, secret, nil
	default:
		return []byte(inline), secret, nil
	}
}

// ============================================================================
// Blind shipping
// ============================================================================

var shippingTokenCmd = &cobra.Command{
	Use:   "shipping-token",
	Short: "Create a blind shipping token",
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		flags := cmd.Flags()
		carriers, _ := flags.GetStringSlice("carriers")
		methods, _ := flags.GetStringSlice("methods")
		confirm, _ := flags.GetBool("require-confirmation")
		expiry, _ := flags.GetInt("expiry-days")
		maxUses, _ := flags.GetInt("max-uses")
		return env.client.CreateBlindShippingToken(ctx, bridge.ShippingTokenOptions{
			Carriers:            carriers,
			ShippingMethods:     methods,
			RequireConfirmation: confirm,
			ExpiryDays:          expiry,
			MaxUses:             maxUses,
		})
	}),
}

var shipCmd = &cobra.Command{
	Use:   "ship <shipping-token>",
	Short: "Request a shipment against a blind shipping token",
	Args:  cobra.ExactArgs(1),
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		flags := cmd.Flags()
		carrier, _ := flags.GetString("carrier")
		service, _ := flags.GetString("service")
		pkgJSON, _ := flags.GetString("package")

		var pkg map[string]any
		if err := json.Unmarshal([]byte(pkgJSON), &pkg); err != nil {
			return nil, fmt.Errorf("parsing --package: %w", err)
		}
		return env.client.RequestShipment(ctx, bridge.ShipmentOptions{
			ShippingToken: args[0],
			Carrier:       carrier,
			Service:       service,
			Package:       pkg,
		})
	}),
}

var trackCmd = &cobra.Command{
	Use:   "track <tracking-number>...",
	Short: "Look up one or more shipments",
	Args:  cobra.MinimumNArgs(1),
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		carrier, _ := cmd.Flags().GetString("carrier")
		return trackAll(ctx, env.client, carrier, args)
	}),
}

// trackAll looks up every tracking number concurrently. Results keep the
// order of numbers; the first failure cancels the remaining lookups.
func trackAll(ctx context.Context, client *bridge.Client, carrier string, numbers []string) ([]*bridge.TrackingInfo, error) {
	results := make([]*bridge.TrackingInfo, len(numbers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, number := range numbers {
		g.Go(func() error {
			info, err := client.GetTrackingInfo(gctx, number, carrier)
			if err != nil {
				return fmt.Errorf("tracking %s: %w", number, err)
			}
			results[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

var confirmDeliveryCmd = &cobra.Command{
	Use:   "confirm-delivery <tracking-number>",
	Short: "Confirm receipt of a shipment",
	Args:  cobra.ExactArgs(1),
	RunE: withEnvironment(func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) (any, error) {
		carrier, _ := cmd.Flags().GetString("carrier")
		return env.client.ConfirmDelivery(ctx, args[0], carrier)
	}),
}

func init() {
	f := authorizeURLCmd.Flags()
	f.String("redirect-uri", "", "URL the user returns to after consent")
	f.StringSlice("scope", nil, "address fields to request")
	f.Int("expiry-days", 0, "permission lifetime in days (default 30)")
	f.Int("max-accesses", 0, "maximum number of address reads (0 for unlimited)")
	f.String("chain", "", "preferred blockchain")
	f.String("state", "", "state parameter (random when empty)")
	f.Bool("wallet-connect", false, "offer WalletConnect on the consent page")

	exchangeCodeCmd.Flags().String("redirect-uri", "", "redirect URI used in the authorization request")

	addressCmd.Flags().StringSlice("fields", nil, "address fields to return")
	addressCmd.Flags().Bool("verification", false, "include verification details")

	linkWalletCmd.Flags().Int64("chain-id", 1, "EVM chain ID")
	linkWalletCmd.Flags().Bool("credential", false, "issue a verifiable credential")

	registerWebhookCmd.Flags().StringSlice("events", nil, "event types to subscribe to")
	registerWebhookCmd.Flags().String("secret", "", "signing secret (generated by the API when empty)")

	for _, c := range []*cobra.Command{signCmd, verifyCmd} {
		c.Flags().String("payload", "", "payload bytes")
		c.Flags().String("file", "", "read the payload from a file, - for stdin")
		c.Flags().String("secret", "", "webhook secret (default BRIDGE_WEBHOOK_SECRET)")
	}

	f = shippingTokenCmd.Flags()
	f.StringSlice("carriers", nil, "carriers the token is valid for")
	f.StringSlice("methods", nil, "shipping methods the token is valid for")
	f.Bool("require-confirmation", false, "require delivery confirmation")
	f.Int("expiry-days", 0, "token lifetime in days (default 7)")
	f.Int("max-uses", 0, "number of shipments allowed (default 1)")

	shipCmd.Flags().String("carrier", "", "carrier")
	shipCmd.Flags().String("service", "", "shipping service")
	shipCmd.Flags().String("package", `{"type":"box"}`, "package details as JSON")

	trackCmd.Flags().String("carrier", "", "carrier")
	confirmDeliveryCmd.Flags().String("carrier", "", "carrier")

	rootCmd.AddCommand(
		authorizeURLCmd,
		exchangeCodeCmd,
		validateTokenCmd,
		addressCmd,
		linkWalletCmd,
		usageCmd,
		registerWebhookCmd,
		signCmd,
		verifyCmd,
		shippingTokenCmd,
		shipCmd,
		trackCmd,
		confirmDeliveryCmd,
	)
}

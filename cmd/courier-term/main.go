// ABOUTME: Terminal client for courier-gateway device pairing and messaging
// ABOUTME: Pairs with a code, stores credentials 0600 and refreshes tokens near expiry

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/courierhq/courier-gateway/internal/credfile"
)

// refreshWindow is how close to expiry the client refreshes its token.
const refreshWindow = 7 * 24 * time.Hour

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: courier-term <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  pair [CODE]       Link this terminal with a pairing code")
		fmt.Println("  send TEXT...      Send a message through the gateway")
		fmt.Println("  status            Show pairing and token status")
		fmt.Println("  unpair            Forget local credentials")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client := newGatewayClient(cfg.Gateway.URL)

	switch os.Args[1] {
	case "pair":
		err = runPair(ctx, cfg, client, os.Args[2:])
	case "send":
		err = runSend(ctx, cfg, client, os.Args[2:])
	case "status":
		err = runStatus(ctx, cfg, client)
	case "unpair":
		err = runUnpair(cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runPair(ctx context.Context, cfg *Config, client *gatewayClient, args []string) error {
	var code string
	if len(args) > 0 {
		code = args[0]
	} else {
		fmt.Print("Pairing code: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading pairing code: %w", err)
		}
		code = strings.TrimSpace(line)
	}
	if code == "" {
		return fmt.Errorf("a pairing code is required")
	}

	// Reuse the device identity across re-pairs so the gateway sees one
	// device, not a new one per pairing.
	deviceID := ""
	if creds, err := credfile.Load(cfg.Device.CredentialsPath); err == nil {
		deviceID = creds.DeviceID
	}
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	result, err := client.Link(ctx, code, deviceID, cfg.Device.Name)
	if err != nil {
		return err
	}

	creds := &credfile.Credentials{
		AuthToken: result.AuthToken,
		UserID:    result.UserID,
		DeviceID:  result.DeviceID,
		ExpiresAt: result.ExpiresAt,
	}
	if err := credfile.Save(cfg.Device.CredentialsPath, creds); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Println("✓ Paired")
	fmt.Printf("  Device:  %s (%s)\n", cfg.Device.Name, result.DeviceID)
	fmt.Printf("  Expires: %s\n", result.ExpiresAt.Format("Jan 02, 2006"))
	return nil
}

func runSend(ctx context.Context, cfg *Config, client *gatewayClient, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("nothing to send")
	}
	text := strings.Join(args, " ")

	creds, err := ensureFreshCredentials(ctx, cfg, client)
	if err != nil {
		return err
	}

	resp, err := client.Send(ctx, creds.AuthToken, text)
	if err != nil {
		return err
	}
	if !resp.Accepted {
		return fmt.Errorf("message not accepted: %s", resp.Reason)
	}

	color.New(color.FgGreen).Printf("✓ Sent (%s)\n", resp.MessageID)
	return nil
}

func runStatus(ctx context.Context, cfg *Config, client *gatewayClient) error {
	creds, err := credfile.Load(cfg.Device.CredentialsPath)
	if err != nil {
		if err == credfile.ErrNotPaired {
			fmt.Println("Not paired. Run: courier-term pair")
			return nil
		}
		return err
	}

	fmt.Printf("Device:  %s\n", creds.DeviceID)
	fmt.Printf("User:    %s\n", creds.UserID)
	fmt.Printf("Expires: %s\n", creds.ExpiresAt.Format(time.RFC3339))

	result, err := client.Validate(ctx, creds.AuthToken)
	if err != nil {
		return err
	}
	if result.Valid {
		color.New(color.FgGreen).Println("Status:  valid")
	} else {
		color.New(color.FgRed).Printf("Status:  invalid (%s)\n", result.Reason)
	}
	return nil
}

func runUnpair(cfg *Config) error {
	if err := credfile.Remove(cfg.Device.CredentialsPath); err != nil {
		return err
	}
	fmt.Println("Local credentials removed.")
	fmt.Println("Unlink the device from your account with the gateway's /terminal/unlink endpoint.")
	return nil
}

// ensureFreshCredentials loads credentials and refreshes the token when it is
// within the refresh window of expiry. The refreshed token replaces the file.
func ensureFreshCredentials(ctx context.Context, cfg *Config, client *gatewayClient) (*credfile.Credentials, error) {
	creds, err := credfile.Load(cfg.Device.CredentialsPath)
	if err != nil {
		if err == credfile.ErrNotPaired {
			return nil, fmt.Errorf("not paired; run: courier-term pair")
		}
		return nil, err
	}

	if !creds.ExpiresWithin(refreshWindow) {
		return creds, nil
	}

	result, err := client.Refresh(ctx, creds.AuthToken)
	if err != nil {
		// A refresh failure with a still-valid token is not fatal
		if !creds.ExpiresWithin(0) {
			return creds, nil
		}
		return nil, fmt.Errorf("token expired and refresh failed: %w", err)
	}

	creds.AuthToken = result.AuthToken
	creds.ExpiresAt = result.ExpiresAt
	if err := credfile.Save(cfg.Device.CredentialsPath, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

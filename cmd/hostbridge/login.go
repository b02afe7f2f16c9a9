package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/hostbridge/hostbridge/internal/handshake"
	"github.com/hostbridge/hostbridge/internal/tools/ui"
)

type loginOptions struct {
	serverURL string
	role      string
	timeout   time.Duration
	tokenFile string
	ci        bool
}

func newLoginCommand() *cobra.Command {
	opts := &loginOptions{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and store the session credential",
		Long: "Opens the Google sign-in page in the browser and waits for the " +
			"credential to land in the shared token file, then verifies it " +
			"against the server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.serverURL, "server", "http://localhost:8081", "API base URL")
	cmd.Flags().StringVar(&opts.role, "role", "controller", "sign in as controller or host")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "how long to wait for the credential")
	cmd.Flags().StringVar(&opts.tokenFile, "token-file", "", "credential file (default ~/.hostbridge/token)")
	cmd.Flags().BoolVar(&opts.ci, "ci", false, "non-interactive output")
	return cmd
}

func runLogin(cmd *cobra.Command, opts *loginOptions) error {
	role := handshake.Role(opts.role)
	if role != handshake.RoleController && role != handshake.RoleHost {
		return fmt.Errorf("unknown role %q", opts.role)
	}
	store, err := handshake.NewFileTokenStore(opts.tokenFile)
	if err != nil {
		return err
	}

	// The callback page cannot postMessage into a process, so the
	// message channel is backed by a localhost listener the page posts
	// the credential to.
	receiver, err := handshake.NewLoopbackReceiver()
	if err != nil {
		return err
	}
	defer func() { _ = receiver.Close() }()

	coordinator := handshake.NewCoordinator(handshake.Config{
		ServerBaseURL:  opts.serverURL,
		TrustedOrigins: []string{opts.serverURL},
		ReceiverURL:    receiver.URL(),
		Timeout:        opts.timeout,
		GraceDelay:     100 * time.Millisecond,
	}, browserOpener{}, store, printNavigator{out: cmd})
	receiver.Serve(opts.serverURL, coordinator.Deliver)

	fn := func(ctx context.Context) ([]string, error) {
		token, err := coordinator.Run(ctx, role)
		if err != nil {
			return nil, err
		}
		user, err := verifySession(ctx, opts.serverURL, token)
		if err != nil {
			return nil, err
		}
		return []string{
			fmt.Sprintf("signed in as %s (%s)", user.DisplayName, user.Email),
			"credential stored",
		}, nil
	}

	var details []string
	if opts.ci {
		ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout+time.Minute)
		defer cancel()
		details, err = fn(ctx)
	} else {
		details, err = ui.Run("google sign-in", fn)
	}
	if err != nil {
		if errors.Is(err, handshake.ErrTimedOut) {
			return fmt.Errorf("no credential arrived within %s; complete the sign-in in the browser and retry", opts.timeout)
		}
		return err
	}
	for _, d := range details {
		cmd.Println(d)
	}
	return nil
}

func newLogoutCommand() *cobra.Command {
	var serverURL, tokenFile string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := handshake.NewFileTokenStore(tokenFile)
			if err != nil {
				return err
			}
			token, err := store.Load()
			if err != nil {
				return err
			}
			if token != "" {
				if err := revokeSession(cmd.Context(), serverURL, token); err != nil {
					cmd.PrintErrln("revoke request failed:", err)
				}
			}
			if err := store.Clear(); err != nil {
				return err
			}
			cmd.Println("signed out")
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8081", "API base URL")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "credential file (default ~/.hostbridge/token)")
	return cmd
}

// browserOpener launches the system browser at the sign-in URL.
type browserOpener struct{}

func (browserOpener) Open(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Start()
}

type printNavigator struct {
	out *cobra.Command
}

func (n printNavigator) Navigate(dest string) error {
	n.out.Println("dashboard:", dest)
	return nil
}

type verifiedUser struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	ProfileImage string `json:"profile_image"`
}

func verifySession(ctx context.Context, serverURL, token string) (*verifiedUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/auth/verify", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error != "" {
			return nil, errors.New(body.Error)
		}
		return nil, fmt.Errorf("verify failed: status %d", resp.StatusCode)
	}
	var body struct {
		User verifiedUser `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &body.User, nil
}

func revokeSession(ctx context.Context, serverURL, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/auth/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("logout failed: status %d", resp.StatusCode)
	}
	return nil
}

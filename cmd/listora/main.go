// Command listora is a small CLI for the Listora platform's auth session:
// sign in, print a valid access token for scripting, show the current user,
// and sign out.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/listora/listora-go/internal/config"
	"github.com/listora/listora-go/pkg/authsdk"
	"github.com/listora/listora-go/pkg/credstore"
	"github.com/listora/listora-go/pkg/slogx"
)

const usage = `usage: listora <command> [flags]

commands:
  login     sign in with email and password
  token     print a valid access token (refreshing if needed)
  whoami    show the signed-in user
  logout    sign out and revoke the session
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "listora:", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	flags := pflag.NewFlagSet(command, pflag.ExitOnError)
	email := flags.StringP("email", "e", "", "account email (login)")
	password := flags.StringP("password", "p", "", "account password (login; prompted if omitted)")
	if err := flags.Parse(os.Args[2:]); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slogx.New(slogx.Config{
		Service: "listora-cli",
		Env:     cfg.Environment,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	var sealer *credstore.Sealer
	if cfg.StoreSecret != "" {
		sealer, err = credstore.NewSealer([]byte(cfg.StoreSecret))
		if err != nil {
			return err
		}
	}

	store, err := credstore.Open(cfg.CredentialsFile, sealer)
	if err != nil {
		return err
	}
	defer store.Close()

	session := authsdk.NewSessionManager(
		authsdk.NewIssuerClient(cfg.APIBaseURL),
		store,
		authsdk.WithLogger(logger),
	)
	defer session.Close()

	ctx := context.Background()

	switch command {
	case "login":
		return doLogin(ctx, session, *email, *password)
	case "token":
		return doToken(ctx, session)
	case "whoami":
		return doWhoami(ctx, session)
	case "logout":
		session.Logout(ctx)
		fmt.Println("signed out")
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
		return nil
	}
}

func doLogin(ctx context.Context, session *authsdk.SessionManager, email, password string) error {
	if email == "" {
		return fmt.Errorf("--email is required")
	}
	if password == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	user, err := session.Login(ctx, email, password)
	if err != nil {
		return describeAuthError(err)
	}

	fmt.Printf("signed in as %s (%s)\n", user.DisplayName, user.Email)
	return nil
}

func doToken(ctx context.Context, session *authsdk.SessionManager) error {
	if err := hydrate(ctx, session); err != nil {
		return err
	}

	token, err := session.GetValidAccessToken(ctx)
	if err != nil {
		return describeAuthError(err)
	}

	fmt.Println(token)
	return nil
}

func doWhoami(ctx context.Context, session *authsdk.SessionManager) error {
	if err := hydrate(ctx, session); err != nil {
		return err
	}

	user := session.CurrentUser()
	if user == nil {
		return fmt.Errorf("not signed in; run 'listora login'")
	}

	fmt.Printf("%s <%s>\n", user.DisplayName, user.Email)
	return nil
}

func hydrate(ctx context.Context, session *authsdk.SessionManager) error {
	restored, err := session.Hydrate(ctx)
	if err != nil {
		return describeAuthError(err)
	}
	if !restored {
		return fmt.Errorf("not signed in; run 'listora login'")
	}
	return nil
}

// describeAuthError renders a classified failure with its remediation
// hints; anything else passes through untouched.
func describeAuthError(err error) error {
	ae, ok := authsdk.AsAuthError(err)
	if !ok {
		return err
	}

	var b strings.Builder
	b.WriteString(ae.Message)
	for _, s := range ae.Suggestions {
		b.WriteString("\n  - ")
		b.WriteString(s)
	}
	return fmt.Errorf("%s", b.String())
}

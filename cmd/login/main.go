// Command login is a terminal client for walking the sign-in flow against a
// running identity provider. It drives the same flow controller the web
// client uses, so the screen sequence in the terminal matches the screens a
// browser would show.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/xlzd/gotp"

	"github.com/aginhq/agin-login/pkg/factor"
	"github.com/aginhq/agin-login/pkg/loginapi"
	"github.com/aginhq/agin-login/pkg/loginflow"
)

type Config struct {
	BaseURL    string `env:"LOGIN_BASE_URL" env-default:"http://localhost:4000"`
	Next       string `env:"LOGIN_NEXT" env-default:""`
	TotpSecret string `env:"LOGIN_TOTP_SECRET" env-default:""`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		fmt.Fprintln(os.Stderr, "failed reading configuration:", err)
		os.Exit(1)
	}

	api := loginapi.NewClient(config.BaseURL)
	flow := loginflow.NewFlow(api, loginflow.WithNext(config.Next))

	ctx := context.Background()
	stdin := bufio.NewScanner(os.Stdin)

	for {
		if done, dest := flow.Done(); done {
			fmt.Println("Signed in. Destination:", dest)
			return
		}
		if msg := flow.StepError(flow.Screen()); msg != "" {
			fmt.Println("!", msg)
		}

		switch screen := flow.Screen(); screen {
		case loginflow.ScreenWelcome:
			flow.SubmitUsername(ctx, prompt(stdin, "Username: "))

		case loginflow.ScreenLoginOptions:
			pickFactor(stdin, flow, flow.FirstFactorOptions())

		case loginflow.ScreenPassword:
			fmt.Println("Signing in as", flow.Username())
			flow.SubmitPassword(ctx, prompt(stdin, "Password: "))

		case loginflow.ScreenTwoFactorOptions:
			pickFactor(stdin, flow, flow.SecondFactorOptions())

		case loginflow.ScreenTotp:
			var code string
			if config.TotpSecret != "" {
				code = gotp.NewDefaultTOTP(config.TotpSecret).Now()
				fmt.Println("One-time code from LOGIN_TOTP_SECRET:", code)
			} else {
				code = prompt(stdin, "One-time code (or 'more' for other options): ")
				if code == "more" {
					flow.MoreOptions()
					continue
				}
			}
			flow.SetTotpCode(ctx, code)

		case loginflow.ScreenRecoveryCode:
			code := prompt(stdin, "Recovery code (or 'more' for other options): ")
			if code == "more" {
				flow.MoreOptions()
				continue
			}
			flow.SubmitRecoveryCode(ctx, code)

		case loginflow.ScreenWebAuthn, loginflow.ScreenWebAuthnPasswordless:
			fmt.Println("Security keys need a platform authenticator; none is available in a terminal.")
			if len(flow.SecondFactorOptions()) > 1 {
				flow.MoreOptions()
				continue
			}
			return

		case loginflow.ScreenPgp:
			fmt.Println("PGP sign-in is not supported by this client.")
			if len(flow.SecondFactorOptions()) > 1 {
				flow.MoreOptions()
				continue
			}
			return

		default:
			fmt.Fprintln(os.Stderr, "unexpected screen:", screen)
			return
		}
	}
}

func prompt(stdin *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !stdin.Scan() {
		os.Exit(1)
	}
	return strings.TrimSpace(stdin.Text())
}

func pickFactor(stdin *bufio.Scanner, flow *loginflow.Flow, options []factor.Kind) {
	fmt.Println("Available methods:")
	for i, k := range options {
		fmt.Printf("  %d. %s\n", i+1, k)
	}
	choice := prompt(stdin, "Choose a method: ")
	for i, k := range options {
		if choice == fmt.Sprintf("%d", i+1) || choice == string(k) {
			flow.Pick(k)
			return
		}
	}
	fmt.Println("Unrecognized choice.")
}

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/crev/internal/auth"
	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/models"
	"github.com/joescharf/crev/internal/output"
	"github.com/joescharf/crev/internal/validate"
)

var (
	authEmail         string
	authPassword      string
	authPasswordStdin bool
	authRemember      bool

	signupName        string
	signupConfirm     string
	signupAcceptTerms bool

	whoamiOffline bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email and password",
	Long: `Log in to the review service and keep the session locally.

With --remember the email is saved and used as the default next time.
Pass the password with --password or, preferably, --password-stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return loginRun(cmd)
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return signupRun(cmd)
	},
}

var googleCmd = &cobra.Command{
	Use:   "google",
	Short: "Log in with the service's Google sign-in",
	RunE: func(cmd *cobra.Command, args []string) error {
		return googleRun(cmd)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logoutRun(cmd)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Long: `Verify the stored session with the service and show the user.

With --offline the cached profile is shown without contacting the service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return whoamiRun(cmd)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether the stored session is still valid",
	Long: `Check the stored session against the service.

A rejected session is cleared. Exits non-zero unless the session is valid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkRun(cmd)
	},
}

func init() {
	loginCmd.Flags().StringVarP(&authEmail, "email", "e", "", "Account email (default: remembered email)")
	loginCmd.Flags().StringVarP(&authPassword, "password", "p", "", "Account password")
	loginCmd.Flags().BoolVar(&authPasswordStdin, "password-stdin", false, "Read the password from stdin")
	loginCmd.Flags().BoolVar(&authRemember, "remember", false, "Remember the email for next time")

	signupCmd.Flags().StringVar(&signupName, "name", "", "Full name")
	signupCmd.Flags().StringVarP(&authEmail, "email", "e", "", "Account email")
	signupCmd.Flags().StringVarP(&authPassword, "password", "p", "", "Password (at least 6 characters)")
	signupCmd.Flags().StringVar(&signupConfirm, "confirm-password", "", "Password confirmation (default: same as password)")
	signupCmd.Flags().BoolVar(&authPasswordStdin, "password-stdin", false, "Read the password from stdin")
	signupCmd.Flags().BoolVar(&signupAcceptTerms, "accept-terms", false, "Accept the terms and conditions")

	whoamiCmd.Flags().BoolVar(&whoamiOffline, "offline", false, "Show the cached user without contacting the service")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(googleCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(checkCmd)
}

// readPassword returns the flag value, or the first line of r when
// --password-stdin is set.
func readPassword(r io.Reader) (string, error) {
	if !authPasswordStdin {
		return authPassword, nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func loginRun(cmd *cobra.Command) error {
	g, err := newGateway()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	// An accepted session makes login a no-op; a rejected one is cleared.
	check, err := g.CheckSession(ctx)
	if err != nil {
		return err
	}
	if check.Next() == auth.NavigateApp {
		ui.Info("Already logged in as %s", output.Cyan(check.User.Email))
		return nil
	}

	email := authEmail
	if email == "" {
		if email, err = g.RememberedEmail(ctx); err != nil {
			return err
		}
		if email != "" {
			ui.VerboseLog("Using remembered email %s", email)
		}
	}

	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would log in as %s", email)
		return nil
	}

	sess, err := g.Login(ctx, email, password, authRemember)
	if err != nil {
		return err
	}
	ui.Success("Login successful! Logged in as %s", output.Cyan(sess.User.Email))
	return nil
}

func signupRun(cmd *cobra.Command) error {
	g, err := newGateway()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	check, err := g.CheckSession(ctx)
	if err != nil {
		return err
	}
	if check.Next() == auth.NavigateApp {
		ui.Info("Already logged in as %s", output.Cyan(check.User.Email))
		return nil
	}

	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}
	confirm := signupConfirm
	if !cmd.Flags().Changed("confirm-password") {
		confirm = password
	}

	if password != "" {
		score := validate.PasswordStrength(password)
		ui.Info("Password strength: %s", output.StrengthColor(score, validate.StrengthLabel(score)))
	}

	form := models.SignupForm{
		Name:            signupName,
		Email:           authEmail,
		Password:        password,
		ConfirmPassword: confirm,
		AcceptedTerms:   signupAcceptTerms,
	}

	if dryRun {
		if err := validate.Signup(form); err != nil {
			return err
		}
		ui.DryRunMsg("Would create account for %s", form.Email)
		return nil
	}

	if err := g.Signup(ctx, form); err != nil {
		return err
	}
	ui.Success("Account created successfully! Please log in.")
	ui.Info("Next: crev login --email %s", strings.TrimSpace(form.Email))
	return nil
}

func googleRun(cmd *cobra.Command) error {
	g, err := newGateway()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would log in with Google")
		return nil
	}
	sess, err := g.GoogleLogin(commandContext(cmd))
	if err != nil {
		return err
	}
	ui.Success("Google login successful! Logged in as %s", output.Cyan(sess.User.Email))
	return nil
}

func logoutRun(cmd *cobra.Command) error {
	g, err := newGateway()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would clear the stored session")
		return nil
	}
	if _, err := g.Logout(commandContext(cmd)); err != nil {
		return err
	}
	ui.Success("Logged out")
	return nil
}

func whoamiRun(cmd *cobra.Command) error {
	g, err := newGateway()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	var u *models.User
	if whoamiOffline {
		u, err = g.CachedUser(ctx)
		if err != nil {
			return errs.Auth(0, auth.MsgNotLoggedIn)
		}
	} else {
		u, err = g.RequireSession(ctx)
		if err != nil {
			return err
		}
	}
	return ui.User(u)
}

func checkRun(cmd *cobra.Command) error {
	g, err := newGateway()
	if err != nil {
		return err
	}

	check, err := g.CheckSession(commandContext(cmd))
	if err != nil {
		return err
	}
	switch check.State {
	case auth.Authenticated:
		ui.Success("Session valid for %s", output.Cyan(check.User.Email))
		return nil
	case auth.Unauthenticated:
		ui.Warning("Stored session was rejected and has been cleared")
		if errs.Is(check.Err, errs.KindConnectivity) {
			return check.Err
		}
		return errs.Auth(errs.StatusOf(check.Err), auth.MsgSessionExpired)
	default:
		return errs.Auth(0, auth.MsgNotLoggedIn)
	}
}

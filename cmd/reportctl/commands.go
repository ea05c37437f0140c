package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fardannozami/amchegoa/internal/app/usecase"
	"github.com/fardannozami/amchegoa/internal/domain"
	"github.com/fardannozami/amchegoa/internal/infra/exif"
)

func newSignUpCmd(a *app) *cobra.Command {
	var in usecase.SignUpInput
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account on this profile and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.ConfirmPassword == "" {
				in.ConfirmPassword = in.Password
			}
			user, err := usecase.NewAccountUsecase(a.store).SignUp(cmd.Context(), a.namespace, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Welcome, %s! You are signed in.\n", user.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Location, "location", "", "home area, e.g. Panaji")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (at least 6 characters)")
	cmd.Flags().StringVar(&in.ConfirmPassword, "confirm", "", "password confirmation (defaults to --password)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignInCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signin <email> <password>",
		Short: "Sign in to a registered account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := usecase.NewAccountUsecase(a.store).SignIn(cmd.Context(), a.namespace, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Welcome back, %s! You have %d points.\n", user.Name, user.Points)
			return nil
		},
	}
}

func newSignOutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out of this profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := usecase.NewAccountUsecase(a.store).SignOut(cmd.Context(), a.namespace); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		},
	}
}

func newProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := usecase.NewAccountUsecase(a.store).Profile(cmd.Context(), a.namespace)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, usecase.FormatProfile(p))
			return nil
		},
	}
}

// stateEcho prints intermediate workflow states while a submission runs.
type stateEcho struct {
	a *app
}

func (e stateEcho) OnStateChange(namespace string, o usecase.Outcome) {
	if o.State == usecase.StateAnalyzing {
		fmt.Fprintln(e.a.out, usecase.FormatOutcome(o))
	}
}

func (e stateEcho) OnUserUpdated(namespace string, user domain.User) {
	fmt.Fprintf(e.a.out, "Balance: %d points\n", user.Points)
}

func newSubmitCmd(a *app) *cobra.Command {
	var lat, lng float64
	cmd := &cobra.Command{
		Use:   "submit <image>",
		Short: "Classify an image and file it as a report",
		Long: `Classify an image of a civic issue and file the report with the responsible authority.

The location comes from --lat/--lng, or from the last fix stored for this profile.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			model, err := a.newModel(ctx, a.cfg)
			if err != nil {
				return err
			}
			classifier := usecase.NewClassifyImageUsecase(model, usecase.NewWarningPolicy(a.store), a.log)
			w := usecase.NewReportWorkflow(a.namespace, usecase.WorkflowDeps{
				Store:             a.store,
				Locations:         a.locations,
				Classifier:        classifier,
				Probe:             exif.NewProbe(),
				Listeners:         []usecase.WorkflowListener{stateEcho{a: a}},
				SyncPointsToUsers: a.cfg.SyncPointsToUsers,
				Logger:            a.log,
			})

			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
				c := domain.Coordinate{Lat: lat, Lng: lng}
				if err := a.locations.SaveFix(ctx, a.namespace, c, time.Now()); err != nil {
					return err
				}
				w.SetLocation(c)
			}

			outcome, err := w.SubmitImage(ctx, usecase.Image{
				Data:     data,
				MimeType: exif.DetectMimeType(data, "image/jpeg"),
				Name:     filepath.Base(args[0]),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, usecase.FormatOutcome(outcome))
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude of the issue")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude of the issue")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List filed reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := usecase.NewHistoryUsecase(a.store).Execute(cmd.Context(), a.namespace)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, usecase.FormatHistory(reports))
			return nil
		},
	}
}

func newRewardsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rewards",
		Short: "Show rewards and what the current balance affords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := usecase.NewRewardsUsecase(a.store, a.catalog).Execute(cmd.Context(), a.namespace)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, usecase.FormatRewards(o))
			return nil
		},
	}
}

func newLeaderboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank signed-in profiles by points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := usecase.NewGetLeaderboardUsecase(a.store).Execute(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, text)
			return nil
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the pending report and show the warning counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := usecase.NewReportWorkflow(a.namespace, usecase.WorkflowDeps{Store: a.store, Logger: a.log})
			if err := w.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Report cleared. Warnings: %d/%d\n", w.Outcome().Warnings, domain.WarningThreshold)
			return nil
		},
	}
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newSyncCommand() *cobra.Command {
	var (
		userID string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Rebuild persisted results for one user or every participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (userID == "") == !all {
				return errors.New("exactly one of --user or --all is required")
			}
			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			if all {
				reports, err := svc.synchronizer.SynchronizeAll(cmd.Context())
				if encodeErr := writeJSON(cmd.OutOrStdout(), reports); encodeErr != nil {
					return encodeErr
				}
				return err
			}
			report, err := svc.synchronizer.SynchronizeUser(cmd.Context(), userID)
			if encodeErr := writeJSON(cmd.OutOrStdout(), report); encodeErr != nil {
				return encodeErr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User identifier to synchronize")
	cmd.Flags().BoolVar(&all, "all", false, "Synchronize every participant of a completed competition")
	return cmd
}

func newAuditCommand() *cobra.Command {
	var competitionID string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare persisted prize slots against a fresh ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			entries, err := svc.auditor.AuditCompetition(cmd.Context(), competitionID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&competitionID, "competition", "", "Competition identifier to audit")
	_ = cmd.MarkFlagRequired("competition")
	return cmd
}

func newPointsCommand() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Print a user's point breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			breakdown, err := svc.points.UserPoints(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), breakdown)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User identifier to score")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newAdvanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Apply schedule-driven competition status transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			changes, err := svc.store.Competitions.AdvanceStatuses(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			for _, change := range changes {
				svc.logger.Info("competition status advanced",
					zap.String("competition_id", change.CompetitionID),
					zap.String("from", string(change.From)),
					zap.String("to", string(change.To)))
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d competitions advanced\n", len(changes))
			return err
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and verify result constraints",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.Close()
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return err
		},
	}
}

func newTokenCommand() *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for local operator use",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := strings.TrimSpace(viper.GetString("auth.signing_secret"))
			if secret == "" {
				return errors.New("auth.signing_secret is required")
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(secret),
				Issuer:        viper.GetString("auth.issuer"),
				TokenTTL:      ttl,
			})
			if err != nil {
				return err
			}
			token, expiresIn, err := issuer.Issue(subject, roles...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"access_token": token,
				"expires_in":   expiresIn,
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "User identifier placed in the token")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleOperator}, "Roles granted to the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*time.Minute, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

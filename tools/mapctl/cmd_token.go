package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"datamap-cloud/internal/auth"
)

var tokenFlags struct {
	secret  string
	subject string
	name    string
	role    string
	ttl     time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the mapping API",
	RunE:  runToken,
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.secret, "secret", "", "HS256 secret, same as AUTH_JWT_SECRET (required)")
	f.StringVar(&tokenFlags.subject, "subject", "", "Token subject (required)")
	f.StringVar(&tokenFlags.name, "name", "", "Editor display name recorded in the audit log")
	f.StringVar(&tokenFlags.role, "role", string(auth.RoleEditor), "Role: viewer, editor or admin")
	f.DurationVar(&tokenFlags.ttl, "ttl", time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("secret")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, _ []string) error {
	role, ok := auth.NormalizeRole(tokenFlags.role)
	if !ok {
		return fmt.Errorf("unknown role %q", tokenFlags.role)
	}
	token, err := auth.IssueJWT([]byte(tokenFlags.secret), auth.Editor{
		Subject: tokenFlags.subject,
		Name:    tokenFlags.name,
		Role:    role,
	}, tokenFlags.ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

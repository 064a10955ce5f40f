package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/georgepadayatti/adesval/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect validation policies",
	}
	cmd.AddCommand(newPolicyShowCommand())
	return cmd
}

func newPolicyShowCommand() *cobra.Command {
	var asXML bool
	cmd := &cobra.Command{
		Use:   "show [policy-file]",
		Short: "Check a policy and print it",
		Long: `Load a YAML or XML validation policy, or the built-in policy when no file
is given, and print its summary. With --xml the whole policy is printed in
the XML policy format.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			p, err := loadPolicy(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asXML {
				data, err := p.MarshalXMLDocument()
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}
			fmt.Fprintf(out, "Name:        %s\n", p.Name())
			fmt.Fprintf(out, "Model:       %s\n", p.Model())
			if p.Description() != "" {
				fmt.Fprintf(out, "Description: %s\n", strings.TrimSpace(p.Description()))
			}
			if f := p.RevocationFreshness(); f > 0 {
				fmt.Fprintf(out, "Revocation freshness: %s\n", f)
			}
			fmt.Fprintln(out, "Contexts:")
			for _, ctx := range policy.Contexts {
				c := p.Context(ctx)
				fmt.Fprintf(out, "  %-28s signature %-6s not-revoked %-6s crypto %s\n",
					ctx, c.SignatureIntact, c.SigningCertificate.NotRevoked, p.Crypto(ctx).Level())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asXML, "xml", false, "Print the policy in the XML policy format")
	return cmd
}

package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// CreditsCmd groups credit ledger operations.
var CreditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show the credit balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(context.Background())
		if err != nil {
			return err
		}
		defer rt.close()

		balance, err := rt.ledger.Balance()
		if err != nil {
			return err
		}
		fmt.Printf("Balance: %d credits\n", balance)
		return nil
	},
}

var creditsAddCmd = &cobra.Command{
	Use:   "add <n>",
	Short: "Grant credits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid credit amount %q", args[0])
		}

		rt, err := openRuntime(context.Background())
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.ledger.Add(n, "manual grant"); err != nil {
			return err
		}

		balance, err := rt.ledger.Balance()
		if err != nil {
			return err
		}
		fmt.Printf("Balance: %d credits\n", balance)
		return nil
	},
}

func init() {
	CreditsCmd.AddCommand(creditsAddCmd)
}

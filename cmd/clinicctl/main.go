// Command clinicctl runs the veterinary clinic: owners, animals, vets,
// appointments, stock and service visits.
package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"recordcore/internal/cli"
)

var exitFunc = os.Exit

func main() {
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func run(args []string, stdout, stderr io.Writer) int {
	rt := cli.NewRuntime(stderr)
	return cli.Execute(context.Background(), newRootCmd(rt), rt, args, stdout, stderr)
}

func newRootCmd(rt *cli.Runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "clinicctl",
		Short: "Veterinary clinic records, appointments and stock",
	}
	rt.Bind(root)
	root.AddCommand(
		loginCmd(rt),
		ownerCmd(rt),
		animalCmd(rt),
		vetCmd(rt),
		productCmd(rt),
		appointmentCmd(rt),
		visitCmd(rt),
		historyCmd(rt),
		recordCmd(rt),
	)
	return root
}

// Command schoolctl manages classes, teachers, students, grades and attendance
// and prints the school report.
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
		Use:   "schoolctl",
		Short: "School records: classes, students, grades and attendance",
	}
	rt.Bind(root)
	root.AddCommand(
		classCmd(rt),
		teacherCmd(rt),
		studentCmd(rt),
		gradesCmd(rt),
		attendanceCmd(rt),
		reportCmd(rt),
	)
	return root
}

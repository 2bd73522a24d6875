package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/posener/complete"
	"github.com/willabides/kongplete"
)

var (
	version = "dev"
	commit  = "none"
)

// Globals are flags shared by every command.
type Globals struct {
	ConfigFile string `name:"config" short:"c" type:"path" env:"KATAGO_SGF_CONFIG" help:"Config file (default ~/.katago-sgf/config.yaml)"`
}

type CLI struct {
	Globals

	Start   StartCmd   `cmd:"" help:"Start the daemon"`
	Stop    StopCmd    `cmd:"" help:"Stop the daemon"`
	Status  StatusCmd  `cmd:"" help:"Show daemon and engine status"`
	Submit  SubmitCmd  `cmd:"" help:"Queue a game record for analysis"`
	Jobs    JobsCmd    `cmd:"" help:"List jobs in progress"`
	Analyze AnalyzeCmd `cmd:"" help:"Analyze game records without the daemon"`
	Logs    LogsCmd    `cmd:"" help:"Show daemon or engine logs"`
	Config  ConfigCmd  `cmd:"" help:"Show or edit the configuration"`
	Version VersionCmd `cmd:"" help:"Show version"`

	InstallCompletions kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`
}

func main() {
	cli := CLI{}
	parser := kong.Must(&cli,
		kong.Name("katago-sgf"),
		kong.Description("Annotate SGF game records with KataGo analysis"),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	kongplete.Complete(parser,
		kongplete.WithPredictor("sgf", complete.PredictFiles("*.sgf")),
		kongplete.WithPredictor("source", sourceFilePredictor{}),
	)

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	os.Exit(exitCode(ctx.Run()))
}

// exitCode reports err and maps it to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", exitErr.Message)
		}
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitError
}

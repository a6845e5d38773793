// Command spanctl queries the span indexes offline. It loads an annotated
// document from a JSON file, builds the requested index over its
// annotations and prints the matches as JSON.
//
// Usage:
//
//	spanctl cover --doc doc.json --begin 0 --end 27 --type token
//	spanctl overlap --doc doc.json --begin 5 --end 10
//	spanctl terms --doc doc.json --gen edge-ngrams --n 3
//	spanctl process --doc doc.json --config configs/development.yaml
package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/logger"
)

// CLI defines the command-line interface of spanctl.
var CLI struct {
	LogLevel string `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level (logs go to stderr)."`

	Cover    CoverCmd    `cmd:"" help:"Annotations inside [begin, end)."`
	Overlap  OverlapCmd  `cmd:"" help:"Annotations overlapping [begin, end)."`
	Fuzzy    FuzzyCmd    `cmd:"" help:"Overlap neighbourhood of [begin, end) in an offset tree map."`
	Set      SetCmd      `cmd:"" help:"Overlap run of [begin, end) in an ordered set."`
	Terms    TermsCmd    `cmd:"" help:"Print the index terms a generator derives for every annotation."`
	Prefix   PrefixCmd   `cmd:"" help:"Annotations whose text starts with a prefix."`
	Condense CondenseCmd `cmd:"" help:"Cut annotations out of the text and map offsets back."`
	Process  ProcessCmd  `cmd:"" help:"Run the post-processing rules over the document."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("spanctl"),
		kong.Description("Offline queries over annotation span indexes"),
		kong.UsageOnError(),
	)
	slog.SetDefault(logger.New(os.Stderr, CLI.LogLevel, "text"))
	ctx.FatalIfErrorf(ctx.Run())
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mikey/phishguard/internal/adapters/filter"
	"github.com/mikey/phishguard/internal/core"
	"github.com/mikey/phishguard/internal/di"
	"go.uber.org/zap"
)

func main() {
	flags, err := di.ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(func(cli *filter.CliFilter, provider core.JudgmentProvider, logger *zap.Logger) error {
		defer logger.Sync()
		defer func() {
			if closer, ok := provider.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}()
		return run(context.Background(), flags, cli, logger)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flags *di.CLIFlags, cli *filter.CliFilter, logger *zap.Logger) error {
	if flags.URL != "" {
		_, err := cli.ProcessURL(ctx, core.URLRequest{URL: flags.URL})
		return err
	}

	var reader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		reader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		reader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	email, err := filter.ParseMessage(bufio.NewReader(reader))
	if err != nil {
		return err
	}

	_, err = cli.ProcessEmail(ctx, email)
	return err
}

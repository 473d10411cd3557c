package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/JackKCWong/backlines"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

type App struct {
	Encoding  string
	ChunkSize int
	Numbered  bool
}

func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tac [-e encoding] [-c chunk] [-n] <file>")
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	return backlines.With(args[0], func(r *backlines.Reader) error {
		it, err := r.Iter()
		if err != nil {
			return err
		}

		for it.Scan() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			line := it.Line()
			if a.Numbered {
				fmt.Fprintf(out, "%d:%d\t\t%s\n", line.No, line.Offset, line.Text)
			} else {
				fmt.Fprintln(out, line.Text)
			}
		}

		return it.Err()
	}, backlines.WithEncoding(a.Encoding), backlines.WithChunkSize(a.ChunkSize))
}

func main() {
	var app App
	flag.StringVarP(&app.Encoding, "encoding", "e", backlines.DefaultEncoding, "text encoding of the file")
	flag.IntVarP(&app.ChunkSize, "chunk", "c", backlines.DefaultChunkSize, "bytes read per backward step")
	flag.BoolVarP(&app.Numbered, "number", "n", false, "prefix lines with backward line number and byte offset")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())

	sigKill := make(chan os.Signal, 1)
	signal.Notify(sigKill, os.Interrupt)

	go func() {
		<-sigKill
		cancel()
	}()

	if err := app.Run(ctx, flag.Args()); err != nil {
		log.Printf("exited with error: %q", err)
		os.Exit(1)
	}
}

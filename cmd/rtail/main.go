package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/JackKCWong/backlines"
	"github.com/dustin/go-humanize"
	"github.com/pkg/profile"
	flag "github.com/spf13/pflag"
)

func main() {
	fProf := flag.String("prof", "off", "off|cpu|mem")
	fLines := flag.IntP("lines", "n", 10, "number of lines to print")
	fEnc := flag.StringP("encoding", "e", backlines.DefaultEncoding, "text encoding of the file")
	fBufSize := flag.Int("buf", 64, "chunk size in KBs")
	fStats := flag.Bool("stats", false, "print how much of the file was read to stderr")

	flag.Parse()

	switch *fProf {
	case "off":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	default:
		fmt.Fprintf(os.Stderr, "unknown flag: %s\n", *fProf)
		fmt.Fprintln(os.Stderr, "usage: rtail [-prof off|cpu|mem] [-n lines] [-e encoding] <file>")
		os.Exit(1)
	}

	if *fLines <= 0 {
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: rtail [-prof off|cpu|mem] [-n lines] [-e encoding] <file>")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigKill := make(chan os.Signal, 1)
	signal.Notify(sigKill, os.Interrupt)
	go func() {
		<-sigKill
		cancel()
	}()

	var tail []backlines.Line
	var scanned, size int64
	err := backlines.With(flag.Arg(0), func(r *backlines.Reader) error {
		it, err := r.Iter()
		if err != nil {
			return err
		}

		fi, err := os.Stat(r.Path())
		if err != nil {
			return err
		}
		size = fi.Size()

		err = r.Tail(ctx, *fLines, func(lines []backlines.Line) error {
			tail = lines
			return backlines.ErrEndOfTail
		})
		scanned = it.BytesRead()
		return err
	}, backlines.WithEncoding(*fEnc), backlines.WithChunkSize(*fBufSize*1024))

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %q\n", err)
		os.Exit(1)
	}

	out := bufio.NewWriter(os.Stdout)
	for i := len(tail) - 1; i >= 0; i-- {
		fmt.Fprintln(out, tail[i].Text)
	}
	out.Flush()

	if *fStats {
		fmt.Fprintf(os.Stderr, "read %s of %s\n", humanize.Bytes(uint64(scanned)), humanize.Bytes(uint64(size)))
	}
}

// respdump decodes a stream of protocol messages and prints them in a
// human readable form, or re-encodes them with --raw.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"

	"github.com/marcybelardo/lilykv/proto"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var (
		file     string
		maxDepth int
		maxSize  int
		raw      bool
	)

	flagSet := pflag.NewFlagSet("respdump", pflag.ContinueOnError)
	flagSet.StringVarP(&file, "file", "f", "-", "input file, - reads stdin")
	flagSet.IntVar(&maxDepth, "max-depth", proto.DefaultMaxDepth, "maximum array nesting")
	flagSet.IntVar(&maxSize, "max-size", 64<<20, "maximum message size in bytes")
	flagSet.BoolVar(&raw, "raw", false, "re-encode messages instead of pretty printing")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	in := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return errors.Wrap(err, "open input")
		}
		defer f.Close()
		in = f
	}

	return dump(in, stdout, proto.Decoder{MaxDepth: maxDepth}, maxSize, raw)
}

func dump(r io.Reader, out io.Writer, d proto.Decoder, maxSize int, raw bool) error {
	w := bufio.NewWriter(out)
	defer w.Flush()

	scanner := proto.NewScanner(r, d, maxSize)
	n := 0
	for scanner.Scan() {
		v, _, err := d.DecodeBytes(scanner.Bytes())
		if err != nil {
			return errors.Wrapf(err, "message %d", n)
		}

		if raw {
			if err := proto.Write(w, v); err != nil {
				return err
			}
		} else {
			if _, err := io.WriteString(w, format(v, "")); err != nil {
				return err
			}
		}
		n++
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "message %d", n)
	}

	return nil
}

// format renders v the way redis-cli prints replies.
func format(v proto.Value, indent string) string {
	switch v := v.(type) {
	case proto.SimpleString:
		return string(v) + "\n"
	case proto.Error:
		return "(error) " + string(v) + "\n"
	case proto.Integer:
		return "(integer) " + strconv.FormatInt(int64(v), 10) + "\n"
	case proto.BulkString:
		return strconv.Quote(string(v)) + "\n"
	case proto.Array:
		if len(v) == 0 {
			return "(empty array)\n"
		}

		var sb strings.Builder
		width := len(strconv.Itoa(len(v)))
		pad := indent + strings.Repeat(" ", width+2)
		for i, el := range v {
			if i > 0 {
				sb.WriteString(indent)
			}
			fmt.Fprintf(&sb, "%*d) ", width, i+1)
			sb.WriteString(format(el, pad))
		}
		return sb.String()
	}

	return fmt.Sprintf("(unknown %T)\n", v)
}

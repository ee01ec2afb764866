package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/authkeeper/internal/service/randtoken"
)

const defaultSecretBytes = 32

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

// Print random secret key suitable for SECRET_KEY
func run(out io.Writer, args []string) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	n := fs.IntP("bytes", "n", defaultSecretBytes, "Secret length in bytes")
	useBase64 := fs.Bool("base64", false, "Print base64 instead of hex")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n < 16 {
		return fmt.Errorf("secret must be at least 16 bytes, got %d", *n)
	}

	b, err := randtoken.Bytes(*n)
	if err != nil {
		return err
	}

	if *useBase64 {
		_, err = fmt.Fprintln(out, base64.RawURLEncoding.EncodeToString(b))
	} else {
		_, err = fmt.Fprintln(out, hex.EncodeToString(b))
	}
	return err
}

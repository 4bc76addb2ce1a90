// Command bandctl sends one command to a bandkeeper server and prints the
// response envelope.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"bandkeeper/internal/client"
	"bandkeeper/internal/core"
	"bandkeeper/pkg/domain"
)

var (
	exitFunc           = os.Exit
	stdin    io.Reader = os.Stdin
)

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bandctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", envOr("BANDCTL_SERVER", "http://localhost:8080"), "bandkeeper base URL")
	login := fs.String("user", envOr("BANDCTL_USER", ""), "login sent with every request")
	token := fs.String("token", os.Getenv("BANDCTL_TOKEN"), "optional credential forwarded to the server")
	payload := fs.String("payload", "-", "band JSON file for payload commands, - for stdin")
	extended := fs.String("extended", strings.Join(core.DefaultExtendedCommands, ","), "comma separated commands that carry a band payload")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: bandctl [flags] <command> [argument]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return 2
	}
	if strings.TrimSpace(*login) == "" {
		_, _ = fmt.Fprintln(stderr, "a login is required (-user or BANDCTL_USER)")
		return 2
	}
	command, argument := fs.Arg(0), fs.Arg(1)

	fields, closeFields, err := openPayload(*payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "payload: %v\n", err)
		return 1
	}
	defer closeFields()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	factory := client.NewRequestFactory(splitList(*extended), fields, domain.User{Login: *login, Token: *token})
	req, err := factory.NewRequest(ctx, command, argument)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "build request: %v\n", err)
		return 1
	}
	httpClient := client.NewHTTPClient(*server)
	httpClient.HTTP.Timeout = *timeout
	resp, err := httpClient.Do(ctx, req)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "send: %v\n", err)
		return 1
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "encode response: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, string(out))
	if resp.Failed() {
		return 1
	}
	return 0
}

// openPayload selects the band source. Stdin is only read by payload commands.
func openPayload(path string) (client.FieldReader, func(), error) {
	if path == "-" || path == "" {
		return client.NewJSONFieldReader(stdin), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, func() {}, err
	}
	return client.NewJSONFieldReader(f), func() { _ = f.Close() }, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"taxledger/cmd/internal/passphrase"
	"taxledger/crypto"
	"taxledger/rpc"
)

const (
	rpcURLEnv     = "TAXLEDGER_RPC_URL"
	rpcTokenEnv   = "TAXLEDGER_RPC_TOKEN"
	keyPassEnv    = "TAXLEDGER_KEY_PASS"
	defaultRPCURL = "http://127.0.0.1:8545"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cli struct {
	client *client
	pass   *passphrase.Source
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("taxledger-cli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	endpoint := fs.String("rpc", envOr(rpcURLEnv, defaultRPCURL), "JSON-RPC endpoint")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(stderr, err)
		printUsage(stderr)
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stdout)
		return 0
	}
	c := &cli{
		client: newClient(*endpoint, os.Getenv(rpcTokenEnv)),
		pass:   passphrase.NewSource(keyPassEnv, ""),
		stdout: stdout,
		stderr: stderr,
	}
	if err := c.dispatch(rest[0], rest[1:]); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (c *cli) dispatch(command string, args []string) error {
	switch command {
	case "keygen":
		return c.keygen(args)
	case "address":
		return c.address(args)
	case "balance":
		return c.query("token_balance", args, "<account>")
	case "allowance":
		return c.query("token_allowance", args, "<owner>", "<spender>")
	case "config":
		return c.query("token_config", args)
	case "exempt":
		return c.query("token_isTaxExempt", args, "<account>")
	case "quote":
		return c.query("token_quoteTax", args, "<from>", "<to>", "<amount>")
	case "has-role":
		return c.query("token_hasRole", args, "<role>", "<account>")
	case "members":
		return c.query("token_roleMembers", args, "<role>")
	case "receipt":
		return c.query("token_receipt", args, "<hash>")
	case "events":
		return c.events(args)
	case "help", "-h", "--help":
		printUsage(c.stdout)
		return nil
	}
	if _, ok := opCommands[command]; ok {
		return c.submit(command, args)
	}
	return fmt.Errorf("unknown command %q", command)
}

func (c *cli) keygen(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: keygen <keystore>")
	}
	pass, err := c.pass.Get()
	if err != nil {
		return err
	}
	key, created, err := crypto.LoadOrCreateKeystore(args[0], pass)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(c.stdout, "Created keystore %s\n", args[0])
	}
	fmt.Fprintln(c.stdout, key.PubKey().Address().String())
	return nil
}

func (c *cli) address(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: address <keystore>")
	}
	key, err := c.loadKey(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, key.PubKey().Address().String())
	return nil
}

func (c *cli) loadKey(path string) (*crypto.PrivateKey, error) {
	pass, err := c.pass.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", path, err)
	}
	return key, nil
}

func (c *cli) query(method string, args []string, names ...string) error {
	if len(args) != len(names) {
		return fmt.Errorf("usage: %s %s", method, strings.Join(names, " "))
	}
	params := make([]interface{}, 0, len(args))
	for _, a := range args {
		params = append(params, a)
	}
	result, err := c.client.call(method, params...)
	if err != nil {
		return err
	}
	return c.print(result)
}

func (c *cli) events(args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	after := fs.Uint64("after", 0, "return events after this sequence")
	limit := fs.Int("limit", 100, "maximum number of events")
	kind := fs.String("type", "", "only events of this type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	result, err := c.client.call("token_events", rpc.EventsParams{After: *after, Limit: *limit, Type: *kind})
	if err != nil {
		return err
	}
	return c.print(result)
}

func (c *cli) submit(verb string, args []string) error {
	fs := flag.NewFlagSet(verb, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	nonce := fs.Uint64("nonce", uint64(time.Now().UnixNano()), "envelope nonce; must differ between otherwise identical operations")
	if err := fs.Parse(args); err != nil {
		return err
	}
	positional := fs.Args()
	if len(positional) < 1 {
		return fmt.Errorf("usage: %s", opCommands[verb].usage(verb))
	}
	op, err := buildOperation(verb, *nonce, positional[1:])
	if err != nil {
		return err
	}
	key, err := c.loadKey(positional[0])
	if err != nil {
		return err
	}
	if err := op.Sign(key.PrivateKey); err != nil {
		return fmt.Errorf("sign operation: %w", err)
	}
	result, err := c.client.call("token_submit", op)
	if err != nil {
		return err
	}
	return c.print(result)
}

func (c *cli) print(raw json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		_, err = c.stdout.Write(append(raw, '\n'))
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(c.stdout)
	return err
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: taxledger-cli [--rpc <url>] <command> [args]")
	fmt.Fprintln(w, "\nKeys (passphrase from "+keyPassEnv+" or prompt):")
	fmt.Fprintln(w, "  keygen <keystore>")
	fmt.Fprintln(w, "  address <keystore>")
	fmt.Fprintln(w, "\nQueries:")
	fmt.Fprintln(w, "  balance <account>")
	fmt.Fprintln(w, "  allowance <owner> <spender>")
	fmt.Fprintln(w, "  config")
	fmt.Fprintln(w, "  exempt <account>")
	fmt.Fprintln(w, "  quote <from> <to> <amount>")
	fmt.Fprintln(w, "  has-role <role> <account>")
	fmt.Fprintln(w, "  members <role>")
	fmt.Fprintln(w, "  receipt <hash>")
	fmt.Fprintln(w, "  events [--after N] [--limit N] [--type T]")
	fmt.Fprintln(w, "\nOperations (signed, submitted with "+rpcTokenEnv+"):")
	verbs := make([]string, 0, len(opCommands))
	for verb := range opCommands {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)
	for _, verb := range verbs {
		fmt.Fprintln(w, "  "+opCommands[verb].usage(verb))
	}
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"claimledger/config"
	"claimledger/core/amount"
	"claimledger/core/events"
	"claimledger/native/rewards"
	"claimledger/native/rewards/batch"
	"claimledger/observability/logging"
	"claimledger/state"
	"claimledger/storage"
)

// localIssuer derives deterministic credentials for development deployments.
// Production deployments replace it with the host identity service.
type localIssuer struct {
	name string
}

func (iss localIssuer) Issue(account string) (*rewards.Credential, error) {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(iss.name+"/"+account))
	return &rewards.Credential{ID: id, Issuer: iss.name, Account: account}, nil
}

type logEmitter struct {
	log *slog.Logger
}

func (e logEmitter) Emit(evt events.Event) {
	attrs := make([]any, 0, 8)
	for key, value := range evt.Attributes() {
		attrs = append(attrs, slog.String(key, value))
	}
	e.log.Info(evt.EventType(), attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("claimd", cfg.Env, cfg.LogLevel)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	issuer := localIssuer{name: cfg.IssuerName}
	engine := rewards.NewEngine(cfg.RewardToken, cfg.IssuerName)
	engine.SetState(manager)
	engine.SetIssuer(issuer)
	engine.SetEmitter(logEmitter{log: logger})
	engine.SetLogger(logger)
	if cfg.Env != "local" {
		engine.SetCodec(rewards.NetworkCodec{})
	}

	var cmdErr error
	switch args[0] {
	case "grant":
		cmdErr = runGrant(engine, args[1:], true)
	case "remove":
		cmdErr = runGrant(engine, args[1:], false)
	case "claim":
		cmdErr = runClaim(engine, issuer, cfg, args[1:])
	case "show":
		cmdErr = runShow(manager, engine, cfg, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		logger.Error("command failed", "command", args[0], "error", cmdErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: claimd [-config path] <command> [flags]

commands:
  grant   -accounts file -orders file -funds TOKEN=AMOUNT[,TOKEN=AMOUNT...]
  remove  -accounts file -orders file
  claim   -accounts addr[,addr...] -receipt id -order-ids 1[,2...]
  show    -account addr | -vault token | -order receipt#id#`)
}

func runGrant(engine *rewards.Engine, args []string, add bool) error {
	name := "grant"
	if !add {
		name = "remove"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	accountsFile := fs.String("accounts", "", "Path to an accounts batch file")
	ordersFile := fs.String("orders", "", "Path to an orders batch file")
	fundsSpec := fs.String("funds", "", "Funds supplied, e.g. DEXTR=500")
	fs.Parse(args)

	accounts, orders, err := loadBatches(*accountsFile, *ordersFile)
	if err != nil {
		return err
	}
	if accounts == nil && orders == nil {
		return fmt.Errorf("nothing to %s: provide -accounts and/or -orders", name)
	}

	var out []*rewards.Bucket
	if add {
		funds, err := parseFunds(*fundsSpec)
		if err != nil {
			return err
		}
		out, err = engine.Grant(accounts, orders, funds)
		if err != nil {
			return err
		}
	} else {
		out, err = engine.Remove(accounts, orders)
		if err != nil {
			return err
		}
	}
	printBuckets(out)
	return nil
}

func runClaim(engine *rewards.Engine, issuer localIssuer, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	accountsSpec := fs.String("accounts", "", "Comma-separated account addresses")
	receipt := fs.String("receipt", "", "Receipt series identifier")
	orderIDs := fs.String("order-ids", "", "Comma-separated order ids")
	fs.Parse(args)

	codec := rewards.AddressCodec(rewards.HexCodec{})
	if cfg.Env != "local" {
		codec = rewards.NetworkCodec{}
	}

	var accountCreds []*rewards.Credential
	if *accountsSpec != "" {
		for _, address := range strings.Split(*accountsSpec, ",") {
			key, err := codec.CredentialKey(strings.TrimSpace(address))
			if err != nil {
				return err
			}
			cred, err := issuer.Issue(key)
			if err != nil {
				return err
			}
			accountCreds = append(accountCreds, cred)
		}
	}

	var orderCreds []*rewards.OrderCredential
	if *receipt != "" {
		cred := &rewards.OrderCredential{Issuer: cfg.IssuerName, Receipt: *receipt}
		for _, raw := range strings.Split(*orderIDs, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("bad order id %q: %w", raw, err)
			}
			cred.OrderIDs = append(cred.OrderIDs, id)
		}
		orderCreds = append(orderCreds, cred)
	}

	out, err := engine.Claim(accountCreds, orderCreds)
	if err != nil {
		return err
	}
	printBuckets(out)
	return nil
}

func runShow(manager *state.Manager, engine *rewards.Engine, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	account := fs.String("account", "", "Account address to inspect")
	vault := fs.String("vault", "", "Token whose custody balance to inspect")
	order := fs.String("order", "", "Composite order key to inspect")
	fs.Parse(args)

	switch {
	case *account != "":
		codec := rewards.AddressCodec(rewards.HexCodec{})
		if cfg.Env != "local" {
			codec = rewards.NetworkCodec{}
		}
		key, err := codec.CredentialKey(*account)
		if err != nil {
			return err
		}
		row, ok, err := manager.RewardsGet(key)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no ledger row")
			return nil
		}
		return printRow(row)
	case *vault != "":
		balance, ok, err := manager.VaultBalance(*vault)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no custody vault")
			return nil
		}
		fmt.Println(balance.String())
		return nil
	case *order != "":
		amt, ok, err := manager.OrderGet(*order)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no order entry")
			return nil
		}
		fmt.Println(amt.String())
		return nil
	default:
		return fmt.Errorf("show: one of -account, -vault or -order is required")
	}
}

func loadBatches(accountsFile, ordersFile string) (*batch.Accounts, *batch.Orders, error) {
	var accounts *batch.Accounts
	var orders *batch.Orders
	if accountsFile != "" {
		raw, err := os.ReadFile(accountsFile)
		if err != nil {
			return nil, nil, err
		}
		accounts, err = batch.ParseAccounts(string(raw))
		if err != nil {
			return nil, nil, err
		}
	}
	if ordersFile != "" {
		raw, err := os.ReadFile(ordersFile)
		if err != nil {
			return nil, nil, err
		}
		orders, err = batch.ParseOrders(string(raw))
		if err != nil {
			return nil, nil, err
		}
	}
	return accounts, orders, nil
}

func parseFunds(spec string) ([]*rewards.Bucket, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	var funds []*rewards.Bucket
	for _, part := range strings.Split(spec, ",") {
		token, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("bad funds entry %q, want TOKEN=AMOUNT", part)
		}
		amt, err := amount.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("bad funds amount for %s: %w", token, err)
		}
		bucket, err := rewards.NewBucket(token, amt)
		if err != nil {
			return nil, err
		}
		funds = append(funds, bucket)
	}
	return funds, nil
}

func printBuckets(out []*rewards.Bucket) {
	if len(out) == 0 {
		fmt.Println("no funds returned")
		return
	}
	for _, bucket := range out {
		fmt.Printf("%s %s\n", bucket.Amount(), bucket.Token())
	}
}

func printRow(row *rewards.AccountRow) error {
	view := struct {
		Address    string                       `json:"address"`
		Credential string                       `json:"credential"`
		Balances   map[string]map[string]string `json:"balances"`
	}{
		Address:    row.Address,
		Credential: row.Credential.String(),
		Balances:   make(map[string]map[string]string, len(row.Balances)),
	}
	for category, tokens := range row.Balances {
		view.Balances[category] = make(map[string]string, len(tokens))
		for token, amt := range tokens {
			view.Balances[category][token] = amt.String()
		}
	}
	raw, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
